package database

import "socialnet/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Follow{},
		&models.FriendRequest{},
		&models.Friendship{},
		&models.Message{},
		&models.Notification{},
		&models.Topic{},
		&models.Post{},
		&models.Like{},
		&models.Comment{},
		&models.Banner{},
		&models.DailyMetrics{},
		&models.UserActivity{},
	}
}
