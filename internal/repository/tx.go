package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repos bundles every repository bound to the same database handle.
type Repos struct {
	Users         UserRepository
	Friends       FriendRepository
	Messages      MessageRepository
	Notifications NotificationRepository
	Posts         PostRepository
	Comments      CommentRepository
	Topics        TopicRepository
	Banners       BannerRepository
	Analytics     AnalyticsRepository
}

// NewRepos builds the repository set over db, which may be a transaction.
func NewRepos(db *gorm.DB) Repos {
	return Repos{
		Users:         NewUserRepository(db),
		Friends:       NewFriendRepository(db),
		Messages:      NewMessageRepository(db),
		Notifications: NewNotificationRepository(db),
		Posts:         NewPostRepository(db),
		Comments:      NewCommentRepository(db),
		Topics:        NewTopicRepository(db),
		Banners:       NewBannerRepository(db),
		Analytics:     NewAnalyticsRepository(db),
	}
}

// TxManager runs fn with repositories bound to a single transaction.
// Returning an error from fn rolls back every write made through r.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(r Repos) error) error
}

type gormTxManager struct {
	db *gorm.DB
}

// NewTxManager returns a TxManager backed by db.Transaction.
func NewTxManager(db *gorm.DB) TxManager {
	return &gormTxManager{db: db}
}

func (m *gormTxManager) WithinTx(ctx context.Context, fn func(r Repos) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepos(tx))
	})
}
