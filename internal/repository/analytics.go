package repository

import (
	"context"
	"time"

	"socialnet/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AnalyticsRepository reads activity counts and stores the daily rollups.
// All ranges are half-open: [from, to).
type AnalyticsRepository interface {
	CountNewUsers(ctx context.Context, from, to time.Time) (int64, error)
	CountPosts(ctx context.Context, from, to time.Time) (int64, error)
	CountComments(ctx context.Context, from, to time.Time) (int64, error)
	CountLikes(ctx context.Context, from, to time.Time) (int64, error)
	CountFriendships(ctx context.Context, from, to time.Time) (int64, error)
	CountMessages(ctx context.Context, from, to time.Time) (int64, error)
	CountActiveUsers(ctx context.Context, from, to time.Time) (int64, error)
	ActiveUserIDs(ctx context.Context, from, to time.Time) ([]uint, error)

	UpsertDailyMetrics(ctx context.Context, m *models.DailyMetrics) error
	ListDailyMetrics(ctx context.Context, from, to time.Time) ([]models.DailyMetrics, error)

	UserDayCounts(ctx context.Context, userID uint, from, to time.Time) (*models.UserActivity, error)
	UpsertUserActivityCounts(ctx context.Context, a *models.UserActivity) error
	IncrementLogin(ctx context.Context, userID uint, day time.Time) error
	ListUserActivity(ctx context.Context, userID uint, from, to time.Time) ([]models.UserActivity, error)

	Totals(ctx context.Context) (*models.DashboardTotals, error)
	TopUsers(ctx context.Context, limit int) ([]models.TopUser, error)
}

type analyticsRepository struct {
	db *gorm.DB
}

// NewAnalyticsRepository creates a new analytics repository
func NewAnalyticsRepository(db *gorm.DB) AnalyticsRepository {
	return &analyticsRepository{db: db}
}

func (r *analyticsRepository) countBetween(ctx context.Context, model interface{}, from, to time.Time) (int64, error) {
	var count int64
	if err := readDB(r.db).WithContext(ctx).
		Model(model).
		Where("created_at >= ? AND created_at < ?", from, to).
		Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

func (r *analyticsRepository) CountNewUsers(ctx context.Context, from, to time.Time) (int64, error) {
	return r.countBetween(ctx, &models.User{}, from, to)
}

func (r *analyticsRepository) CountPosts(ctx context.Context, from, to time.Time) (int64, error) {
	return r.countBetween(ctx, &models.Post{}, from, to)
}

func (r *analyticsRepository) CountComments(ctx context.Context, from, to time.Time) (int64, error) {
	return r.countBetween(ctx, &models.Comment{}, from, to)
}

// CountLikes counts likes recorded in the range, not likes on posts created in it.
func (r *analyticsRepository) CountLikes(ctx context.Context, from, to time.Time) (int64, error) {
	return r.countBetween(ctx, &models.Like{}, from, to)
}

func (r *analyticsRepository) CountFriendships(ctx context.Context, from, to time.Time) (int64, error) {
	return r.countBetween(ctx, &models.Friendship{}, from, to)
}

func (r *analyticsRepository) CountMessages(ctx context.Context, from, to time.Time) (int64, error) {
	return r.countBetween(ctx, &models.Message{}, from, to)
}

// activeUsersSQL selects everyone who posted, commented, liked, befriended
// or messaged in the range.
const activeUsersSQL = `
SELECT user_id AS uid FROM posts WHERE created_at >= @from AND created_at < @to AND deleted_at IS NULL
UNION SELECT user_id FROM comments WHERE created_at >= @from AND created_at < @to AND deleted_at IS NULL
UNION SELECT user_id FROM likes WHERE created_at >= @from AND created_at < @to
UNION SELECT user1_id FROM friendships WHERE created_at >= @from AND created_at < @to
UNION SELECT user2_id FROM friendships WHERE created_at >= @from AND created_at < @to
UNION SELECT sender_id FROM messages WHERE created_at >= @from AND created_at < @to
UNION SELECT receiver_id FROM messages WHERE created_at >= @from AND created_at < @to`

func (r *analyticsRepository) CountActiveUsers(ctx context.Context, from, to time.Time) (int64, error) {
	var count int64
	if err := readDB(r.db).WithContext(ctx).
		Raw("SELECT COUNT(*) FROM ("+activeUsersSQL+") AS active", map[string]interface{}{"from": from, "to": to}).
		Scan(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

func (r *analyticsRepository) ActiveUserIDs(ctx context.Context, from, to time.Time) ([]uint, error) {
	ids := []uint{}
	if err := readDB(r.db).WithContext(ctx).
		Raw("SELECT uid FROM ("+activeUsersSQL+") AS active ORDER BY uid", map[string]interface{}{"from": from, "to": to}).
		Scan(&ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

// UpsertDailyMetrics writes the row for m.Date, replacing every aggregate on conflict.
func (r *analyticsRepository) UpsertDailyMetrics(ctx context.Context, m *models.DailyMetrics) error {
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"active_users", "new_users", "posts", "comments",
				"likes", "friendships", "messages", "updated_at",
			}),
		}).
		Create(m).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *analyticsRepository) ListDailyMetrics(ctx context.Context, from, to time.Time) ([]models.DailyMetrics, error) {
	var rows []models.DailyMetrics
	if err := readDB(r.db).WithContext(ctx).
		Where("date >= ? AND date < ?", from, to).
		Order("date ASC").
		Find(&rows).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return rows, nil
}

const userDayCountsSQL = `
SELECT
	(SELECT COUNT(*) FROM posts WHERE user_id = @user AND created_at >= @from AND created_at < @to AND deleted_at IS NULL) AS post_count,
	(SELECT COUNT(*) FROM comments WHERE user_id = @user AND created_at >= @from AND created_at < @to AND deleted_at IS NULL) AS comment_count,
	(SELECT COUNT(*) FROM likes WHERE user_id = @user AND created_at >= @from AND created_at < @to) AS like_count,
	(SELECT COUNT(*) FROM messages WHERE sender_id = @user AND created_at >= @from AND created_at < @to) AS message_count`

// UserDayCounts computes the activity counters for one user; LoginCount is left zero.
func (r *analyticsRepository) UserDayCounts(ctx context.Context, userID uint, from, to time.Time) (*models.UserActivity, error) {
	var counts struct {
		PostCount    int64
		CommentCount int64
		LikeCount    int64
		MessageCount int64
	}
	if err := readDB(r.db).WithContext(ctx).
		Raw(userDayCountsSQL, map[string]interface{}{"user": userID, "from": from, "to": to}).
		Scan(&counts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return &models.UserActivity{
		UserID:       userID,
		Date:         from,
		PostCount:    counts.PostCount,
		CommentCount: counts.CommentCount,
		LikeCount:    counts.LikeCount,
		MessageCount: counts.MessageCount,
	}, nil
}

// UpsertUserActivityCounts stores the activity counters. login_count is owned by
// IncrementLogin and is never overwritten here.
func (r *analyticsRepository) UpsertUserActivityCounts(ctx context.Context, a *models.UserActivity) error {
	row := *a
	row.LoginCount = 0
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"post_count", "comment_count", "like_count", "message_count",
			}),
		}).
		Create(&row).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// IncrementLogin bumps login_count for (userID, day) in a single statement.
func (r *analyticsRepository) IncrementLogin(ctx context.Context, userID uint, day time.Time) error {
	row := &models.UserActivity{UserID: userID, Date: day, LoginCount: 1}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "date"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"login_count": gorm.Expr("user_activities.login_count + 1"),
			}),
		}).
		Create(row).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *analyticsRepository) ListUserActivity(ctx context.Context, userID uint, from, to time.Time) ([]models.UserActivity, error) {
	var rows []models.UserActivity
	if err := readDB(r.db).WithContext(ctx).
		Where("user_id = ? AND date >= ? AND date < ?", userID, from, to).
		Order("date ASC").
		Find(&rows).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return rows, nil
}

func (r *analyticsRepository) Totals(ctx context.Context) (*models.DashboardTotals, error) {
	db := readDB(r.db).WithContext(ctx)
	var totals models.DashboardTotals

	counts := []struct {
		model interface{}
		where string
		dest  *int64
	}{
		{&models.User{}, "", &totals.Users},
		{&models.Post{}, "", &totals.Posts},
		{&models.Comment{}, "", &totals.Comments},
		{&models.Friendship{}, "status = 'accepted'", &totals.Friendships},
		{&models.Message{}, "", &totals.Messages},
	}
	for _, c := range counts {
		q := db.Model(c.model)
		if c.where != "" {
			q = q.Where(c.where)
		}
		if err := q.Count(c.dest).Error; err != nil {
			return nil, models.NewInternalError(err)
		}
	}
	return &totals, nil
}

const topUsersSQL = `
SELECT t.user_id, t.username, t.posts, t.comments, t.likes, (t.posts + t.comments + t.likes) AS total
FROM (
	SELECT u.id AS user_id, u.username,
		(SELECT COUNT(*) FROM posts p WHERE p.user_id = u.id AND p.deleted_at IS NULL) AS posts,
		(SELECT COUNT(*) FROM comments c WHERE c.user_id = u.id AND c.deleted_at IS NULL) AS comments,
		(SELECT COUNT(*) FROM likes l WHERE l.user_id = u.id) AS likes
	FROM users u
	WHERE u.deleted_at IS NULL
) AS t
ORDER BY (t.posts + t.comments + t.likes) DESC, t.user_id ASC
LIMIT ?`

// TopUsers ranks users by all-time posts + comments + likes.
func (r *analyticsRepository) TopUsers(ctx context.Context, limit int) ([]models.TopUser, error) {
	var users []models.TopUser
	if err := readDB(r.db).WithContext(ctx).Raw(topUsersSQL, clampLimit(limit)).Scan(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}
