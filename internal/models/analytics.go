package models

import "time"

// DailyMetrics is the platform-wide rollup for one calendar day.
type DailyMetrics struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Date        time.Time `gorm:"type:date;uniqueIndex;not null" json:"date"`
	ActiveUsers int64     `gorm:"not null;default:0" json:"active_users"`
	NewUsers    int64     `gorm:"not null;default:0" json:"new_users"`
	Posts       int64     `gorm:"not null;default:0" json:"posts"`
	Comments    int64     `gorm:"not null;default:0" json:"comments"`
	Likes       int64     `gorm:"not null;default:0" json:"likes"`
	Friendships int64     `gorm:"not null;default:0" json:"friendships"`
	Messages    int64     `gorm:"not null;default:0" json:"messages"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (DailyMetrics) TableName() string {
	return "daily_metrics"
}

// UserActivity is the per-user rollup for one calendar day.
type UserActivity struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"not null;uniqueIndex:idx_user_activity_day" json:"user_id"`
	Date         time.Time `gorm:"type:date;not null;uniqueIndex:idx_user_activity_day" json:"date"`
	PostCount    int64     `gorm:"not null;default:0" json:"post_count"`
	CommentCount int64     `gorm:"not null;default:0" json:"comment_count"`
	LikeCount    int64     `gorm:"not null;default:0" json:"like_count"`
	MessageCount int64     `gorm:"not null;default:0" json:"message_count"`
	LoginCount   int64     `gorm:"not null;default:0" json:"login_count"`
}

// TableName specifies the table name for GORM
func (UserActivity) TableName() string {
	return "user_activities"
}

// DashboardTotals are all-time counts shown on the admin dashboard.
type DashboardTotals struct {
	Users       int64 `json:"users"`
	Posts       int64 `json:"posts"`
	Comments    int64 `json:"comments"`
	Friendships int64 `json:"friendships"`
	Messages    int64 `json:"messages"`
}

// DashboardAverages are per-day means over the dashboard range.
type DashboardAverages struct {
	ActiveUsers float64 `json:"active_users"`
	NewUsers    float64 `json:"new_users"`
	Posts       float64 `json:"posts"`
	Comments    float64 `json:"comments"`
}

// TopUser ranks a user by posts + comments + likes over the range.
type TopUser struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	Posts    int64  `json:"posts"`
	Comments int64  `json:"comments"`
	Likes    int64  `json:"likes"`
	Total    int64  `json:"total"`
}

// DashboardCharts holds parallel arrays ready for a chart library.
type DashboardCharts struct {
	Dates       []string `json:"dates"`
	ActiveUsers []int64  `json:"active_users"`
	NewUsers    []int64  `json:"new_users"`
	Posts       []int64  `json:"posts"`
	Comments    []int64  `json:"comments"`
	Messages    []int64  `json:"messages"`
}

// Dashboard is the admin analytics overview.
type Dashboard struct {
	Days     int               `json:"days"`
	Metrics  []DailyMetrics    `json:"metrics"`
	Totals   DashboardTotals   `json:"totals"`
	Averages DashboardAverages `json:"averages"`
	TopUsers []TopUser         `json:"top_users"`
	Charts   DashboardCharts   `json:"charts"`
}

// UserActivityTotals sums a UserActivityReport.
type UserActivityTotals struct {
	Posts    int64 `json:"posts"`
	Comments int64 `json:"comments"`
	Likes    int64 `json:"likes"`
	Messages int64 `json:"messages"`
	Logins   int64 `json:"logins"`
}

// UserActivityReport is one user's activity over a range of days.
type UserActivityReport struct {
	User       User               `json:"user"`
	Days       int                `json:"days"`
	Activities []UserActivity     `json:"activities"`
	Totals     UserActivityTotals `json:"totals"`
}
