package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents an account and its public profile.
type User struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	Username       string         `gorm:"size:30;uniqueIndex;not null" json:"username"`
	Email          string         `gorm:"uniqueIndex;not null" json:"email"`
	Password       string         `gorm:"not null" json:"-"`
	FirstName      string         `gorm:"size:150" json:"first_name"`
	LastName       string         `gorm:"size:150" json:"last_name"`
	Bio            string         `gorm:"size:500" json:"bio"`
	ProfilePicture string         `json:"profile_picture"`
	MobileNumber   string         `gorm:"size:10" json:"mobile_number,omitempty"`
	DateOfBirth    *time.Time     `json:"date_of_birth,omitempty"`
	Location       string         `gorm:"size:100" json:"location"`
	Website        string         `json:"website"`
	IsAdmin        bool           `gorm:"not null;default:false" json:"is_admin"`
	LastLoginAt    *time.Time     `json:"last_login_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`

	Posts []Post `gorm:"foreignKey:UserID" json:"posts,omitempty"`
}

// Follow is an asymmetric "follower follows following" edge.
type Follow struct {
	FollowerID  uint      `gorm:"primaryKey;autoIncrement:false" json:"follower_id"`
	FollowingID uint      `gorm:"primaryKey;autoIncrement:false;index" json:"following_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName specifies the table name for GORM
func (Follow) TableName() string {
	return "user_follows"
}

// DisplayName returns "First Last" when available, otherwise the username.
func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Username
	}
}
