package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	// MaxPostLength bounds post content, in characters.
	MaxPostLength = 5000
	// MaxCommentLength bounds comment content, in characters.
	MaxCommentLength = 2000
)

// Post represents a user's post.
type Post struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	Content  string  `gorm:"type:text;not null" json:"content"`
	ImageURL string  `json:"image_url,omitempty"`
	UserID   uint    `gorm:"not null;index" json:"user_id"`
	User     User    `gorm:"foreignKey:UserID" json:"user"`
	Topics   []Topic `gorm:"many2many:post_topics;" json:"topics,omitempty"`
	// LikesCount is not persisted; computed at query time
	LikesCount int `gorm:"->" json:"likes_count"`
	// CommentsCount is not persisted; computed at query time
	CommentsCount int `gorm:"->" json:"comments_count"`
	// Liked indicates whether the current requesting user liked this post (computed)
	Liked     bool           `gorm:"->" json:"liked"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Like records that a user liked a post. One row per (user, post).
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_like_user_post" json:"user_id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_like_user_post;index" json:"post_id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// LikeToggleResult is returned by the like toggle.
type LikeToggleResult struct {
	Liked      bool  `json:"liked"`
	LikesCount int64 `json:"likes_count"`
}

// Comment belongs to exactly one post.
type Comment struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	PostID    uint           `gorm:"not null;index" json:"post_id"`
	UserID    uint           `gorm:"not null;index" json:"user_id"`
	Content   string         `gorm:"type:text;not null" json:"content"`
	User      User           `gorm:"foreignKey:UserID" json:"user"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
