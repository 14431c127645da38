package models

import "time"

// Topic is a hashtag, stored lowercase and deduplicated by name.
type Topic struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:100;uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// TrendingTopic is a hashtag and how often it appeared in recent posts.
type TrendingTopic struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}
