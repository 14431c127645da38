package models

import "time"

// Banner is a promotional banner shown on the home feed.
type Banner struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Title       string     `gorm:"size:200;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	ImageURL    string     `json:"image_url"`
	URL         string     `json:"url"`
	IsActive    bool       `gorm:"not null;index" json:"is_active"`
	SortOrder   int        `gorm:"not null;default:0" json:"sort_order"`
	StartDate   time.Time  `gorm:"not null" json:"start_date"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IsLive reports whether the banner should be shown at now.
func (b *Banner) IsLive(now time.Time) bool {
	if !b.IsActive || b.StartDate.After(now) {
		return false
	}
	return b.EndDate == nil || !b.EndDate.Before(now)
}
