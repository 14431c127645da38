package models

import "time"

// NotificationType tags what a notification is about.
type NotificationType string

const (
	NotificationFriendRequest         NotificationType = "friend_request"
	NotificationFriendRequestAccepted NotificationType = "friend_request_accepted"
	NotificationMessage               NotificationType = "message"
)

// MaxNotificationMessageLength bounds the notification body.
const MaxNotificationMessageLength = 255

// Notification is a one-way record informing Recipient of an event.
type Notification struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	RecipientID uint             `gorm:"not null;index:idx_notifications_recipient_read,priority:1" json:"recipient_id"`
	SenderID    *uint            `gorm:"index" json:"sender_id,omitempty"`
	Type        NotificationType `gorm:"column:notification_type;size:50;not null" json:"notification_type"`
	Message     string           `gorm:"size:255;not null" json:"message"`
	Link        string           `json:"link,omitempty"`
	IsRead      bool             `gorm:"not null;default:false;index:idx_notifications_recipient_read,priority:2" json:"is_read"`
	CreatedAt   time.Time        `json:"created_at"`

	Sender *User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}

// NewNotification builds a notification, truncating the body to the column limit.
func NewNotification(recipientID uint, senderID *uint, kind NotificationType, message, link string) *Notification {
	if r := []rune(message); len(r) > MaxNotificationMessageLength {
		message = string(r[:MaxNotificationMessageLength])
	}
	return &Notification{
		RecipientID: recipientID,
		SenderID:    senderID,
		Type:        kind,
		Message:     message,
		Link:        link,
	}
}
