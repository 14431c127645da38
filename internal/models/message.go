package models

import "time"

// MaxMessageLength is the upper bound on message content, in characters.
const MaxMessageLength = 10000

// Message is a direct message between two users. It is the single message
// store for the application.
type Message struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	SenderID   uint       `gorm:"not null;index:idx_messages_pair,priority:1" json:"sender_id"`
	ReceiverID uint       `gorm:"not null;index:idx_messages_pair,priority:2;index" json:"receiver_id"`
	Content    string     `gorm:"type:text;not null" json:"content"`
	IsRead     bool       `gorm:"not null;default:false;index" json:"is_read"`
	ReadAt     *time.Time `json:"read_at,omitempty"`
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`

	Sender   User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Receiver User `gorm:"foreignKey:ReceiverID" json:"receiver,omitempty"`
}

// Counterpart returns the user on the other side of the message from viewerID.
func (m *Message) Counterpart(viewerID uint) uint {
	if m.SenderID == viewerID {
		return m.ReceiverID
	}
	return m.SenderID
}

// ConversationSummary is one entry of a user's conversation list.
type ConversationSummary struct {
	OtherUser   User     `json:"other_user"`
	LastMessage *Message `json:"last_message"`
	UnreadCount int64    `json:"unread_count"`
}
