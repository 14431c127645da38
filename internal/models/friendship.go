// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// FriendRequestStatus represents the lifecycle state of a friend request.
type FriendRequestStatus string

const (
	// FriendRequestPending is the only non-terminal state.
	FriendRequestPending FriendRequestStatus = "pending"
	// FriendRequestAccepted indicates the receiver accepted the request.
	FriendRequestAccepted FriendRequestStatus = "accepted"
	// FriendRequestRejected indicates the receiver declined the request.
	FriendRequestRejected FriendRequestStatus = "rejected"
)

// FriendRequest is a directed proposal from Sender to Receiver.
// Cancellation deletes the row instead of transitioning it.
type FriendRequest struct {
	ID         uint                `gorm:"primaryKey" json:"id"`
	SenderID   uint                `gorm:"not null;uniqueIndex:idx_friend_request_pair" json:"sender_id"`
	ReceiverID uint                `gorm:"not null;uniqueIndex:idx_friend_request_pair;index" json:"receiver_id"`
	Status     FriendRequestStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`

	Sender   User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Receiver User `gorm:"foreignKey:ReceiverID" json:"receiver,omitempty"`
}

// IsPending reports whether the request is still unresolved.
func (r *FriendRequest) IsPending() bool {
	return r.Status == FriendRequestPending
}

// FriendshipStatus represents the status of a materialized friendship.
type FriendshipStatus string

// FriendshipStatusAccepted is the default (and currently only) friendship status.
const FriendshipStatusAccepted FriendshipStatus = "accepted"

// Friendship is an undirected edge stored with User1ID < User2ID.
type Friendship struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	User1ID   uint             `gorm:"not null;uniqueIndex:idx_friendship_pair" json:"user1_id"`
	User2ID   uint             `gorm:"not null;uniqueIndex:idx_friendship_pair;index" json:"user2_id"`
	Status    FriendshipStatus `gorm:"type:varchar(20);not null;default:'accepted'" json:"status"`
	CreatedAt time.Time        `json:"created_at"`

	User1 User `gorm:"foreignKey:User1ID" json:"user1,omitempty"`
	User2 User `gorm:"foreignKey:User2ID" json:"user2,omitempty"`
}

// TableName specifies the table name for GORM
func (Friendship) TableName() string {
	return "friendships"
}

// BeforeCreate enforces canonical pair ordering regardless of the caller.
func (f *Friendship) BeforeCreate(_ *gorm.DB) error {
	f.User1ID, f.User2ID = CanonicalPair(f.User1ID, f.User2ID)
	if f.Status == "" {
		f.Status = FriendshipStatusAccepted
	}
	return nil
}

// Includes reports whether userID is one of the two members.
func (f *Friendship) Includes(userID uint) bool {
	return f.User1ID == userID || f.User2ID == userID
}

// OtherMember returns the member that is not userID.
func (f *Friendship) OtherMember(userID uint) uint {
	if f.User1ID == userID {
		return f.User2ID
	}
	return f.User1ID
}

// CanonicalPair orders two user IDs so the lower one comes first.
func CanonicalPair(a, b uint) (uint, uint) {
	if a > b {
		return b, a
	}
	return a, b
}
