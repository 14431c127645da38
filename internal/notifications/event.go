package notifications

import (
	"encoding/json"
	"time"

	"socialnet/internal/models"
)

// Event types pushed over the notification socket.
const (
	EventNotification = "notification"
	EventUnreadCounts = "unread_counts"

	EventFriendRequestRejected  = "friend_request_rejected"
	EventFriendRequestCancelled = "friend_request_cancelled"
	EventFriendRemoved          = "friend_removed"
	EventFriendPresenceChanged  = "friend_presence_changed"
	EventFriendsOnlineSnapshot  = "friends_online_snapshot"
	EventPostCreated            = "post_created"
)

// Event is the envelope written to websocket clients.
type Event struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// EncodeEvent marshals an event envelope to its wire form.
func EncodeEvent(eventType string, payload interface{}) (string, error) {
	b, err := json.Marshal(Event{Type: eventType, Payload: payload, Timestamp: time.Now().UTC()})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// notificationPayload is the client view of a stored notification.
type notificationPayload struct {
	ID       uint                    `json:"id"`
	Type     models.NotificationType `json:"notification_type"`
	Message  string                  `json:"message"`
	Link     string                  `json:"link,omitempty"`
	SenderID *uint                   `json:"sender_id,omitempty"`
	Created  time.Time               `json:"created_at"`
}

func payloadFor(n *models.Notification) notificationPayload {
	return notificationPayload{
		ID:       n.ID,
		Type:     n.Type,
		Message:  n.Message,
		Link:     n.Link,
		SenderID: n.SenderID,
		Created:  n.CreatedAt,
	}
}
