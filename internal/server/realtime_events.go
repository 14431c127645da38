package server

import (
	"context"
	"time"

	"socialnet/internal/featureflags"
	"socialnet/internal/models"
	"socialnet/internal/notifications"
	"socialnet/internal/observability"
)

type userSummary struct {
	ID             uint   `json:"id"`
	Username       string `json:"username"`
	ProfilePicture string `json:"profile_picture,omitempty"`
}

func summarize(u models.User) userSummary {
	return userSummary{ID: u.ID, Username: u.Username, ProfilePicture: u.ProfilePicture}
}

// publishUserEvent pushes a live event that has no stored notification.
func (s *Server) publishUserEvent(ctx context.Context, userID uint, eventType string, payload map[string]interface{}) {
	if s.dispatcher == nil {
		return
	}
	payload["created_at"] = time.Now().UTC().Format(time.RFC3339Nano)
	s.dispatcher.Publish(ctx, userID, eventType, payload)
}

// publishPostCreated announces a new post to every connected client when the
// live feed is rolled out to its author.
func (s *Server) publishPostCreated(ctx context.Context, post *models.Post) {
	if s.dispatcher == nil || !s.featureFlags.Enabled(featureflags.LiveFeed, post.UserID) {
		return
	}
	s.dispatcher.PublishAll(ctx, notifications.EventPostCreated, map[string]interface{}{
		"post_id":   post.ID,
		"author_id": post.UserID,
		"topics":    topicNames(post.Topics),
	})
}

// notifyFriendsPresence tells userID's friends that they came online or went offline.
func (s *Server) notifyFriendsPresence(ctx context.Context, userID uint, status string) {
	if !s.featureFlags.Enabled(featureflags.Presence, userID) {
		return
	}
	friends, err := s.friendService.ListFriends(ctx, userID)
	if err != nil {
		observability.LogAsyncOperationError(ctx, "presence.list_friends", err, "user_id", userID)
		return
	}
	for _, friend := range friends {
		s.publishUserEvent(ctx, friend.ID, notifications.EventFriendPresenceChanged, map[string]interface{}{
			"user_id": userID,
			"status":  status,
		})
	}
}

func topicNames(topics []models.Topic) []string {
	names := make([]string, 0, len(topics))
	for _, t := range topics {
		names = append(names, t.Name)
	}
	return names
}
