package server

import (
	"fmt"
	"net/http"
	"testing"

	"socialnet/internal/models"
	"socialnet/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendMessage_RequiresFriendship(t *testing.T) {
	env := newTestEnv(t)
	_, aliceToken := env.user(t, "alice")
	bob, _ := env.user(t, "bob")

	resp := env.do(t, http.MethodPost, "/api/messages", aliceToken, map[string]interface{}{
		"receiver_id": bob.ID,
		"content":     "hi",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestSendMessage_Validation(t *testing.T) {
	env := newTestEnv(t)
	alice, aliceToken := env.user(t, "alice")
	bob, _ := env.user(t, "bob")
	env.friends(t, alice, bob)

	resp := env.do(t, http.MethodPost, "/api/messages", aliceToken, map[string]interface{}{
		"receiver_id": bob.ID,
		"content":     "   ",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/messages", aliceToken, map[string]interface{}{
		"receiver_id": alice.ID,
		"content":     "note to self",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/messages", aliceToken, map[string]interface{}{
		"receiver_id": 9999,
		"content":     "hello?",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestConversationFlow(t *testing.T) {
	env := newTestEnv(t)
	alice, aliceToken := env.user(t, "alice")
	bob, bobToken := env.user(t, "bob")
	env.friends(t, alice, bob)

	for _, content := range []string{"hey bob", "are you there?"} {
		resp := env.do(t, http.MethodPost, "/api/messages", aliceToken, map[string]interface{}{
			"receiver_id": bob.ID,
			"content":     content,
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp := env.do(t, http.MethodGet, "/api/messages/unread-count", bobToken, nil)
	var count map[string]int64
	decodeJSON(t, resp, &count)
	assert.Equal(t, int64(2), count["count"])

	resp = env.do(t, http.MethodGet, "/api/messages/conversations", bobToken, nil)
	var summaries []models.ConversationSummary
	decodeJSON(t, resp, &summaries)
	require.Len(t, summaries, 1)
	assert.Equal(t, alice.ID, summaries[0].OtherUser.ID)
	assert.Equal(t, int64(2), summaries[0].UnreadCount)
	require.NotNil(t, summaries[0].LastMessage)
	assert.Equal(t, "are you there?", summaries[0].LastMessage.Content)

	resp = env.do(t, http.MethodGet, fmt.Sprintf("/api/messages/%d", alice.ID), bobToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view service.ConversationView
	decodeJSON(t, resp, &view)
	assert.Equal(t, int64(2), view.MarkedRead)
	require.Len(t, view.Messages, 2)
	assert.Equal(t, "hey bob", view.Messages[0].Content)

	resp = env.do(t, http.MethodGet, "/api/messages/unread-count", bobToken, nil)
	decodeJSON(t, resp, &count)
	assert.Zero(t, count["count"])

	resp = env.do(t, http.MethodGet, "/api/messages/sent", aliceToken, nil)
	var sent []models.Message
	decodeJSON(t, resp, &sent)
	assert.Len(t, sent, 2)

	// Each message also produced a notification for bob.
	resp = env.do(t, http.MethodGet, "/api/notifications/unread-count", bobToken, nil)
	decodeJSON(t, resp, &count)
	assert.Equal(t, int64(2), count["count"])
}

func TestInbox_MarksReadAfterReturning(t *testing.T) {
	env := newTestEnv(t)
	alice, aliceToken := env.user(t, "alice")
	bob, bobToken := env.user(t, "bob")
	env.friends(t, alice, bob)

	resp := env.do(t, http.MethodPost, "/api/messages", aliceToken, map[string]interface{}{
		"receiver_id": bob.ID,
		"content":     "ping",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/messages/inbox", bobToken, nil)
	var inbox []models.Message
	decodeJSON(t, resp, &inbox)
	require.Len(t, inbox, 1)
	assert.False(t, inbox[0].IsRead)

	resp = env.do(t, http.MethodGet, "/api/messages/inbox", bobToken, nil)
	decodeJSON(t, resp, &inbox)
	require.Len(t, inbox, 1)
	assert.True(t, inbox[0].IsRead)
}

func TestNotifications_ListAndMarkRead(t *testing.T) {
	env := newTestEnv(t)
	_, aliceToken := env.user(t, "alice")
	bob, bobToken := env.user(t, "bob")
	_, carolToken := env.user(t, "carol")

	for _, token := range []string{aliceToken, carolToken} {
		resp := env.do(t, http.MethodPost, fmt.Sprintf("/api/friends/requests/%d", bob.ID), token, nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	var notes []models.Notification
	require.NoError(t, env.db.Where("recipient_id = ?", bob.ID).Order("id").Find(&notes).Error)
	require.Len(t, notes, 2)

	resp := env.do(t, http.MethodPost, fmt.Sprintf("/api/notifications/%d/read", notes[0].ID), aliceToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "other users' notifications are invisible")

	resp = env.do(t, http.MethodPost, fmt.Sprintf("/api/notifications/%d/read", notes[0].ID), bobToken, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/notifications/unread-count", bobToken, nil)
	var count map[string]int64
	decodeJSON(t, resp, &count)
	assert.Equal(t, int64(1), count["count"])

	resp = env.do(t, http.MethodPost, "/api/notifications/read-all", bobToken, nil)
	var marked map[string]int64
	decodeJSON(t, resp, &marked)
	assert.Equal(t, int64(1), marked["marked"])

	resp = env.do(t, http.MethodGet, "/api/notifications", bobToken, nil)
	var listed []models.Notification
	decodeJSON(t, resp, &listed)
	require.Len(t, listed, 2)
	assert.Equal(t, models.NotificationFriendRequest, listed[0].Type)
}
