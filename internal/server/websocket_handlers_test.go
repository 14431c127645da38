package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"testing"
	"time"

	"socialnet/internal/notifications"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wsEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// listen serves env.app on a loopback port and wires the hub to Redis.
func (e *testEnv) listen(t *testing.T) string {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, e.srv.hub.StartWiring(ctx, e.srv.notifier))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = e.app.Listener(ln) }()
	t.Cleanup(func() {
		_ = e.srv.hub.Shutdown(context.Background())
		_ = e.app.Shutdown()
	})
	return ln.Addr().String()
}

func (e *testEnv) dial(t *testing.T, addr, token string) *websocket.Conn {
	t.Helper()

	resp := e.do(t, http.MethodPost, "/api/ws/ticket", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Ticket string `json:"ticket"`
	}
	decodeJSON(t, resp, &body)

	u := url.URL{Scheme: "ws", Host: addr, Path: "/api/ws", RawQuery: "ticket=" + body.Ticket}
	conn, hr, err := websocket.DefaultDialer.Dial(u.String(), nil)
	require.NoError(t, err)
	if hr != nil && hr.Body != nil {
		_ = hr.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// nextEvent skips frames until one of the wanted type arrives.
func nextEvent(t *testing.T, conn *websocket.Conn, eventType string) wsEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", eventType)
		var ev wsEvent
		require.NoError(t, json.Unmarshal(data, &ev))
		if ev.Type == eventType {
			return ev
		}
	}
}

func TestWebsocket_SnapshotPresenceAndNotifications(t *testing.T) {
	env := newTestEnv(t)
	alice, aliceToken := env.user(t, "alice")
	bob, bobToken := env.user(t, "bob")
	env.friends(t, alice, bob)
	addr := env.listen(t)

	bobConn := env.dial(t, addr, bobToken)
	ev := nextEvent(t, bobConn, notifications.EventFriendsOnlineSnapshot)
	var snapshot struct {
		Friends []userSummary `json:"friends"`
	}
	require.NoError(t, json.Unmarshal(ev.Payload, &snapshot))
	assert.Empty(t, snapshot.Friends)

	aliceConn := env.dial(t, addr, aliceToken)
	ev = nextEvent(t, aliceConn, notifications.EventFriendsOnlineSnapshot)
	require.NoError(t, json.Unmarshal(ev.Payload, &snapshot))
	require.Len(t, snapshot.Friends, 1)
	assert.Equal(t, bob.ID, snapshot.Friends[0].ID)

	ev = nextEvent(t, bobConn, notifications.EventFriendPresenceChanged)
	var presence struct {
		UserID uint   `json:"user_id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(ev.Payload, &presence))
	assert.Equal(t, alice.ID, presence.UserID)
	assert.Equal(t, "online", presence.Status)

	resp := env.do(t, http.MethodPost, "/api/messages", aliceToken, map[string]interface{}{
		"receiver_id": bob.ID,
		"content":     "are you there?",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	ev = nextEvent(t, bobConn, notifications.EventNotification)
	var n struct {
		Type     string `json:"notification_type"`
		SenderID *uint  `json:"sender_id"`
	}
	require.NoError(t, json.Unmarshal(ev.Payload, &n))
	assert.Equal(t, "message", n.Type)
	require.NotNil(t, n.SenderID)
	assert.Equal(t, alice.ID, *n.SenderID)

	require.NoError(t, aliceConn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	ev = nextEvent(t, bobConn, notifications.EventFriendPresenceChanged)
	require.NoError(t, json.Unmarshal(ev.Payload, &presence))
	assert.Equal(t, "offline", presence.Status)
}

func TestWebsocket_RejectsBadTicket(t *testing.T) {
	env := newTestEnv(t)
	addr := env.listen(t)

	u := url.URL{Scheme: "ws", Host: addr, Path: "/api/ws", RawQuery: "ticket=forged"}
	_, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
