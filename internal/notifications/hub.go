package notifications

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"

	"socialnet/internal/observability"

	"github.com/gofiber/websocket/v2"
	"github.com/redis/go-redis/v9"
)

const (
	maxConnsPerUser = 12
	maxTotalConns   = 10000

	onlineUsersKey = "ws:online_users"
)

var (
	ErrServerFull = errors.New("server connection limit reached")
	ErrUserFull   = errors.New("user connection limit reached")
)

// presence mirrors this instance's online users into a Redis set shared by
// every instance. With no client it is a no-op and lookups miss.
type presence struct {
	rdb *redis.Client
}

func (p presence) set(userID uint, online bool) {
	if p.rdb == nil {
		return
	}
	ctx := context.Background()
	member := strconv.FormatUint(uint64(userID), 10)
	var err error
	if online {
		err = p.rdb.SAdd(ctx, onlineUsersKey, member).Err()
	} else {
		err = p.rdb.SRem(ctx, onlineUsersKey, member).Err()
	}
	if err != nil {
		slog.Default().Warn("presence update failed", "user_id", userID, "online", online, "error", err)
	}
}

func (p presence) has(userID uint) bool {
	if p.rdb == nil {
		return false
	}
	ok, err := p.rdb.SIsMember(context.Background(), onlineUsersKey, strconv.FormatUint(uint64(userID), 10)).Result()
	return err == nil && ok
}

// Hub tracks the websocket clients connected to this instance, per user.
type Hub struct {
	mu       sync.RWMutex
	users    map[uint]map[*Client]struct{}
	total    int
	presence presence
}

// NewHub returns an empty hub. rdb may be nil on single-instance setups.
func NewHub(rdb *redis.Client) *Hub {
	return &Hub{users: make(map[uint]map[*Client]struct{}), presence: presence{rdb: rdb}}
}

func (h *Hub) Name() string { return "notification hub" }

// Register adds a connection for userID. The first connection of a user
// marks them online.
func (h *Hub) Register(userID uint, conn Conn) (*Client, error) {
	h.mu.Lock()
	switch {
	case h.total >= maxTotalConns:
		h.mu.Unlock()
		return nil, ErrServerFull
	case len(h.users[userID]) >= maxConnsPerUser:
		h.mu.Unlock()
		return nil, ErrUserFull
	}
	set := h.users[userID]
	if set == nil {
		set = make(map[*Client]struct{})
		h.users[userID] = set
	}
	client := NewClient(h, conn, userID)
	set[client] = struct{}{}
	h.total++
	first := len(set) == 1
	h.mu.Unlock()

	observability.WebSocketConnectionsTotal.Inc()
	if first {
		h.presence.set(userID, true)
	}
	return client, nil
}

// UnregisterClient drops the client. Calling it twice is harmless.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	set := h.users[client.UserID]
	_, known := set[client]
	if known {
		delete(set, client)
		h.total--
	}
	last := known && len(set) == 0
	if last {
		delete(h.users, client.UserID)
	}
	h.mu.Unlock()

	if !known {
		return
	}
	observability.WebSocketConnectionsTotal.Dec()
	if last {
		h.presence.set(client.UserID, false)
	}
}

func (h *Hub) each(userID uint, fn func(*Client)) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.users[userID] {
		fn(c)
	}
}

// Broadcast queues message on every connection of userID.
func (h *Hub) Broadcast(userID uint, message string) {
	data := []byte(message)
	h.each(userID, func(c *Client) { c.TrySend(data) })
}

// BroadcastAll queues message on every connection of this instance.
func (h *Hub) BroadcastAll(message string) {
	data := []byte(message)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, set := range h.users {
		for c := range set {
			c.TrySend(data)
		}
	}
}

// IsOnline reports whether the user is connected here or, via Redis, on
// any other instance.
func (h *Hub) IsOnline(userID uint) bool {
	h.mu.RLock()
	local := len(h.users[userID]) > 0
	h.mu.RUnlock()
	return local || h.presence.has(userID)
}

// ConnectionCount is the number of clients on this instance.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.total
}

// StartWiring subscribes to the notifier and forwards each published
// payload to the matching local clients. The subscription is live when it
// returns.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartPatternSubscriber(ctx, func(channel, payload string) {
		if channel == broadcastChannel {
			h.BroadcastAll(payload)
			return
		}
		if userID, ok := parseUserChannel(channel); ok {
			h.Broadcast(userID, payload)
			return
		}
		slog.Default().Warn("notification on unknown channel", "channel", channel)
	})
}

// Shutdown sends every client a going-away close frame, drops them and
// clears their presence.
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	users, total := h.users, h.total
	h.users = make(map[uint]map[*Client]struct{})
	h.total = 0
	h.mu.Unlock()

	closing := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for userID, set := range users {
		for c := range set {
			c.goAway(closing)
		}
		h.presence.set(userID, false)
	}
	observability.WebSocketConnectionsTotal.Sub(float64(total))
	return nil
}
