package notifications

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"socialnet/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10

	// Inbound frames are pings and small acks only.
	maxFrameSize = 4096
	sendBuffer   = 256
)

var errClientStopped = errors.New("websocket client stopped")

var droppedNotice = []byte(`{"type":"messages_dropped","payload":{"reason":"buffer_full"}}`)

// Conn is the part of a websocket connection a Client drives.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// WSHub is implemented by hubs that own clients.
type WSHub interface {
	UnregisterClient(c *Client)
	Name() string
}

// Client is one websocket connection of a user. The hub queues frames on
// Send; Serve writes them out and keeps the connection alive.
type Client struct {
	Hub    WSHub
	Conn   Conn
	UserID uint
	Send   chan []byte

	// OnFrame, if set, receives every frame read from the peer.
	OnFrame func(*Client, []byte)

	// writeMu serializes frames; the websocket allows one writer at a time.
	writeMu  sync.Mutex
	done     chan struct{}
	stopOnce sync.Once
}

func NewClient(hub WSHub, conn Conn, userID uint) *Client {
	return &Client{
		Hub:    hub,
		Conn:   conn,
		UserID: userID,
		Send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
}

// Serve runs the connection until the peer goes away or a write fails,
// then unregisters the client. It blocks.
func (c *Client) Serve() {
	go c.writeLoop()
	c.readLoop()
	c.stop()
	c.Hub.UnregisterClient(c)
}

func (c *Client) stop() {
	c.stopOnce.Do(func() {
		close(c.done)
		if c.Conn != nil {
			_ = c.Conn.Close()
		}
	})
}

func (c *Client) readLoop() {
	c.Conn.SetReadLimit(maxFrameSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Default().Warn("websocket read failed", "user_id", c.UserID, "error", err)
			}
			return
		}
		if c.OnFrame != nil {
			c.OnFrame(c, frame)
		}
	}
}

func (c *Client) writeLoop() {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	// A failed write also ends the read side.
	defer c.stop()

	for {
		var (
			kind = websocket.TextMessage
			data []byte
		)
		select {
		case <-c.done:
			return
		case data = <-c.Send:
		case <-ping.C:
			kind = websocket.PingMessage
		}

		if err := c.write(kind, data); err != nil {
			return
		}
	}
}

func (c *Client) write(kind int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	select {
	case <-c.done:
		return errClientStopped
	default:
	}
	_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.Conn.WriteMessage(kind, data)
}

// goAway sends a close frame and stops the client. Nothing is written after
// the close frame.
func (c *Client) goAway(frame []byte) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	select {
	case <-c.done:
	default:
		if c.Conn != nil {
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.Conn.WriteMessage(websocket.CloseMessage, frame)
		}
	}
	c.stop()
}

// TrySend queues message without blocking. When the buffer is full the
// message is dropped and the client is told to re-fetch its notifications.
func (c *Client) TrySend(message []byte) {
	select {
	case <-c.done:
		observability.WebSocketBackpressureDrops.WithLabelValues("closed").Inc()
		return
	default:
	}

	select {
	case c.Send <- message:
	default:
		observability.WebSocketBackpressureDrops.WithLabelValues("full").Inc()
		slog.Default().Warn("websocket buffer full, dropped message", "user_id", c.UserID, "hub", c.Hub.Name())
		select {
		case c.Send <- droppedNotice:
		default:
		}
	}
}
