package notifications

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	fastws "github.com/fasthttp/websocket"
	"github.com/gofiber/websocket/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn feeds queued frames to the reader and records writes.
type fakeConn struct {
	mu      sync.Mutex
	inbound chan []byte
	written [][]byte
	kinds   []int
	closed  chan struct{}
	once    sync.Once

	writers    atomic.Int32
	overlapped atomic.Bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbound: make(chan []byte, 8), closed: make(chan struct{})}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case frame, ok := <-f.inbound:
		if !ok {
			return 0, nil, &fastws.CloseError{Code: websocket.CloseNormalClosure}
		}
		return websocket.TextMessage, frame, nil
	case <-f.closed:
		return 0, nil, errors.New("use of closed connection")
	}
}

func (f *fakeConn) WriteMessage(kind int, data []byte) error {
	if f.writers.Add(1) > 1 {
		f.overlapped.Store(true)
	}
	defer f.writers.Add(-1)
	// Widen the window in which a second writer would show up.
	time.Sleep(100 * time.Microsecond)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.kinds = append(f.kinds, kind)
	if kind == websocket.TextMessage {
		f.written = append(f.written, data)
	}
	return nil
}

func (f *fakeConn) frames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.written...)
}

func (f *fakeConn) writtenKinds() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.kinds...)
}

func (f *fakeConn) SetReadLimit(int64) {}
func (f *fakeConn) SetReadDeadline(time.Time) error { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }
func (f *fakeConn) SetPongHandler(func(string) error) {}
func (f *fakeConn) Close() error { f.once.Do(func() { close(f.closed) }); return nil }

func TestClient_ServeWritesAndReads(t *testing.T) {
	hub := NewHub(nil)
	conn := newFakeConn()
	client, err := hub.Register(5, conn)
	require.NoError(t, err)

	var got [][]byte
	client.OnFrame = func(_ *Client, frame []byte) { got = append(got, frame) }

	client.TrySend([]byte(`{"type":"notification"}`))
	conn.inbound <- []byte(`{"ack":1}`)

	done := make(chan struct{})
	go func() {
		client.Serve()
		close(done)
	}()

	assert.Eventually(t, func() bool { return len(conn.frames()) == 1 }, time.Second, 5*time.Millisecond)
	close(conn.inbound)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after the peer closed")
	}
	assert.Equal(t, [][]byte{[]byte(`{"ack":1}`)}, got)
	assert.Zero(t, hub.ConnectionCount(), "Serve unregisters")
	assert.False(t, hub.IsOnline(5))
}

func TestClient_TrySendAfterStopIsDropped(t *testing.T) {
	hub := NewHub(nil)
	client, err := hub.Register(1, newFakeConn())
	require.NoError(t, err)

	client.stop()
	client.stop()
	client.TrySend([]byte("late"))
	assert.Empty(t, client.Send)
}

func TestClient_FullBufferQueuesNothingMore(t *testing.T) {
	hub := NewHub(nil)
	client, err := hub.Register(1, nil)
	require.NoError(t, err)

	for range sendBuffer {
		client.TrySend([]byte("x"))
	}
	client.TrySend([]byte("overflow"))
	assert.Len(t, client.Send, sendBuffer)
}

func TestHub_ShutdownSerializesCloseFrame(t *testing.T) {
	hub := NewHub(nil)
	conn := newFakeConn()
	client, err := hub.Register(3, conn)
	require.NoError(t, err)

	served := make(chan struct{})
	go func() {
		client.Serve()
		close(served)
	}()

	stopFlood := make(chan struct{})
	flooded := make(chan struct{})
	go func() {
		defer close(flooded)
		for {
			select {
			case <-stopFlood:
				return
			default:
				client.TrySend([]byte(`{"type":"notification"}`))
			}
		}
	}()
	require.Eventually(t, func() bool { return len(conn.frames()) > 5 }, time.Second, time.Millisecond)

	require.NoError(t, hub.Shutdown(context.Background()))
	close(stopFlood)
	<-flooded

	select {
	case <-served:
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after shutdown")
	}
	assert.False(t, conn.overlapped.Load(), "two goroutines wrote at once")
	kinds := conn.writtenKinds()
	require.NotEmpty(t, kinds)
	assert.Equal(t, websocket.CloseMessage, kinds[len(kinds)-1], "close frame is the last write")
}
