package webrtc

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"parlor/internal/infrastructure/signal"
	"parlor/pkg/retry"

	"github.com/gorilla/websocket"
)

// signalingClient is the client end of the signaling websocket. Messages
// come in on a single read goroutine and go out under a write lock.
type signalingClient struct {
	conn     *websocket.Conn
	onMsg    func(signal.Message)
	onClosed func(error)

	writeMu   sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
}

// dialSignaling connects to the signaling server with backoff. The
// handler callbacks fire from the read goroutine until close.
func dialSignaling(ctx context.Context, url string, onMsg func(signal.Message), onClosed func(error)) (*signalingClient, error) {
	var conn *websocket.Conn

	cfg := retry.Config{
		MaxAttempts:  3,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
	err := retry.Retry(ctx, cfg, func() error {
		dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
		c, _, err := dialer.DialContext(ctx, url, nil)
		if err != nil {
			return fmt.Errorf("dialing %s: %w", url, err)
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	sc := &signalingClient{
		conn:     conn,
		onMsg:    onMsg,
		onClosed: onClosed,
	}
	go sc.readLoop()
	return sc, nil
}

func (c *signalingClient) readLoop() {
	for {
		var msg signal.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if !c.closed.Load() {
				c.onClosed(err)
			}
			return
		}
		c.onMsg(msg)
	}
}

func (c *signalingClient) send(msg signal.Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.conn.WriteJSON(msg)
}

// close shuts the connection down without firing onClosed.
func (c *signalingClient) close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.conn.Close()
	})
}
