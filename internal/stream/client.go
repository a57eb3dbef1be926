package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"truthengine/internal/config"
	"truthengine/internal/logging"
)

// Frame is one decoded server message.
type Frame struct {
	Type    string
	Payload json.RawMessage
}

// Client is a reconnecting protocol client. On connection loss it backs
// off through the Reconnector state machine and resumes its session by
// id; once the attempt ceiling is exhausted it force-completes the
// client-visible session instead of hanging.
type Client struct {
	url    string
	reconn *Reconnector

	mu        sync.Mutex
	ws        *websocket.Conn
	sessionID string

	frames chan Frame
}

// NewClient builds a client for the given websocket URL.
func NewClient(url string, cfg *config.Config) *Client {
	return &Client{
		url: url,
		reconn: NewReconnector(
			cfg.ReconnectBaseDelay(),
			cfg.ReconnectMaxDelay(),
			cfg.Stream.MaxReconnectAttempts,
		),
		frames: make(chan Frame, 256),
	}
}

// Frames delivers decoded server messages in arrival order. The channel
// closes when Run returns.
func (c *Client) Frames() <-chan Frame { return c.frames }

// SessionID returns the session this client is tracking, if any.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Run connects and reads until the context ends or reconnection is
// exhausted.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.frames)

	for {
		if err := c.connect(ctx); err != nil {
			if next, ok := c.failAndWait(ctx, err); !ok {
				return next
			}
			continue
		}

		c.reconn.Succeed()
		err := c.readFrames(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if next, ok := c.failAndWait(ctx, err); !ok {
			return next
		}
	}
}

// Send transmits one client message on the current connection.
func (c *Client) Send(msg Inbound) error {
	frame, err := EncodeInbound(msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return fmt.Errorf("not connected")
	}
	return ws.WriteMessage(websocket.TextMessage, frame)
}

func (c *Client) connect(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	ws, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}

	c.mu.Lock()
	c.ws = ws
	sessionID := c.sessionID
	c.mu.Unlock()

	// Reconnects resume the tracked session; the server replays the
	// snapshot before live events continue.
	if sessionID != "" {
		return c.Send(ResumeSession{SessionID: sessionID})
	}
	return nil
}

func (c *Client) readFrames(ctx context.Context) error {
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()

	// The watcher lives only as long as this connection's read loop;
	// reconnect cycles must not accumulate blocked goroutines.
	connDone := make(chan struct{})
	defer close(connDone)
	go func() {
		select {
		case <-ctx.Done():
			_ = ws.Close()
		case <-connDone:
		}
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return err
		}

		tag, payload, err := DecodeFrame(data)
		if err != nil {
			logging.Stream("client: dropping malformed frame: %v", err)
			continue
		}
		c.trackSession(tag, payload)

		select {
		case c.frames <- Frame{Type: tag, Payload: payload}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// trackSession records the session id from the first snapshot or
// lifecycle event so reconnects can resume it.
func (c *Client) trackSession(tag string, payload json.RawMessage) {
	if c.SessionID() != "" || len(payload) == 0 {
		return
	}
	var probe struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil || probe.SessionID == "" {
		return
	}
	c.mu.Lock()
	c.sessionID = probe.SessionID
	c.mu.Unlock()
}

// failAndWait advances the reconnect state machine. When the ceiling is
// exhausted the client emits a synthetic terminal frame so the consumer
// is never left hanging.
func (c *Client) failAndWait(ctx context.Context, cause error) (error, bool) {
	delay, ok := c.reconn.Fail()
	if !ok {
		logging.Stream("client: reconnect attempts exhausted after %d failures", c.reconn.Attempt())
		c.forceComplete(cause)
		return fmt.Errorf("reconnect exhausted: %w", cause), false
	}

	logging.Stream("client: connection lost (%v), retrying in %s", cause, delay)
	select {
	case <-time.After(delay):
		return nil, true
	case <-ctx.Done():
		return ctx.Err(), false
	}
}

// forceComplete delivers a synthetic completed frame for the tracked
// session.
func (c *Client) forceComplete(cause error) {
	payload, _ := json.Marshal(map[string]string{
		"session_id": c.SessionID(),
		"verdict":    "completed",
		"reason":     "connection lost and reconnection exhausted: " + cause.Error(),
	})
	select {
	case c.frames <- Frame{Type: "final_result", Payload: payload}:
	default:
	}
}
