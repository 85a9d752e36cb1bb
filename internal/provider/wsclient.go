// Package provider implements a websocket-backed call provider client.
//
// The provider speaks a small JSON protocol: we send start/stop/mute control
// frames, it streams lifecycle and transcript events back on the same
// connection.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// wireFrame is the JSON envelope exchanged with the websocket provider.
type wireFrame struct {
	Type       string      `json:"type"`
	Config     *CallConfig `json:"config,omitempty"`
	Role       string      `json:"role,omitempty"`
	Transcript string      `json:"transcript,omitempty"`
	Sequence   int         `json:"sequence,omitempty"`
	Muted      bool        `json:"muted,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// WSClient is a CallProvider over a websocket connection.
type WSClient struct {
	url    string
	dialer *websocket.Dialer

	mu      sync.Mutex
	conn    *websocket.Conn
	started bool

	events    chan Event
	closeOnce sync.Once
}

// Compile-time check that WSClient implements CallProvider.
var _ CallProvider = (*WSClient)(nil)

// NewWSClient creates a websocket call-provider client for the given URL.
func NewWSClient(url string) *WSClient {
	return &WSClient{
		url:    url,
		dialer: websocket.DefaultDialer,
		events: make(chan Event, 64),
	}
}

// Start dials the provider, sends the start frame, and begins the read loop.
func (c *WSClient) Start(ctx context.Context, cfg CallConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return fmt.Errorf("provider already started")
	}

	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		slog.Error("WSClient Start dial failed", "error", err, "url", c.url)
		return fmt.Errorf("provider dial failed: %w", err)
	}

	if err := conn.WriteJSON(wireFrame{Type: "start", Config: &cfg}); err != nil {
		conn.Close()
		slog.Error("WSClient Start handshake failed", "error", err)
		return fmt.Errorf("provider start frame failed: %w", err)
	}

	c.conn = conn
	c.started = true
	go c.readLoop(conn)

	slog.Info("WSClient call started", "url", c.url, "voice", cfg.Voice)
	return nil
}

// readLoop decodes provider frames into events until the connection drops.
func (c *WSClient) readLoop(conn *websocket.Conn) {
	defer c.closeEvents()
	for {
		var frame wireFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("WSClient connection closed by provider")
				return
			}
			c.mu.Lock()
			started := c.started
			c.mu.Unlock()
			if started {
				slog.Error("WSClient read failed", "error", err)
				c.events <- Event{Type: EventError, Cause: err.Error()}
			}
			return
		}

		switch frame.Type {
		case "speech-start":
			c.events <- Event{Type: EventSpeechStart}
		case "speech-end":
			c.events <- Event{Type: EventSpeechEnd}
		case "call-start":
			c.events <- Event{Type: EventCallStart}
		case "call-end":
			c.events <- Event{Type: EventCallEnd}
		case "message":
			c.events <- Event{
				Type:        EventMessage,
				Role:        frame.Role,
				Content:     frame.Transcript,
				RawSequence: frame.Sequence,
			}
		case "error":
			c.events <- Event{Type: EventError, Cause: frame.Error}
		default:
			slog.Debug("WSClient ignoring unknown frame type", "type", frame.Type)
		}
	}
}

// Stop sends the stop frame and closes the connection. The provider's own
// call-end may still arrive first; consumers treat duplicates as no-ops.
func (c *WSClient) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	c.started = false
	if err := c.conn.WriteJSON(wireFrame{Type: "stop"}); err != nil {
		slog.Warn("WSClient Stop frame failed", "error", err)
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Mute toggles the candidate audio track.
func (c *WSClient) Mute(muted bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("provider not connected")
	}
	return c.conn.WriteJSON(wireFrame{Type: "mute", Muted: muted})
}

// Events returns the provider event stream.
func (c *WSClient) Events() <-chan Event {
	return c.events
}

func (c *WSClient) closeEvents() {
	c.closeOnce.Do(func() { close(c.events) })
}
