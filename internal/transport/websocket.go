package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketDialer connects to a host bridge exposing the IPC channel over
// WebSocket. Each text message carries one frame without delimiter.
type WebSocketDialer struct {
	opts Options
}

// NewWebSocketDialer creates a WebSocket dialer.
func NewWebSocketDialer(opts Options) *WebSocketDialer {
	return &WebSocketDialer{opts: opts.withDefaults()}
}

// Dial starts connecting to the ws:// or wss:// URL in the background.
func (d *WebSocketDialer) Dial(name, url string) Conn {
	ctx, cancel := context.WithCancel(context.Background())
	c := &wsConn{
		name:   name,
		url:    url,
		opts:   d.opts,
		events: make(chan Event, eventBufferSize),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go c.readPump(ctx)
	return c
}

type wsConn struct {
	name   string
	url    string
	opts   Options
	events chan Event
	done   chan struct{}
	cancel context.CancelFunc

	mu        sync.Mutex // guards ws and serializes writes
	ws        *websocket.Conn
	closeOnce sync.Once
}

func (c *wsConn) Events() <-chan Event {
	return c.events
}

// readDeadline allows two missed pings before the peer is considered gone.
func (c *wsConn) readDeadline() time.Duration {
	return 2 * c.opts.PingInterval
}

// readPump dials, then reads messages from the WebSocket connection.
func (c *wsConn) readPump(ctx context.Context) {
	defer close(c.events)

	dialer := websocket.Dialer{HandshakeTimeout: c.opts.DialTimeout}
	ws, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		if ctx.Err() == nil {
			c.emit(Event{Kind: EventError, Err: fmt.Errorf("dial %s: %w", c.url, err)})
		}
		return
	}
	ws.SetReadLimit(int64(c.opts.MaxFrameSize))

	c.mu.Lock()
	if c.isClosed() {
		c.mu.Unlock()
		ws.Close()
		return
	}
	c.ws = ws
	c.mu.Unlock()

	ws.SetReadDeadline(time.Now().Add(c.readDeadline()))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(c.readDeadline()))
		return nil
	})

	go c.pingPump(ws)
	c.emit(Event{Kind: EventConnect})

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			if !c.isClosed() && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.emit(Event{Kind: EventError, Err: fmt.Errorf("read %s: %w", c.url, err)})
			}
			c.emit(Event{Kind: EventDisconnect})
			return
		}

		event, data, err := DecodeFrame(message)
		if err != nil || event != MessageEvent {
			continue
		}
		c.emit(Event{Kind: EventMessage, Data: data})
	}
}

// pingPump keeps the connection alive until it is closed.
func (c *wsConn) pingPump(ws *websocket.Conn) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.opts.WriteTimeout)
			if err := ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

func (c *wsConn) emit(ev Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

func (c *wsConn) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Send writes one message frame as a text message.
func (c *wsConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isClosed() {
		return ErrClosed
	}
	if c.ws == nil {
		return ErrNotConnected
	}

	out, err := EncodeFrame(MessageEvent, data)
	if err != nil {
		return err
	}
	c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, out)
}

// Close sends a close message and tears the connection down.
func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.cancel()

		c.mu.Lock()
		if c.ws != nil {
			deadline := time.Now().Add(c.opts.WriteTimeout)
			c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			err = c.ws.Close()
		}
		c.mu.Unlock()
	})
	return err
}
