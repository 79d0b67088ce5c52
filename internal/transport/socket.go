package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// SocketDialer connects to a Unix domain socket speaking node-ipc framing.
type SocketDialer struct {
	opts Options
}

// NewSocketDialer creates a Unix socket dialer.
func NewSocketDialer(opts Options) *SocketDialer {
	return &SocketDialer{opts: opts.withDefaults()}
}

// Dial starts connecting to path in the background.
func (d *SocketDialer) Dial(name, path string) Conn {
	ctx, cancel := context.WithCancel(context.Background())
	c := &socketConn{
		name:   name,
		path:   path,
		opts:   d.opts,
		events: make(chan Event, eventBufferSize),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go c.run(ctx)
	return c
}

type socketConn struct {
	name   string
	path   string
	opts   Options
	events chan Event
	done   chan struct{}
	cancel context.CancelFunc

	mu        sync.Mutex // guards nc and serializes writes
	nc        net.Conn
	closeOnce sync.Once
}

func (c *socketConn) Events() <-chan Event {
	return c.events
}

// run owns the events channel: it dials, then reads frames until the
// connection ends.
func (c *socketConn) run(ctx context.Context) {
	defer close(c.events)

	dialer := net.Dialer{Timeout: c.opts.DialTimeout}
	nc, err := dialer.DialContext(ctx, "unix", c.path)
	if err != nil {
		if ctx.Err() == nil {
			c.emit(Event{Kind: EventError, Err: fmt.Errorf("dial %s: %w", c.path, err)})
		}
		return
	}

	c.mu.Lock()
	if c.isClosed() {
		c.mu.Unlock()
		nc.Close()
		return
	}
	c.nc = nc
	c.mu.Unlock()

	c.emit(Event{Kind: EventConnect})

	reader := NewFrameReader(nc, c.opts.MaxFrameSize)
	for {
		body, err := reader.Next()
		if err != nil {
			if !c.isClosed() && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				c.emit(Event{Kind: EventError, Err: fmt.Errorf("read %s: %w", c.path, err)})
			}
			c.emit(Event{Kind: EventDisconnect})
			return
		}

		event, data, err := DecodeFrame(body)
		if err != nil || event != MessageEvent {
			// Garbled frames and foreign events are not ours to surface.
			continue
		}
		c.emit(Event{Kind: EventMessage, Data: data})
	}
}

// emit delivers ev unless the connection has been closed.
func (c *socketConn) emit(ev Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

func (c *socketConn) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Send writes one message frame.
func (c *socketConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isClosed() {
		return ErrClosed
	}
	if c.nc == nil {
		return ErrNotConnected
	}

	if err := c.nc.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
		return err
	}
	return WriteFrame(c.nc, MessageEvent, data)
}

// Close tears the connection down. Safe to call more than once.
func (c *socketConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.cancel()

		c.mu.Lock()
		if c.nc != nil {
			err = c.nc.Close()
		}
		c.mu.Unlock()
	})
	return err
}
