// Package transport provides duplex connections to the host's IPC endpoint.
//
// A Dialer opens a Conn without blocking; the outcome of the connection
// attempt and everything after it is reported on Conn.Events in delivery
// order. The events channel is closed after the last event.
package transport

import (
	"errors"
	"strings"
	"time"
)

const (
	defaultDialTimeout  = 5 * time.Second
	defaultWriteTimeout = 10 * time.Second
	defaultPingInterval = 30 * time.Second
	defaultMaxFrameSize = 8 * 1024 * 1024 // 8 MB
	eventBufferSize     = 64
)

var (
	ErrNotConnected  = errors.New("transport: not connected")
	ErrClosed        = errors.New("transport: connection closed")
	ErrFrameTooLarge = errors.New("transport: frame too large")
)

// EventKind distinguishes connection notifications.
type EventKind int

const (
	EventConnect EventKind = iota
	EventMessage
	EventError
	EventDisconnect
)

func (k EventKind) String() string {
	switch k {
	case EventConnect:
		return "connect"
	case EventMessage:
		return "message"
	case EventError:
		return "error"
	case EventDisconnect:
		return "disconnect"
	default:
		return "unknown"
	}
}

// Event is a single notification from a connection.
type Event struct {
	Kind EventKind
	Data []byte // EventMessage only
	Err  error  // EventError only
}

// Conn is one connection to a named channel.
type Conn interface {
	Events() <-chan Event
	Send(data []byte) error
	Close() error
}

// Dialer opens connections. name is the caller's own endpoint name, path the
// address of the host's listening channel.
type Dialer interface {
	Dial(name, path string) Conn
}

// Options tunes the adapters. Zero fields take defaults.
type Options struct {
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	PingInterval time.Duration
	MaxFrameSize int
}

// DefaultOptions returns the adapter defaults.
func DefaultOptions() Options {
	return Options{
		DialTimeout:  defaultDialTimeout,
		WriteTimeout: defaultWriteTimeout,
		PingInterval: defaultPingInterval,
		MaxFrameSize: defaultMaxFrameSize,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.DialTimeout <= 0 {
		o.DialTimeout = d.DialTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = d.WriteTimeout
	}
	if o.PingInterval <= 0 {
		o.PingInterval = d.PingInterval
	}
	if o.MaxFrameSize <= 0 {
		o.MaxFrameSize = d.MaxFrameSize
	}
	return o
}

// ForPath returns the adapter serving path: WebSocket for ws:// and wss://
// URLs, a Unix domain socket otherwise.
func ForPath(path string, opts Options) Dialer {
	if IsWebSocketPath(path) {
		return NewWebSocketDialer(opts)
	}
	return NewSocketDialer(opts)
}

// IsWebSocketPath reports whether path is a WebSocket URL.
func IsWebSocketPath(path string) bool {
	return strings.HasPrefix(path, "ws://") || strings.HasPrefix(path, "wss://")
}
