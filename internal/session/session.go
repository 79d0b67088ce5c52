package session

import (
	"fmt"

	"roo-task/internal/protocol"
)

// State represents the connection state of a Client.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateIdentified
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateIdentified:
		return "identified"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Identity is assigned by the host when it acknowledges the handshake.
type Identity struct {
	ClientID string `json:"clientId"`
	PID      int    `json:"pid"`
	PPID     int    `json:"ppid"`
}

// Observer receives client notifications. Each notification is delivered to
// every subscribed observer exactly once, in subscription order.
type Observer interface {
	Connected()
	Disconnected()
	Identified(Identity)
	TaskEvent(protocol.TaskEvent)
}

// Funcs adapts optional callbacks to an Observer.
type Funcs struct {
	OnConnected    func()
	OnDisconnected func()
	OnIdentified   func(Identity)
	OnTaskEvent    func(protocol.TaskEvent)
}

func (f Funcs) Connected() {
	if f.OnConnected != nil {
		f.OnConnected()
	}
}

func (f Funcs) Disconnected() {
	if f.OnDisconnected != nil {
		f.OnDisconnected()
	}
}

func (f Funcs) Identified(id Identity) {
	if f.OnIdentified != nil {
		f.OnIdentified(id)
	}
}

func (f Funcs) TaskEvent(ev protocol.TaskEvent) {
	if f.OnTaskEvent != nil {
		f.OnTaskEvent(ev)
	}
}
