package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidMessage is wrapped by every validation failure.
var ErrInvalidMessage = errors.New("protocol: invalid message")

// expectedOrigin is the only origin allowed to produce each kind.
var expectedOrigin = map[Kind]Origin{
	KindConnect:     OriginClient,
	KindDisconnect:  OriginClient,
	KindAck:         OriginServer,
	KindTaskCommand: OriginClient,
	KindTaskEvent:   OriginServer,
}

var validCommands = map[CommandName]bool{
	CommandStartNewTask: true,
	CommandCancelTask:   true,
	CommandCloseTask:    true,
}

// Validate parses a raw envelope received by the receiver side of a
// connection. Returns the parsed Envelope and any validation error.
func Validate(raw []byte, receiver Origin) (*Envelope, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: not an object", ErrInvalidMessage)
	}

	var env Envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", ErrInvalidMessage, err)
	}

	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing 'type' field", ErrInvalidMessage)
	}
	want, ok := expectedOrigin[env.Type]
	if !ok {
		return nil, fmt.Errorf("%w: unknown message type: %s", ErrInvalidMessage, env.Type)
	}
	if env.Origin == "" {
		return nil, fmt.Errorf("%w: missing 'origin' field", ErrInvalidMessage)
	}
	if env.Origin != want {
		return nil, fmt.Errorf("%w: %s must originate from %s, got %s", ErrInvalidMessage, env.Type, want, env.Origin)
	}
	if env.Origin == receiver {
		return nil, fmt.Errorf("%w: %s from %s delivered to %s", ErrInvalidMessage, env.Type, env.Origin, receiver)
	}

	switch env.Type {
	case KindAck:
		a, err := env.Ack()
		if err != nil {
			return nil, err
		}
		if a.ClientID == "" {
			return nil, fmt.Errorf("%w: missing required field 'clientId' in %s data", ErrInvalidMessage, env.Type)
		}

	case KindTaskEvent:
		if !isObject(env.Data) {
			return nil, fmt.Errorf("%w: missing 'data' object in %s", ErrInvalidMessage, env.Type)
		}
		var probe struct {
			EventName string          `json:"eventName"`
			Payload   json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(env.Data, &probe); err != nil {
			return nil, fmt.Errorf("%w: invalid data for %s: %v", ErrInvalidMessage, env.Type, err)
		}
		if probe.EventName == "" {
			return nil, fmt.Errorf("%w: missing required field 'eventName' in %s data", ErrInvalidMessage, env.Type)
		}
		if p := bytes.TrimSpace(probe.Payload); len(p) > 0 && !bytes.Equal(p, []byte("null")) && p[0] != '[' {
			return nil, fmt.Errorf("%w: 'payload' of %s must be a list", ErrInvalidMessage, env.Type)
		}

	case KindTaskCommand:
		if !isObject(env.Data) {
			return nil, fmt.Errorf("%w: missing 'data' object in %s", ErrInvalidMessage, env.Type)
		}
		c, err := env.TaskCommand()
		if err != nil {
			return nil, err
		}
		if !validCommands[c.CommandName] {
			return nil, fmt.Errorf("%w: unknown command: %s", ErrInvalidMessage, c.CommandName)
		}
	}

	return &env, nil
}

// Decode is Validate without the reason: invalid input yields false and is
// otherwise a no-op.
func Decode(raw []byte, receiver Origin) (*Envelope, bool) {
	env, err := Validate(raw, receiver)
	if err != nil {
		return nil, false
	}
	return env, true
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
