package protocol

import (
	"encoding/json"
	"fmt"
)

// Kind discriminates envelopes on the wire.
type Kind string

const (
	KindConnect     Kind = "Connect"
	KindDisconnect  Kind = "Disconnect"
	KindAck         Kind = "Ack"
	KindTaskCommand Kind = "TaskCommand"
	KindTaskEvent   Kind = "TaskEvent"
)

// Origin names the side of the connection that produced an envelope.
type Origin string

const (
	OriginClient Origin = "client"
	OriginServer Origin = "server"
)

// Envelope is the unit of exchange between a client and the host.
type Envelope struct {
	Type     Kind            `json:"type"`
	Origin   Origin          `json:"origin"`
	ClientID string          `json:"clientId,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// Ack is the host's handshake reply carrying the session identity.
type Ack struct {
	ClientID string `json:"clientId"`
	PID      int    `json:"pid"`
	PPID     int    `json:"ppid"`
}

// CommandName identifies a task command.
type CommandName string

const (
	CommandStartNewTask CommandName = "StartNewTask"
	CommandCancelTask   CommandName = "CancelTask"
	CommandCloseTask    CommandName = "CloseTask"
)

// TaskCommand is an instruction sent to the host.
type TaskCommand struct {
	CommandName CommandName     `json:"commandName"`
	Data        json.RawMessage `json:"data"`
}

// StartTask is the data of a StartNewTask command.
type StartTask struct {
	Configuration *Configuration `json:"configuration"`
	Text          string         `json:"text,omitempty"`
	Images        []string       `json:"images,omitempty"`
	NewTab        bool           `json:"newTab,omitempty"`
}

// NewStartTask builds a StartNewTask command.
func NewStartTask(start StartTask) (TaskCommand, error) {
	if start.Configuration == nil {
		start.Configuration = NewConfiguration()
	}
	data, err := json.Marshal(start)
	if err != nil {
		return TaskCommand{}, fmt.Errorf("marshal start task: %w", err)
	}
	return TaskCommand{CommandName: CommandStartNewTask, Data: data}, nil
}

// NewCancelTask builds a CancelTask command for taskID.
func NewCancelTask(taskID string) TaskCommand {
	data, _ := json.Marshal(taskID)
	return TaskCommand{CommandName: CommandCancelTask, Data: data}
}

// NewCloseTask builds a CloseTask command for taskID.
func NewCloseTask(taskID string) TaskCommand {
	data, _ := json.Marshal(taskID)
	return TaskCommand{CommandName: CommandCloseTask, Data: data}
}

// StartTask decodes the data of a StartNewTask command.
func (c TaskCommand) StartTask() (StartTask, error) {
	if c.CommandName != CommandStartNewTask {
		return StartTask{}, fmt.Errorf("%w: %s is not %s", ErrInvalidMessage, c.CommandName, CommandStartNewTask)
	}
	var s StartTask
	if err := json.Unmarshal(c.Data, &s); err != nil {
		return StartTask{}, fmt.Errorf("%w: start task data: %v", ErrInvalidMessage, err)
	}
	return s, nil
}

// Task event names the client correlates on.
const (
	EventTaskStarted       = "taskStarted"
	EventMessage           = "message"
	EventAttemptCompletion = "attempt_completion"
	EventTaskCompleted     = "taskCompleted"
	EventTaskAborted       = "taskAborted"
)

// TaskEvent is a notification emitted by the host about a task. The shape of
// Payload depends on EventName.
type TaskEvent struct {
	EventName string            `json:"eventName"`
	Payload   []json.RawMessage `json:"payload"`
}

// TaskMessage is the first payload entry of message events.
type TaskMessage struct {
	TaskID  string      `json:"taskId"`
	Action  string      `json:"action,omitempty"`
	Message ChatMessage `json:"message"`
}

// ChatMessage is a single message produced while a task runs.
type ChatMessage struct {
	TS      int64  `json:"ts,omitempty"`
	Type    string `json:"type,omitempty"`
	Say     string `json:"say,omitempty"`
	Ask     string `json:"ask,omitempty"`
	Text    string `json:"text"`
	Partial bool   `json:"partial"`
}

// NewTaskEvent builds a TaskEvent from arbitrary payload values.
func NewTaskEvent(name string, args ...interface{}) (TaskEvent, error) {
	payload := make([]json.RawMessage, 0, len(args))
	for i, a := range args {
		data, err := json.Marshal(a)
		if err != nil {
			return TaskEvent{}, fmt.Errorf("marshal payload[%d]: %w", i, err)
		}
		payload = append(payload, data)
	}
	return TaskEvent{EventName: name, Payload: payload}, nil
}

// StringArg returns payload[i] as a string.
func (e TaskEvent) StringArg(i int) (string, bool) {
	if i < 0 || i >= len(e.Payload) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(e.Payload[i], &s); err != nil {
		return "", false
	}
	return s, true
}

// MessageArg returns payload[i] as a TaskMessage. A missing partial flag is
// reported as absent rather than false.
func (e TaskEvent) MessageArg(i int) (TaskMessage, bool) {
	if i < 0 || i >= len(e.Payload) {
		return TaskMessage{}, false
	}
	var probe struct {
		TaskID  string `json:"taskId"`
		Message *struct {
			Partial *bool `json:"partial"`
		} `json:"message"`
	}
	if err := json.Unmarshal(e.Payload[i], &probe); err != nil || probe.Message == nil || probe.Message.Partial == nil {
		return TaskMessage{}, false
	}
	var m TaskMessage
	if err := json.Unmarshal(e.Payload[i], &m); err != nil {
		return TaskMessage{}, false
	}
	return m, true
}

// NewTaskCommandEnvelope wraps cmd in a client-originated envelope.
func NewTaskCommandEnvelope(clientID string, cmd TaskCommand) (Envelope, error) {
	data, err := json.Marshal(cmd)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal task command: %w", err)
	}
	return Envelope{
		Type:     KindTaskCommand,
		Origin:   OriginClient,
		ClientID: clientID,
		Data:     data,
	}, nil
}

// NewConnectEnvelope builds a client-originated Connect envelope.
func NewConnectEnvelope(clientID string) Envelope {
	return Envelope{Type: KindConnect, Origin: OriginClient, ClientID: clientID}
}

// NewAckEnvelope builds the host's handshake reply.
func NewAckEnvelope(ack Ack) (Envelope, error) {
	data, err := json.Marshal(ack)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal ack: %w", err)
	}
	return Envelope{Type: KindAck, Origin: OriginServer, ClientID: ack.ClientID, Data: data}, nil
}

// NewTaskEventEnvelope wraps ev in a server-originated envelope.
func NewTaskEventEnvelope(ev TaskEvent) (Envelope, error) {
	if ev.Payload == nil {
		ev.Payload = []json.RawMessage{}
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal task event: %w", err)
	}
	return Envelope{Type: KindTaskEvent, Origin: OriginServer, Data: data}, nil
}

// Encode returns the wire form of env.
func Encode(env Envelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return data, nil
}

// Ack decodes the data of an Ack envelope.
func (e *Envelope) Ack() (Ack, error) {
	if e.Type != KindAck {
		return Ack{}, fmt.Errorf("%w: %s envelope has no ack", ErrInvalidMessage, e.Type)
	}
	var a Ack
	if err := json.Unmarshal(e.Data, &a); err != nil {
		return Ack{}, fmt.Errorf("%w: ack data: %v", ErrInvalidMessage, err)
	}
	return a, nil
}

// TaskEvent decodes the data of a TaskEvent envelope.
func (e *Envelope) TaskEvent() (TaskEvent, error) {
	if e.Type != KindTaskEvent {
		return TaskEvent{}, fmt.Errorf("%w: %s envelope has no task event", ErrInvalidMessage, e.Type)
	}
	var ev TaskEvent
	if err := json.Unmarshal(e.Data, &ev); err != nil {
		return TaskEvent{}, fmt.Errorf("%w: task event data: %v", ErrInvalidMessage, err)
	}
	if ev.Payload == nil {
		ev.Payload = []json.RawMessage{}
	}
	return ev, nil
}

// TaskCommand decodes the data of a TaskCommand envelope.
func (e *Envelope) TaskCommand() (TaskCommand, error) {
	if e.Type != KindTaskCommand {
		return TaskCommand{}, fmt.Errorf("%w: %s envelope has no task command", ErrInvalidMessage, e.Type)
	}
	var c TaskCommand
	if err := json.Unmarshal(e.Data, &c); err != nil {
		return TaskCommand{}, fmt.Errorf("%w: task command data: %v", ErrInvalidMessage, err)
	}
	return c, nil
}
