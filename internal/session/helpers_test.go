package session

import (
	"sync"
	"testing"

	"go.uber.org/goleak"

	"roo-task/internal/protocol"
	"roo-task/internal/transport"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeConn is a transport.Conn driven by the test.
type fakeConn struct {
	events chan transport.Event

	mu      sync.Mutex
	sent    [][]byte
	closes  int
	closed  bool
	sendErr error
}

func newFakeConn() *fakeConn {
	return &fakeConn{events: make(chan transport.Event, 32)}
}

func (f *fakeConn) Events() <-chan transport.Event { return f.events }

func (f *fakeConn) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, data)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	if !f.closed {
		f.closed = true
		close(f.events)
	}
	return nil
}

func (f *fakeConn) push(ev transport.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.events <- ev
	}
}

// end closes the events channel the way an adapter does when it is done.
func (f *fakeConn) end() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.events)
	}
}

func (f *fakeConn) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeConn) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
}

func (d *fakeDialer) Dial(name, path string) transport.Conn {
	c := newFakeConn()
	d.mu.Lock()
	d.conns = append(d.conns, c)
	d.mu.Unlock()
	return c
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func (d *fakeDialer) last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[len(d.conns)-1]
}

// recorder counts notifications.
type recorder struct {
	mu           sync.Mutex
	connected    int
	disconnected int
	identities   []Identity
	events       []protocol.TaskEvent
}

func (r *recorder) Connected() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connected++
}

func (r *recorder) Disconnected() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnected++
}

func (r *recorder) Identified(id Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.identities = append(r.identities, id)
}

func (r *recorder) TaskEvent(ev protocol.TaskEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) counts() (connected, identified, disconnected int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected, len(r.identities), r.disconnected
}

func (r *recorder) eventNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		names = append(names, ev.EventName)
	}
	return names
}

func ackMessage(t *testing.T, clientID string) transport.Event {
	t.Helper()
	env, err := protocol.NewAckEnvelope(protocol.Ack{ClientID: clientID, PID: 42, PPID: 1})
	if err != nil {
		t.Fatal(err)
	}
	data, err := protocol.Encode(env)
	if err != nil {
		t.Fatal(err)
	}
	return transport.Event{Kind: transport.EventMessage, Data: data}
}

func taskEventMessage(t *testing.T, name string, args ...interface{}) transport.Event {
	t.Helper()
	ev, err := protocol.NewTaskEvent(name, args...)
	if err != nil {
		t.Fatal(err)
	}
	env, err := protocol.NewTaskEventEnvelope(ev)
	if err != nil {
		t.Fatal(err)
	}
	data, err := protocol.Encode(env)
	if err != nil {
		t.Fatal(err)
	}
	return transport.Event{Kind: transport.EventMessage, Data: data}
}
