// Package ipctest provides an in-process host speaking the IPC protocol over a
// Unix socket, for tests of the client side.
package ipctest

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"roo-task/internal/protocol"
	"roo-task/internal/transport"
)

// Host accepts client connections, acknowledges them and records the
// envelopes they send.
type Host struct {
	Path string

	ln       net.Listener
	sendAck  bool
	pid      int
	commands chan protocol.Envelope

	mu     sync.Mutex
	conns  map[net.Conn]string
	nextID int
	closed bool
	wg     sync.WaitGroup
}

// Option configures a Host.
type Option func(*Host)

// WithoutAck makes the host never acknowledge connections.
func WithoutAck() Option {
	return func(h *Host) { h.sendAck = false }
}

// NewHost starts a host on a fresh socket path. It is closed on test cleanup.
func NewHost(t testing.TB, opts ...Option) *Host {
	t.Helper()

	dir, err := os.MkdirTemp("", "ipc")
	if err != nil {
		t.Fatalf("create socket dir: %v", err)
	}
	path := filepath.Join(dir, "host.sock")

	ln, err := net.Listen("unix", path)
	if err != nil {
		os.RemoveAll(dir)
		t.Fatalf("listen %s: %v", path, err)
	}

	h := &Host{
		Path:     path,
		ln:       ln,
		sendAck:  true,
		pid:      os.Getpid(),
		commands: make(chan protocol.Envelope, 64),
		conns:    make(map[net.Conn]string),
	}
	for _, opt := range opts {
		opt(h)
	}

	h.wg.Add(1)
	go h.acceptLoop()

	t.Cleanup(func() {
		h.Close()
		os.RemoveAll(dir)
	})
	return h
}

func (h *Host) acceptLoop() {
	defer h.wg.Done()
	for {
		nc, err := h.ln.Accept()
		if err != nil {
			return
		}

		h.mu.Lock()
		if h.closed {
			h.mu.Unlock()
			nc.Close()
			return
		}
		h.nextID++
		clientID := fmt.Sprintf("host-client-%d", h.nextID)
		h.conns[nc] = clientID
		h.mu.Unlock()

		if h.sendAck {
			env, _ := protocol.NewAckEnvelope(protocol.Ack{ClientID: clientID, PID: h.pid, PPID: os.Getppid()})
			h.write(nc, env)
		}

		h.wg.Add(1)
		go h.readLoop(nc)
	}
}

func (h *Host) readLoop(nc net.Conn) {
	defer h.wg.Done()
	defer h.drop(nc)

	r := transport.NewFrameReader(nc, 8*1024*1024)
	for {
		body, err := r.Next()
		if err != nil {
			return
		}
		event, data, err := transport.DecodeFrame(body)
		if err != nil || event != transport.MessageEvent {
			continue
		}
		env, ok := protocol.Decode(data, protocol.OriginServer)
		if !ok {
			continue
		}
		select {
		case h.commands <- *env:
		default:
		}
	}
}

func (h *Host) drop(nc net.Conn) {
	h.mu.Lock()
	delete(h.conns, nc)
	h.mu.Unlock()
	nc.Close()
}

func (h *Host) write(nc net.Conn, env protocol.Envelope) error {
	data, err := protocol.Encode(env)
	if err != nil {
		return err
	}
	return transport.WriteFrame(nc, transport.MessageEvent, data)
}

// Received returns the client-originated envelopes the host accepted.
func (h *Host) Received() <-chan protocol.Envelope {
	return h.commands
}

// Clients returns the number of open client connections.
func (h *Host) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *Host) snapshot() []net.Conn {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]net.Conn, 0, len(h.conns))
	for nc := range h.conns {
		out = append(out, nc)
	}
	return out
}

// Emit broadcasts env to every connected client.
func (h *Host) Emit(env protocol.Envelope) {
	for _, nc := range h.snapshot() {
		h.write(nc, env)
	}
}

// EmitTaskEvent broadcasts a task event built from name and args.
func (h *Host) EmitTaskEvent(name string, args ...interface{}) error {
	ev, err := protocol.NewTaskEvent(name, args...)
	if err != nil {
		return err
	}
	env, err := protocol.NewTaskEventEnvelope(ev)
	if err != nil {
		return err
	}
	h.Emit(env)
	return nil
}

// EmitRaw broadcasts data as the payload of a message frame, unvalidated.
func (h *Host) EmitRaw(data []byte) {
	for _, nc := range h.snapshot() {
		transport.WriteFrame(nc, transport.MessageEvent, data)
	}
}

// WriteBytes writes b to every client stream as is.
func (h *Host) WriteBytes(b []byte) {
	for _, nc := range h.snapshot() {
		nc.Write(b)
	}
}

// DisconnectAll closes every client connection.
func (h *Host) DisconnectAll() {
	for _, nc := range h.snapshot() {
		nc.Close()
	}
}

// Close stops accepting and closes every client connection.
func (h *Host) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	h.mu.Unlock()

	h.ln.Close()
	h.DisconnectAll()
	h.wg.Wait()
}
