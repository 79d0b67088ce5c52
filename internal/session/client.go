package session

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"roo-task/internal/protocol"
	"roo-task/internal/transport"
)

const namePrefix = "standalone-client-"

// Options configures a Client.
type Options struct {
	// Dialer defaults to transport.ForPath for the client's path.
	Dialer transport.Dialer
	// Logger defaults to a no-op logger.
	Logger *zerolog.Logger
}

// Client owns one connection to the host and the session established over
// it. One Client is one logical session: do not share it across tasks.
//
// Observers are invoked from the goroutine consuming transport events, or
// from the goroutine calling Disconnect for the final Disconnected
// notification.
type Client struct {
	path   string
	name   string
	dialer transport.Dialer
	logger zerolog.Logger

	mu       sync.Mutex
	state    State
	conn     transport.Conn
	identity *Identity
	lastErr  error

	subMu sync.RWMutex
	subs  []subscription
}

type subscription struct {
	id  string
	obs Observer
}

// New creates a disconnected client for the channel at path.
func New(path string, opts Options) *Client {
	dialer := opts.Dialer
	if dialer == nil {
		dialer = transport.ForPath(path, transport.DefaultOptions())
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	name := newName()
	return &Client{
		path:   path,
		name:   name,
		dialer: dialer,
		logger: logger.With().Str("client", name).Logger(),
	}
}

// newName returns a random per-run endpoint name.
func newName() string {
	return namePrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// Subscribe registers o for notifications and returns a function removing it.
func (c *Client) Subscribe(o Observer) (unsubscribe func()) {
	id := uuid.NewString()

	c.subMu.Lock()
	c.subs = append(c.subs, subscription{id: id, obs: o})
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		for i, s := range c.subs {
			if s.id == id {
				c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

// emit delivers one notification to all observers.
func (c *Client) emit(notify func(Observer)) {
	c.subMu.RLock()
	subs := make([]subscription, len(c.subs))
	copy(subs, c.subs)
	c.subMu.RUnlock()

	for _, s := range subs {
		notify(s.obs)
	}
}

// Connect starts connecting to the host. It is a no-op unless the client is
// disconnected.
func (c *Client) Connect() {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.state = StateConnecting
	c.lastErr = nil
	conn := c.dialer.Dial(c.name, c.path)
	c.conn = conn
	c.mu.Unlock()

	c.logger.Debug().Str("path", c.path).Msg("connecting")
	go c.consume(conn)
}

// consume handles the events of one connection in delivery order.
func (c *Client) consume(conn transport.Conn) {
	for ev := range conn.Events() {
		switch ev.Kind {
		case transport.EventConnect:
			c.onConnect(conn)
		case transport.EventDisconnect:
			c.onDisconnect(conn)
			conn.Close()
		case transport.EventMessage:
			c.onMessage(conn, ev.Data)
		case transport.EventError:
			c.onError(conn, ev.Err)
		}
	}
	// The adapter is gone; converge even if it never reported a disconnect.
	c.onDisconnect(conn)
}

func (c *Client) onConnect(conn transport.Conn) {
	c.mu.Lock()
	if c.conn != conn || c.state != StateConnecting {
		c.mu.Unlock()
		return
	}
	c.state = StateConnected
	c.mu.Unlock()

	c.logger.Debug().Msg("connected")
	c.emit(func(o Observer) { o.Connected() })
}

// onDisconnect resets the session. Only the first call for the current
// connection has an effect.
func (c *Client) onDisconnect(conn transport.Conn) {
	c.mu.Lock()
	if conn == nil || c.conn != conn {
		c.mu.Unlock()
		return
	}
	wasConnected := c.state == StateConnected || c.state == StateIdentified
	c.state = StateDisconnected
	c.identity = nil
	c.conn = nil
	c.mu.Unlock()

	if !wasConnected {
		return
	}
	c.logger.Debug().Msg("disconnected")
	c.emit(func(o Observer) { o.Disconnected() })
}

func (c *Client) onMessage(conn transport.Conn, data []byte) {
	env, ok := protocol.Decode(data, protocol.OriginClient)
	if !ok {
		return
	}

	switch env.Type {
	case protocol.KindAck:
		ack, err := env.Ack()
		if err != nil {
			return
		}
		id := Identity{ClientID: ack.ClientID, PID: ack.PID, PPID: ack.PPID}

		c.mu.Lock()
		if c.conn != conn || (c.state != StateConnected && c.state != StateIdentified) {
			c.mu.Unlock()
			return
		}
		c.identity = &id
		c.state = StateIdentified
		c.mu.Unlock()

		c.logger.Debug().Str("clientId", id.ClientID).Int("pid", id.PID).Msg("identified")
		c.emit(func(o Observer) { o.Identified(id) })

	case protocol.KindTaskEvent:
		ev, err := env.TaskEvent()
		if err != nil {
			return
		}

		c.mu.Lock()
		current := c.conn == conn
		c.mu.Unlock()
		if !current {
			return
		}
		c.emit(func(o Observer) { o.TaskEvent(ev) })
	}
}

func (c *Client) onError(conn transport.Conn, err error) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.lastErr = err
	c.mu.Unlock()

	c.logger.Warn().Err(err).Str("path", c.path).Msg("ipc connection error")
	c.logger.Warn().Msgf("is the host listening? start VS Code with `ROO_CODE_IPC_SOCKET_PATH=%s code <workspace_path>`", c.path)
	c.Disconnect()
}

// Send forwards env to the host and reports whether it was handed to the
// transport. It is a silent no-op unless the session is identified. The
// envelope is stamped with the client origin and, when unset, the client id.
func (c *Client) Send(env protocol.Envelope) bool {
	c.mu.Lock()
	conn := c.conn
	if c.state != StateIdentified || conn == nil || c.identity == nil {
		c.mu.Unlock()
		return false
	}
	env.Origin = protocol.OriginClient
	if env.ClientID == "" {
		env.ClientID = c.identity.ClientID
	}
	c.mu.Unlock()

	data, err := protocol.Encode(env)
	if err != nil {
		c.logger.Warn().Err(err).Str("type", string(env.Type)).Msg("encode envelope")
		return false
	}
	if err := conn.Send(data); err != nil {
		c.logger.Warn().Err(err).Str("type", string(env.Type)).Msg("send envelope")
		return false
	}
	return true
}

// Disconnect tears the connection down and resets the session. Transport
// errors are absorbed. It is a no-op when already disconnected.
func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	if conn == nil && c.state == StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("close transport")
		}
	}
	c.onDisconnect(conn)
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether the transport is connected.
func (c *Client) IsConnected() bool {
	s := c.State()
	return s == StateConnected || s == StateIdentified
}

// IsReady reports whether the client is connected and identified.
func (c *Client) IsReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return (c.state == StateConnected || c.state == StateIdentified) && c.identity != nil
}

// SocketPath returns the host channel address.
func (c *Client) SocketPath() string {
	return c.path
}

// Name returns the client's ephemeral endpoint name.
func (c *Client) Name() string {
	return c.name
}

// ClientID returns the host-assigned client id, if identified.
func (c *Client) ClientID() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity == nil {
		return "", false
	}
	return c.identity.ClientID, true
}

// Identity returns the session identity, if identified.
func (c *Client) Identity() (Identity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity == nil {
		return Identity{}, false
	}
	return *c.identity, true
}

// LastError returns the most recent transport error of the current or last
// connection attempt.
func (c *Client) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}
