package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"roo-task/internal/protocol"
	"roo-task/internal/session"
)

const (
	DefaultPollInterval     = 250 * time.Millisecond
	DefaultHandshakeTimeout = 10 * time.Second
)

var (
	ErrConnectionTimeout = errors.New("task: connection timeout")
	ErrNotDelivered      = errors.New("task: command not delivered")
	ErrHostDisconnected  = errors.New("task: host disconnected before the task finished")
)

// Session is the part of session.Client a run needs.
type Session interface {
	Subscribe(session.Observer) (unsubscribe func())
	Connect()
	Disconnect()
	IsReady() bool
	ClientID() (string, bool)
	Send(protocol.Envelope) bool
	LastError() error
}

// Runner sends one task command over a session and waits for that task to
// finish.
type Runner struct {
	Session Session

	// Display receives the final message text.
	Display func(text string)
	Logger  *zerolog.Logger

	PollInterval     time.Duration
	HandshakeTimeout time.Duration
}

func (r *Runner) logger() zerolog.Logger {
	if r.Logger == nil {
		return zerolog.Nop()
	}
	return *r.Logger
}

// Run connects, waits for the handshake, sends cmd once and blocks until the
// correlated task is done or ctx is cancelled. Cancellation is not an error:
// it disconnects and returns an outcome with ReasonCancelled.
func (r *Runner) Run(ctx context.Context, cmd protocol.TaskCommand) (Outcome, error) {
	log := r.logger()
	corr := NewCorrelator(r.Display)

	lost := make(chan struct{}, 1)
	unsubscribe := r.Session.Subscribe(corr)
	defer unsubscribe()
	unwatch := r.Session.Subscribe(session.Funcs{OnDisconnected: func() {
		select {
		case lost <- struct{}{}:
		default:
		}
	}})
	defer unwatch()

	r.Session.Connect()

	if err := r.awaitReady(ctx); err != nil {
		r.Session.Disconnect()
		if ctx.Err() != nil {
			corr.Cancel()
			log.Info().Msg("cancelled during handshake")
			return corr.Outcome(), nil
		}
		return corr.Outcome(), err
	}

	clientID, _ := r.Session.ClientID()
	env, err := protocol.NewTaskCommandEnvelope(clientID, cmd)
	if err != nil {
		r.Session.Disconnect()
		return corr.Outcome(), err
	}
	if !r.Session.Send(env) {
		r.Session.Disconnect()
		return corr.Outcome(), fmt.Errorf("%w: %s", ErrNotDelivered, cmd.CommandName)
	}
	log.Debug().Str("command", string(cmd.CommandName)).Str("clientId", clientID).Msg("command sent")

	select {
	case <-corr.Done():
		r.Session.Disconnect()
		o := corr.Outcome()
		log.Debug().Str("taskId", o.TaskID).Str("reason", string(o.Reason)).Msg("task done")
		return o, nil
	case <-ctx.Done():
		r.Session.Disconnect()
		corr.Cancel()
		log.Info().Msg("cancelled")
		return corr.Outcome(), nil
	case <-lost:
		// The correlator may have finished on the same event stream.
		select {
		case <-corr.Done():
			return corr.Outcome(), nil
		default:
		}
		for _, seen := range corr.History() {
			log.Debug().Time("at", seen.At).Str("event", seen.EventName).Str("taskId", seen.TaskID).Msg("recent task event")
		}
		return corr.Outcome(), ErrHostDisconnected
	}
}

// awaitReady polls the session until it is identified.
func (r *Runner) awaitReady(ctx context.Context) error {
	interval := r.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	timeout := r.HandshakeTimeout
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}

	if r.Session.IsReady() {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			if r.Session.IsReady() {
				return nil
			}
			if last := r.Session.LastError(); last != nil {
				return fmt.Errorf("%w after %s: %w", ErrConnectionTimeout, timeout, last)
			}
			return fmt.Errorf("%w after %s", ErrConnectionTimeout, timeout)
		case <-ticker.C:
			if r.Session.IsReady() {
				return nil
			}
		}
	}
}
