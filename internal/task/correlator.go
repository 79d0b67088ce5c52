// Package task correlates host task events with the task a run started and
// drives a single run from handshake to completion.
package task

import (
	"sync"

	"roo-task/internal/protocol"
	"roo-task/internal/session"
)

// Reason tells why a run finished.
type Reason string

const (
	ReasonMessage   Reason = "message"
	ReasonCompleted Reason = "completed"
	ReasonAborted   Reason = "aborted"
	ReasonCancelled Reason = "cancelled"
)

// Outcome is the state of a correlated run.
type Outcome struct {
	Done    bool
	TaskID  string // last started task, empty if none was seen
	Message string // final message text, ReasonMessage only
	Reason  Reason
}

// Correlator tracks the most recently started task and decides when the run
// is done. It is a session.Observer; only task events matter to it.
//
// Done is latched: once set, later events change nothing.
type Correlator struct {
	session.Funcs

	display func(string)
	history *History

	mu      sync.Mutex
	tracked string
	outcome Outcome
	done    chan struct{}
}

// NewCorrelator creates a correlator. display, if set, receives the text of
// the final message before Done is closed. It is called at most once and
// must not call back into the correlator.
func NewCorrelator(display func(text string)) *Correlator {
	return &Correlator{
		display: display,
		history: NewHistory(historySize),
		done:    make(chan struct{}),
	}
}

// TaskEvent applies one host event.
func (c *Correlator) TaskEvent(ev protocol.TaskEvent) {
	c.history.Record(ev)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.outcome.Done {
		return
	}
	switch ev.EventName {
	case protocol.EventTaskStarted:
		if id, ok := ev.StringArg(0); ok {
			c.tracked = id
			c.outcome.TaskID = id
		}

	case protocol.EventMessage, protocol.EventAttemptCompletion:
		m, ok := ev.MessageArg(0)
		if !ok || c.tracked == "" || m.TaskID != c.tracked || m.Message.Partial {
			break
		}
		if c.display != nil {
			c.display(m.Message.Text)
		}
		c.finish(Outcome{TaskID: c.tracked, Message: m.Message.Text, Reason: ReasonMessage})

	case protocol.EventTaskCompleted, protocol.EventTaskAborted:
		id, ok := ev.StringArg(0)
		if !ok || c.tracked == "" || id != c.tracked {
			break
		}
		reason := ReasonCompleted
		if ev.EventName == protocol.EventTaskAborted {
			reason = ReasonAborted
		}
		c.finish(Outcome{TaskID: c.tracked, Reason: reason})
	}
}

// finish latches the outcome. Callers hold c.mu.
func (c *Correlator) finish(o Outcome) {
	if c.outcome.Done {
		return
	}
	o.Done = true
	c.outcome = o
	close(c.done)
}

// Cancel forces the run done regardless of task state.
func (c *Correlator) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finish(Outcome{TaskID: c.tracked, Reason: ReasonCancelled})
}

// Done is closed once the run is done.
func (c *Correlator) Done() <-chan struct{} {
	return c.done
}

// History returns the most recent events received, done or not.
func (c *Correlator) History() []Seen {
	return c.history.Events()
}

// Tracked returns the id of the most recently started task.
func (c *Correlator) Tracked() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracked, c.tracked != ""
}

// Outcome returns a snapshot of the run state.
func (c *Correlator) Outcome() Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outcome
}
