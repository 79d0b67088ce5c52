package task

import (
	"fmt"
	"testing"

	"roo-task/internal/protocol"
)

func started(t *testing.T, id string) protocol.TaskEvent {
	t.Helper()
	ev, err := protocol.NewTaskEvent(protocol.EventTaskStarted, id)
	if err != nil {
		t.Fatal(err)
	}
	return ev
}

func TestHistory_Empty(t *testing.T) {
	h := NewHistory(4)
	if got := h.Events(); len(got) != 0 {
		t.Errorf("expected empty history, got %d events", len(got))
	}
}

func TestHistory_PartialFill(t *testing.T) {
	h := NewHistory(4)
	h.Record(started(t, "T1"))
	h.Record(started(t, "T2"))

	got := h.Events()
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].TaskID != "T1" || got[1].TaskID != "T2" {
		t.Errorf("unexpected order: %+v", got)
	}
}

func TestHistory_Wraparound(t *testing.T) {
	h := NewHistory(3)
	for i := 0; i < 7; i++ {
		h.Record(started(t, fmt.Sprintf("T%d", i)))
	}

	got := h.Events()
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}
	for i, s := range got {
		want := fmt.Sprintf("T%d", i+4)
		if s.TaskID != want {
			t.Errorf("event %d: expected %s, got %s", i, want, s.TaskID)
		}
	}
}

func TestHistory_MessageTaskID(t *testing.T) {
	h := NewHistory(0)
	ev, err := protocol.NewTaskEvent(protocol.EventMessage, message("T9", "hi", true))
	if err != nil {
		t.Fatal(err)
	}
	h.Record(ev)
	h.Record(protocol.TaskEvent{EventName: "taskSpawned"})

	got := h.Events()
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].EventName != protocol.EventMessage || got[0].TaskID != "T9" {
		t.Errorf("unexpected first event: %+v", got[0])
	}
	if got[1].TaskID != "" {
		t.Errorf("expected no task id, got %q", got[1].TaskID)
	}
}
