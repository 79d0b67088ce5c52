package protocol

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNewTaskCommandEnvelope(t *testing.T) {
	conf := NewConfiguration()
	conf.Set("apiProvider", "openrouter")
	conf.Set("mode", "code")

	cmd, err := NewStartTask(StartTask{Configuration: conf, Text: "Tell me a joke", NewTab: true})
	if err != nil {
		t.Fatalf("NewStartTask failed: %v", err)
	}
	env, err := NewTaskCommandEnvelope("client-1", cmd)
	if err != nil {
		t.Fatalf("NewTaskCommandEnvelope failed: %v", err)
	}
	if env.Origin != OriginClient {
		t.Errorf("expected origin %s, got %s", OriginClient, env.Origin)
	}

	raw, err := Encode(env)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	want := `{"type":"TaskCommand","origin":"client","clientId":"client-1","data":{"commandName":"StartNewTask","data":{"configuration":{"apiProvider":"openrouter","mode":"code"},"text":"Tell me a joke","newTab":true}}}`
	if string(raw) != want {
		t.Errorf("unexpected wire form:\n got %s\nwant %s", raw, want)
	}
}

func TestNewStartTask_NilConfiguration(t *testing.T) {
	cmd, err := NewStartTask(StartTask{Text: "hi"})
	if err != nil {
		t.Fatalf("NewStartTask failed: %v", err)
	}
	if !strings.Contains(string(cmd.Data), `"configuration":{}`) {
		t.Errorf("expected empty configuration object, got %s", cmd.Data)
	}
}

func TestNewCancelTask(t *testing.T) {
	cmd := NewCancelTask("T1")
	if cmd.CommandName != CommandCancelTask {
		t.Errorf("expected %s, got %s", CommandCancelTask, cmd.CommandName)
	}
	if string(cmd.Data) != `"T1"` {
		t.Errorf("expected task id data, got %s", cmd.Data)
	}
	if _, err := cmd.StartTask(); err == nil {
		t.Error("expected error decoding CancelTask as StartTask")
	}
}

func TestNewConnectEnvelope(t *testing.T) {
	raw, err := Encode(NewConnectEnvelope("abc"))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if string(raw) != `{"type":"Connect","origin":"client","clientId":"abc"}` {
		t.Errorf("unexpected wire form: %s", raw)
	}
}

func TestTaskEvent_MessageArg(t *testing.T) {
	ev, err := NewTaskEvent(EventMessage, map[string]interface{}{
		"taskId": "T1",
		"action": "created",
		"message": map[string]interface{}{
			"type":    "say",
			"say":     "completion_result",
			"text":    "hello",
			"partial": false,
		},
	})
	if err != nil {
		t.Fatalf("NewTaskEvent failed: %v", err)
	}

	m, ok := ev.MessageArg(0)
	if !ok {
		t.Fatal("expected message payload")
	}
	if m.TaskID != "T1" || m.Message.Text != "hello" || m.Message.Partial {
		t.Errorf("unexpected message: %+v", m)
	}
	if _, ok := ev.MessageArg(1); ok {
		t.Error("expected out of range index to be absent")
	}
}

func TestTaskEvent_MessageArgWithoutPartial(t *testing.T) {
	ev := TaskEvent{
		EventName: EventMessage,
		Payload:   []json.RawMessage{json.RawMessage(`{"taskId":"T1","message":{"text":"hi"}}`)},
	}
	if _, ok := ev.MessageArg(0); ok {
		t.Error("expected message without partial flag to be absent")
	}
}

func TestTaskEvent_StringArg(t *testing.T) {
	ev := TaskEvent{
		EventName: EventTaskCompleted,
		Payload:   []json.RawMessage{json.RawMessage(`"T1"`), json.RawMessage(`{"totalCost":0.1}`)},
	}
	if id, ok := ev.StringArg(0); !ok || id != "T1" {
		t.Errorf("expected T1, got %q", id)
	}
	if _, ok := ev.StringArg(1); ok {
		t.Error("expected object payload to not be a string")
	}
	if _, ok := ev.StringArg(-1); ok {
		t.Error("expected negative index to be absent")
	}
}

func TestNewTaskEventEnvelope(t *testing.T) {
	env, err := NewTaskEventEnvelope(TaskEvent{EventName: "taskSpawned"})
	if err != nil {
		t.Fatalf("NewTaskEventEnvelope failed: %v", err)
	}
	raw, _ := Encode(env)
	got, err := Validate(raw, OriginClient)
	if err != nil {
		t.Fatalf("expected valid message, got error: %v", err)
	}
	ev, _ := got.TaskEvent()
	if ev.EventName != "taskSpawned" {
		t.Errorf("expected taskSpawned, got %s", ev.EventName)
	}
}
