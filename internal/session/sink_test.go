package session

import (
	"os"
	"testing"

	"github.com/yanmxa/gencode/internal/tool"
)

func TestSinkAppendAndReconstruct(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "session-sink-test-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	sink, err := NewSink(tmpDir)
	if err != nil {
		t.Fatalf("NewSink failed: %v", err)
	}

	if err := sink.Append(SinkEvent{Type: EventMetadata, Metadata: &SessionMetadata{ID: "sess-1", Cwd: "/proj"}}); err != nil {
		t.Fatalf("Append metadata failed: %v", err)
	}
	if err := sink.Append(SinkEvent{Type: EventMessage, Message: &StoredMessage{Role: "user", Content: "hello"}}); err != nil {
		t.Fatalf("Append message failed: %v", err)
	}
	if err := sink.Append(SinkEvent{Type: EventMessage, Message: &StoredMessage{Role: "assistant", Content: "hi there"}}); err != nil {
		t.Fatalf("Append message failed: %v", err)
	}
	if err := sink.Append(SinkEvent{Type: EventTask, Task: &tool.TodoTask{ID: "t1", Subject: "write tests", Status: "pending"}}); err != nil {
		t.Fatalf("Append task failed: %v", err)
	}

	sess, err := sink.Reconstruct()
	if err != nil {
		t.Fatalf("Reconstruct failed: %v", err)
	}

	if sess.Metadata.ID != "sess-1" {
		t.Errorf("Metadata.ID = %q, want sess-1", sess.Metadata.ID)
	}
	if len(sess.Messages) != 2 {
		t.Fatalf("len(Messages) = %d, want 2", len(sess.Messages))
	}
	if sess.Messages[0].Content != "hello" || sess.Messages[1].Content != "hi there" {
		t.Errorf("messages out of order: %+v", sess.Messages)
	}
	if len(sess.Tasks) != 1 || sess.Tasks[0].ID != "t1" {
		t.Errorf("Tasks = %+v, want one task t1", sess.Tasks)
	}
}

func TestSinkTaskUpdateReplacesInPlace(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "session-sink-test-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	sink, err := NewSink(tmpDir)
	if err != nil {
		t.Fatalf("NewSink failed: %v", err)
	}

	sink.Append(SinkEvent{Type: EventTask, Task: &tool.TodoTask{ID: "t1", Subject: "write tests", Status: "pending"}})
	sink.Append(SinkEvent{Type: EventTask, Task: &tool.TodoTask{ID: "t1", Subject: "write tests", Status: "completed"}})

	sess, err := sink.Reconstruct()
	if err != nil {
		t.Fatalf("Reconstruct failed: %v", err)
	}
	if len(sess.Tasks) != 1 {
		t.Fatalf("len(Tasks) = %d, want 1 (update in place, not append)", len(sess.Tasks))
	}
	if sess.Tasks[0].Status != "completed" {
		t.Errorf("Tasks[0].Status = %q, want completed", sess.Tasks[0].Status)
	}
}

func TestSinkSequenceSurvivesReopen(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "session-sink-test-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	sink, err := NewSink(tmpDir)
	if err != nil {
		t.Fatalf("NewSink failed: %v", err)
	}
	sink.Append(SinkEvent{Type: EventMessage, Message: &StoredMessage{Role: "user", Content: "first"}})

	reopened, err := NewSink(tmpDir)
	if err != nil {
		t.Fatalf("reopen NewSink failed: %v", err)
	}
	if err := reopened.Append(SinkEvent{Type: EventMessage, Message: &StoredMessage{Role: "user", Content: "second"}}); err != nil {
		t.Fatalf("Append after reopen failed: %v", err)
	}

	sess, err := reopened.Reconstruct()
	if err != nil {
		t.Fatalf("Reconstruct failed: %v", err)
	}
	if len(sess.Messages) != 2 {
		t.Fatalf("len(Messages) = %d, want 2 across reopen", len(sess.Messages))
	}
}
