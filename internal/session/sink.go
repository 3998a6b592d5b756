package session

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/yanmxa/gencode/internal/tool"
)

// SinkEventType is the kind of record appended to a Sink's log.
type SinkEventType string

const (
	EventMessage  SinkEventType = "message"
	EventTask     SinkEventType = "task"
	EventMetadata SinkEventType = "metadata"
)

// SinkEvent is one line of the append-only event log. Exactly one of
// Message/Task/Metadata is populated, matching Type.
type SinkEvent struct {
	Seq       int64           `json:"seq"`
	Type      SinkEventType   `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Message   *StoredMessage  `json:"message,omitempty"`
	Task      *tool.TodoTask  `json:"task,omitempty"`
	Metadata  *SessionMetadata `json:"metadata,omitempty"`
}

// Sink is an append-only JSON-Lines event log living alongside a session's
// whole-file snapshot. Every observable event (a new message, a todo
// change, a metadata update) is appended as one line; Reconstruct replays
// the log back into a Session.
type Sink struct {
	mu   sync.Mutex
	path string
	seq  int64
}

// NewSink opens (creating if absent) <dir>/events.jsonl for append, and
// primes the sequence counter from whatever the log already holds.
func NewSink(dir string) (*Sink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session dir: %w", err)
	}
	path := filepath.Join(dir, "events.jsonl")

	s := &Sink{path: path}
	if existing, err := s.readAll(); err == nil {
		for _, evt := range existing {
			if evt.Seq > s.seq {
				s.seq = evt.Seq
			}
		}
	}
	return s, nil
}

// Append writes one event to the log, assigning it the next sequence
// number. Each call opens the file with O_APPEND|O_CREATE|O_WRONLY so
// concurrent writers never clobber each other's lines.
func (s *Sink) Append(evt SinkEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	evt.Seq = s.seq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open event log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// Reconstruct replays the event log into the most recent consistent
// Session snapshot. Events are deduplicated by sequence number so a
// replay after a partial write (or a re-read of the same log) is
// idempotent.
func (s *Sink) Reconstruct() (*Session, error) {
	events, err := s.readAll()
	if err != nil {
		return nil, err
	}

	sess := &Session{}
	seen := make(map[int64]bool)
	taskIndex := make(map[string]int)

	for _, evt := range events {
		if seen[evt.Seq] {
			continue
		}
		seen[evt.Seq] = true

		switch evt.Type {
		case EventMessage:
			if evt.Message != nil {
				sess.Messages = append(sess.Messages, *evt.Message)
			}
		case EventTask:
			if evt.Task == nil {
				continue
			}
			if idx, ok := taskIndex[evt.Task.ID]; ok {
				sess.Tasks[idx] = *evt.Task
			} else {
				taskIndex[evt.Task.ID] = len(sess.Tasks)
				sess.Tasks = append(sess.Tasks, *evt.Task)
			}
		case EventMetadata:
			if evt.Metadata != nil {
				sess.Metadata = *evt.Metadata
			}
		}
	}

	sess.Metadata.MessageCount = len(sess.Messages)
	return sess, nil
}

func (s *Sink) readAll() ([]SinkEvent, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	defer f.Close()

	var events []SinkEvent
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var evt SinkEvent
		if err := json.Unmarshal(line, &evt); err != nil {
			continue // skip a malformed/partially-written line
		}
		events = append(events, evt)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read event log: %w", err)
	}
	return events, nil
}
