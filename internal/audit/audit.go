// Package audit records server activity events. Events are appended to
// JSON Lines (JSONL) files, one per server, and can additionally be
// published to NATS.
package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/hearth-panel/hearth-ctl/internal/logging"
)

// EventType names an activity, "<subject>:<action>".
type EventType string

const (
	EventServerCreate         EventType = "server:create"
	EventServerCreateRollback EventType = "server:create.rollback"
	EventServerDelete         EventType = "server:delete"
	EventAllocationCreate     EventType = "server:allocation.create"
	EventAllocationDelete     EventType = "server:allocation.delete"
	EventAllocationPrimary    EventType = "server:allocation.primary"
	EventAllocationNotes      EventType = "server:allocation.notes"
)

// Event represents a single activity entry.
type Event struct {
	Timestamp  time.Time         `json:"timestamp"`
	Type       EventType         `json:"event"`
	Server     string            `json:"server"`
	Actor      string            `json:"actor,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

// Recorder accepts activity events.
type Recorder interface {
	Record(ctx context.Context, event Event) error
}

// Emit records event and logs instead of failing when recording fails.
// Activity never decides the outcome of the operation it describes.
func Emit(ctx context.Context, r Recorder, event Event) {
	if r == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if err := r.Record(ctx, event); err != nil {
		logging.Warn("failed to record activity", "event", event.Type, "server", event.Server, "error", err)
	}
}

// Logger writes and reads activity events for servers.
// Events are stored in {dir}/{server uuid}.jsonl.
type Logger struct {
	dir string
	mu  sync.Mutex
}

// NewLogger creates a new activity logger rooted at dir.
func NewLogger(dir string) *Logger {
	return &Logger{dir: dir}
}

// eventPath returns the path to the JSONL event log for a server.
func (l *Logger) eventPath(server string) (string, error) {
	if server == "" {
		return "", fmt.Errorf("event has no server")
	}
	return securejoin.SecureJoin(l.dir, server+".jsonl")
}

// Record appends an event to the server's activity log.
func (l *Logger) Record(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	path, err := l.eventPath(event.Server)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create activity log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open activity log: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}

	return nil
}

// Events reads all events for a server in chronological order.
func (l *Logger) Events(server string) ([]Event, error) {
	path, err := l.eventPath(server)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open activity log: %w", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			continue // Skip malformed lines
		}
		events = append(events, event)
	}

	if err := scanner.Err(); err != nil {
		return events, fmt.Errorf("error reading activity log: %w", err)
	}

	return events, nil
}

// Remove deletes the activity log for a server.
func (l *Logger) Remove(server string) error {
	path, err := l.eventPath(server)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Multi fans an event out to several recorders. Every recorder is tried;
// the first error is returned.
type Multi []Recorder

// Record implements Recorder.
func (m Multi) Record(ctx context.Context, event Event) error {
	var first error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Record(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Memory keeps events in memory. Used by tests and dry runs.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

// Record implements Recorder.
func (m *Memory) Record(ctx context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Events returns a copy of the recorded events, optionally only those of
// the given types.
func (m *Memory) Events(types ...EventType) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, e := range m.events {
		if len(types) == 0 || containsType(types, e.Type) {
			out = append(out, e)
		}
	}
	return out
}

func containsType(types []EventType, t EventType) bool {
	for _, want := range types {
		if want == t {
			return true
		}
	}
	return false
}
