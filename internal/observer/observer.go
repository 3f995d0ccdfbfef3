// Package observer delivers human readable progress lines to wherever they
// are wanted: the log, a terminal, and websocket clients. Every sink is
// best-effort and never blocks the caller.
package observer

import (
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pathwright/api/schemas"
)

// Event types sent to websocket clients.
const (
	EventLog      = "update_log"
	EventComplete = "task_complete"
)

// Event is one progress line.
type Event struct {
	Type    string    `json:"type"`
	TaskID  string    `json:"task_id,omitempty"`
	Message string    `json:"data"`
	Time    time.Time `json:"time"`
}

// Sink receives events. Publish must not block.
type Sink interface {
	Publish(ev Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ev Event)

func (f SinkFunc) Publish(ev Event) { f(ev) }

// Task is the observer handed to one task. It stamps every line with the
// task ID and forwards it to all sinks.
type Task struct {
	id    string
	sinks []Sink
	now   func() time.Time
}

var _ schemas.Observer = (*Task)(nil)

// ForTask returns an observer for taskID that publishes to sinks.
func ForTask(taskID string, sinks ...Sink) *Task {
	return &Task{id: taskID, sinks: sinks, now: time.Now}
}

// ID returns the task ID.
func (t *Task) ID() string { return t.id }

// Emit publishes a progress line.
func (t *Task) Emit(message string) { t.publish(EventLog, message) }

// Complete publishes the final line of the task.
func (t *Task) Complete(message string) { t.publish(EventComplete, message) }

func (t *Task) publish(kind, message string) {
	ev := Event{Type: kind, TaskID: t.id, Message: message, Time: t.now().UTC()}
	for _, s := range t.sinks {
		s.Publish(ev)
	}
}

// LogSink writes events to a zap logger.
func LogSink(logger *zap.Logger) Sink {
	logger = logger.Named("progress")
	return SinkFunc(func(ev Event) {
		logger.Info(ev.Message, zap.String("task_id", ev.TaskID), zap.String("event", ev.Type))
	})
}

// WriterSink prints events as plain lines, e.g. for a terminal. Writes are
// serialized so lines from concurrent tasks never interleave.
func WriterSink(w io.Writer) Sink {
	var mu sync.Mutex
	return SinkFunc(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		prefix := ev.TaskID
		if len(prefix) > 8 {
			prefix = prefix[:8]
		}
		if ev.Type == EventComplete {
			fmt.Fprintf(w, "[%s] == %s\n", prefix, ev.Message)
			return
		}
		fmt.Fprintf(w, "[%s] %s\n", prefix, ev.Message)
	})
}
