// Package progress carries what a reconciliation is doing to whoever is
// watching: the operator's terminal, the durable log, tests. Sinks are fire
// and forget; a sink never fails a run.
package progress

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/stocktake/pkg/errors"
	"github.com/agentstation/stocktake/pkg/logging"
)

// Stage names a step of the pipeline.
type Stage string

// Pipeline stages in execution order.
const (
	StageParse     Stage = "parse"
	StageValidate  Stage = "validate"
	StageGroup     Stage = "group"
	StageStage     Stage = "staging"
	StageReconcile Stage = "reconcile"
	StageCommit    Stage = "commit"
	StageReport    Stage = "report"
	StageReplace   Stage = "replace"
	StagePromote   Stage = "promote"
	StageArchive   Stage = "archive"
)

// Level is the severity of an event.
type Level int

// Event levels.
const (
	Info Level = iota
	Warning
	Error
)

// String returns the level name.
func (l Level) String() string {
	switch l {
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "info"
	}
}

// Event is one progress notification.
type Event struct {
	Time    time.Time
	Stage   Stage
	Level   Level
	Message string

	// Code is set for events that report a taxonomy error.
	Code errors.Code

	// Item, Line and Context locate item level events in the scan.
	Item    string
	Line    int
	Context string

	Err error
}

// Sink receives progress events.
type Sink interface {
	Notify(ctx context.Context, e Event)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(ctx context.Context, e Event)

// Notify implements Sink.
func (f SinkFunc) Notify(ctx context.Context, e Event) {
	f(ctx, e)
}

// Nop discards every event.
var Nop Sink = SinkFunc(func(context.Context, Event) {})

// Multi fans events out to several sinks.
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(ctx context.Context, e Event) {
		for _, s := range sinks {
			if s != nil {
				s.Notify(ctx, e)
			}
		}
	})
}

// LogSink mirrors events into the logger found in the context.
type LogSink struct{}

// Notify implements Sink.
func (LogSink) Notify(ctx context.Context, e Event) {
	logger := logging.FromContext(ctx)

	var ev *zerolog.Event
	switch e.Level {
	case Error:
		ev = logger.Error()
	case Warning:
		ev = logger.Warn()
	default:
		ev = logger.Info()
	}

	ev = ev.Str("stage", string(e.Stage))
	if e.Code != "" {
		ev = ev.Str("code", string(e.Code))
	}
	if e.Item != "" {
		ev = ev.Str("item", e.Item)
	}
	if e.Line > 0 {
		ev = ev.Int("line", e.Line)
	}
	if e.Context != "" {
		ev = ev.Str("context", e.Context)
	}
	if e.Err != nil {
		ev = ev.Err(e.Err)
	}
	ev.Msg(e.Message)
}

// WriterSink prints one line per event, for the operator.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink creates a sink printing to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Notify implements Sink.
func (s *WriterSink) Notify(_ context.Context, e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := ""
	switch e.Level {
	case Warning:
		prefix = "warning: "
	case Error:
		prefix = "error: "
	}
	if e.Code != "" {
		prefix += "[" + string(e.Code) + "] "
	}
	fmt.Fprintf(s.w, "%s%s\n", prefix, e.Message) //nolint:errcheck // best effort
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Notify implements Sink.
func (r *Recorder) Notify(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Codes returns the taxonomy codes of the recorded events in order.
func (r *Recorder) Codes() []errors.Code {
	var out []errors.Code
	for _, e := range r.Events() {
		if e.Code != "" {
			out = append(out, e.Code)
		}
	}
	return out
}

// Stages returns the distinct stages seen, in order of first appearance.
func (r *Recorder) Stages() []Stage {
	seen := make(map[Stage]bool)
	var out []Stage
	for _, e := range r.Events() {
		if !seen[e.Stage] {
			seen[e.Stage] = true
			out = append(out, e.Stage)
		}
	}
	return out
}
