// Package diagnostics carries structured events out of plan construction.
// The planning code never formats messages itself; it emits events and the
// sink decides how to surface them.
package diagnostics

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Kind identifies a diagnostic event
type Kind string

const (
	GroupDiscovered          Kind = "group_discovered"
	FanoutComputed           Kind = "fanout_computed"
	RowsPreallocated         Kind = "rows_preallocated"
	InsufficientCombinations Kind = "insufficient_combinations"
	PoolError                Kind = "pool_error"
	StrategyFailed           Kind = "strategy_failed"
	StrategySelected         Kind = "strategy_selected"
	MissingParentValues      Kind = "missing_parent_values"
)

// Severity of an event
type Severity int

const (
	Info Severity = iota
	Warning
	Error
)

// Event is one structured diagnostic
type Event struct {
	Kind     Kind
	Severity Severity
	Table    string
	Fields   map[string]interface{}
}

// Sink receives diagnostic events
type Sink interface {
	Emit(Event)
}

// Discard drops every event
var Discard Sink = discard{}

type discard struct{}

func (discard) Emit(Event) {}

// LogSink writes events to a logrus logger as structured fields
type LogSink struct {
	Logger *logrus.Logger
}

// NewLogSink creates a sink writing to logger
func NewLogSink(logger *logrus.Logger) *LogSink {
	return &LogSink{Logger: logger}
}

// Emit implements Sink
func (s *LogSink) Emit(e Event) {
	fields := logrus.Fields{"event": string(e.Kind), "table": e.Table}
	for k, v := range e.Fields {
		fields[k] = v
	}
	entry := s.Logger.WithFields(fields)

	switch e.Severity {
	case Error:
		entry.Error(message(e.Kind))
	case Warning:
		entry.Warn(message(e.Kind))
	default:
		entry.Info(message(e.Kind))
	}
}

func message(k Kind) string {
	switch k {
	case GroupDiscovered:
		return "Overlapping unique constraint group discovered"
	case FanoutComputed:
		return "Computed rows per shared value"
	case RowsPreallocated:
		return "Pre-allocated constrained column values"
	case InsufficientCombinations:
		return "Not enough combinations for requested rows, repeating cyclically"
	case PoolError:
		return "Value pool unusable"
	case StrategyFailed:
		return "Generation strategy preconditions not met"
	case StrategySelected:
		return "Generation strategy selected"
	case MissingParentValues:
		return "No parent values available for NOT NULL foreign key"
	default:
		return string(k)
	}
}

// Recorder keeps events in memory. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit implements Sink
func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Find returns the recorded events of the given kind
func (r *Recorder) Find(kind Kind) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Tee forwards every event to all sinks
func Tee(sinks ...Sink) Sink {
	return tee(sinks)
}

type tee []Sink

func (t tee) Emit(e Event) {
	for _, s := range t {
		s.Emit(e)
	}
}
