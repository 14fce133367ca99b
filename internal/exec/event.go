package exec

import "time"

// EventType captures the lifecycle notifications emitted during a run.
type EventType string

const (
	EventTypeStarted EventType = "started"
	EventTypeLine    EventType = "line"
	EventTypeExited  EventType = "exited"
)

// Stream source labels attached to events.
const (
	SourceStdout = "stdout"
	SourceStderr = "stderr"
	SourceSystem = "system"
)

// Event is a single lifecycle notification. Started and exited occur at most
// once per run; line events occur once per captured output line.
type Event struct {
	Timestamp time.Time
	Task      string
	Type      EventType
	PID       int
	Source    string
	Line      string
	Result    *Result
}

// Sink accepts lifecycle events. Implementations must be safe for concurrent
// delivery when shared across runs.
type Sink interface {
	Accept(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

// Accept implements Sink.
func (f SinkFunc) Accept(evt Event) { f(evt) }

func emitEvent(sink Sink, evt Event) {
	if sink == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	sink.Accept(evt)
}
