package cliutil

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/Paintersrp/execo/internal/exec"
)

// LogRecord represents a structured lifecycle event ready for JSON encoding.
type LogRecord struct {
	Timestamp time.Time `json:"ts"`
	Task      string    `json:"task,omitempty"`
	Type      string    `json:"type"`
	Level     string    `json:"level"`
	Message   string    `json:"msg"`
	Source    string    `json:"source"`
	PID       int       `json:"pid,omitempty"`
	ExitCode  *int      `json:"exit_code,omitempty"`
}

// NewLogRecord converts a lifecycle event into a structured log record.
// Output lines pass through secret redaction before encoding.
func NewLogRecord(event exec.Event) LogRecord {
	record := LogRecord{
		Timestamp: event.Timestamp,
		Task:      event.Task,
		Type:      string(event.Type),
		Source:    event.Source,
		PID:       event.PID,
		Level:     "info",
	}
	switch event.Type {
	case exec.EventTypeStarted:
		record.Message = "process started"
	case exec.EventTypeExited:
		record.Message = "process exited"
		if event.Result != nil {
			code := event.Result.ExitCode
			record.ExitCode = &code
			if code != 0 {
				record.Level = "warn"
			}
		}
	case exec.EventTypeLine:
		record.Message = RedactSecrets(event.Line)
		if event.Source == exec.SourceStderr {
			record.Level = "warn"
		}
	default:
		record.Message = event.Line
	}
	return record
}

// EncodeLogEvent encodes a lifecycle event to JSON, reporting errors to
// stderr if needed.
func EncodeLogEvent(enc *json.Encoder, stderr io.Writer, event exec.Event) {
	if enc == nil {
		return
	}
	record := NewLogRecord(event)
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	if err := enc.Encode(&record); err != nil {
		fmt.Fprintf(stderr, "error: encode log: %v\n", err)
	}
}
