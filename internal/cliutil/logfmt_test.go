package cliutil

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/Paintersrp/execo/internal/exec"
)

func TestNewLogRecordPerEventType(t *testing.T) {
	started := NewLogRecord(exec.Event{Type: exec.EventTypeStarted, Task: "build", PID: 99})
	if started.Message != "process started" || started.PID != 99 || started.Level != "info" {
		t.Fatalf("unexpected started record: %+v", started)
	}

	line := NewLogRecord(exec.Event{Type: exec.EventTypeLine, Source: exec.SourceStderr, Line: "boom"})
	if line.Message != "boom" || line.Level != "warn" {
		t.Fatalf("unexpected stderr line record: %+v", line)
	}

	exited := NewLogRecord(exec.Event{
		Type:   exec.EventTypeExited,
		Result: &exec.Result{ExitCode: 3},
	})
	if exited.ExitCode == nil || *exited.ExitCode != 3 || exited.Level != "warn" {
		t.Fatalf("unexpected exited record: %+v", exited)
	}

	clean := NewLogRecord(exec.Event{
		Type:   exec.EventTypeExited,
		Result: &exec.Result{ExitCode: 0},
	})
	if clean.ExitCode == nil || *clean.ExitCode != 0 || clean.Level != "info" {
		t.Fatalf("unexpected clean exit record: %+v", clean)
	}
}

func TestEncodeLogEventProducesJSONLines(t *testing.T) {
	var out bytes.Buffer
	var errBuf bytes.Buffer

	event := exec.Event{
		Timestamp: time.Unix(0, 0),
		Task:      "demo",
		Type:      exec.EventTypeLine,
		Source:    exec.SourceStdout,
		Line:      "hello",
	}
	EncodeLogEvent(json.NewEncoder(&out), &errBuf, event)

	if errBuf.Len() != 0 {
		t.Fatalf("unexpected stderr output: %s", errBuf.String())
	}
	var record LogRecord
	if err := json.Unmarshal(out.Bytes(), &record); err != nil {
		t.Fatalf("failed to unmarshal log record: %v", err)
	}
	if record.Task != "demo" || record.Message != "hello" {
		t.Fatalf("record mismatch: %+v", record)
	}
}

func TestLogRecordRedactsSecrets(t *testing.T) {
	record := NewLogRecord(exec.Event{
		Type: exec.EventTypeLine,
		Line: "API_KEY=super-secret value=${DB_PASSWORD}",
	})
	if strings.Contains(record.Message, "super-secret") {
		t.Fatalf("secret leaked: %q", record.Message)
	}
	if !strings.Contains(record.Message, "[redacted]") {
		t.Fatalf("redaction marker missing: %q", record.Message)
	}
}

func TestRedactSecretsLeavesPlainTextAlone(t *testing.T) {
	message := "compiled 12 packages in 3.4s"
	if got := RedactSecrets(message); got != message {
		t.Fatalf("plain text altered: %q", got)
	}
}
