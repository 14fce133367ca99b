package exec

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

type errReader struct {
	data []byte
	err  error
}

func (r *errReader) Read(p []byte) (int, error) {
	if len(r.data) > 0 {
		n := copy(p, r.data)
		r.data = r.data[n:]
		return n, nil
	}
	return 0, r.err
}

func TestDrainTrimsAndAccumulatesLines(t *testing.T) {
	var events []Event
	sink := SinkFunc(func(evt Event) { events = append(events, evt) })

	d := newDrain("demo", SourceStdout, StreamConfig{Capture: true}, sink)
	d.run(strings.NewReader("  first  \n\tsecond\t\n"))

	select {
	case <-d.done:
	default:
		t.Fatal("drain did not mark completion")
	}
	if got := d.text(); got != "first\nsecond" {
		t.Fatalf("capture mismatch: %q", got)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 line events, got %d", len(events))
	}
	if events[0].Line != "first" || events[1].Line != "second" {
		t.Fatalf("line events mismatch: %+v", events)
	}
	if events[0].Source != SourceStdout {
		t.Fatalf("source mismatch: %q", events[0].Source)
	}
}

func TestDrainCompletionIsIdempotent(t *testing.T) {
	d := newDrain("", SourceStderr, StreamConfig{Capture: true}, nil)
	d.run(strings.NewReader("line\n"))
	d.finish()
	d.finish()
	select {
	case <-d.done:
	default:
		t.Fatal("drain did not mark completion")
	}
}

func TestDrainVerbatimCopy(t *testing.T) {
	var raw bytes.Buffer
	var events []Event
	sink := SinkFunc(func(evt Event) { events = append(events, evt) })

	d := newDrain("demo", SourceStdout, StreamConfig{Sink: &raw}, sink)
	d.run(strings.NewReader("no trailing newline"))

	if raw.String() != "no trailing newline" {
		t.Fatalf("sink mismatch: %q", raw.String())
	}
	if d.text() != "" {
		t.Fatalf("unexpected capture: %q", d.text())
	}
	if len(events) != 0 {
		t.Fatalf("pure forwarding emitted events: %+v", events)
	}
}

func TestDrainDiscardsWhenUnrouted(t *testing.T) {
	d := newDrain("", SourceStderr, StreamConfig{}, nil)
	d.run(strings.NewReader("dropped\n"))
	if d.text() != "" {
		t.Fatalf("unexpected capture: %q", d.text())
	}
	if err := d.failure(); err != nil {
		t.Fatalf("unexpected failure: %v", err)
	}
}

func TestDrainSurfacesReadErrors(t *testing.T) {
	readErr := io.ErrUnexpectedEOF
	d := newDrain("demo", SourceStdout, StreamConfig{Capture: true}, nil)
	d.run(&errReader{data: []byte("partial\n"), err: readErr})

	err := d.failure()
	if err == nil {
		t.Fatal("expected drain failure")
	}
	var drainErr *DrainError
	if !errors.As(err, &drainErr) {
		t.Fatalf("expected DrainError, got %v", err)
	}
	if drainErr.Source != SourceStdout {
		t.Fatalf("source mismatch: %q", drainErr.Source)
	}
}
