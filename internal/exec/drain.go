package exec

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"sync"
)

const maxLineBytes = 1024 * 1024

// drain consumes one output stream of the child until end-of-stream. Lines
// are trimmed and accumulated when capture is enabled; a configured sink
// receives the raw bytes verbatim. Completion is observable exactly once via
// the done channel regardless of which goroutine reaches end-of-stream.
type drain struct {
	task    string
	source  string
	capture bool
	sink    io.Writer
	events  Sink

	buf  bytes.Buffer
	err  error
	once sync.Once
	done chan struct{}
}

func newDrain(task, source string, cfg StreamConfig, events Sink) *drain {
	d := &drain{
		task:    task,
		source:  source,
		capture: cfg.Capture,
		sink:    cfg.Sink,
		done:    make(chan struct{}),
	}
	if cfg.Capture {
		// Pure pipe forwarding emits no events.
		d.events = events
	}
	return d
}

func (d *drain) run(r io.Reader) {
	defer d.finish()

	if !d.capture {
		dst := d.sink
		if dst == nil {
			dst = io.Discard
		}
		if _, err := io.Copy(dst, r); err != nil {
			d.err = err
		}
		return
	}

	src := r
	if d.sink != nil {
		src = io.TeeReader(r, d.sink)
	}
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		d.buf.WriteString(line)
		d.buf.WriteByte('\n')
		emitEvent(d.events, Event{
			Task:   d.task,
			Type:   EventTypeLine,
			Source: d.source,
			Line:   line,
		})
	}
	if err := scanner.Err(); err != nil {
		d.err = err
	}
}

func (d *drain) finish() {
	d.once.Do(func() { close(d.done) })
}

// text returns the accumulated capture with surrounding whitespace trimmed.
// Valid only after the drain has completed.
func (d *drain) text() string {
	return strings.TrimSpace(d.buf.String())
}

// failure converts a stream error into a DrainError, or nil.
func (d *drain) failure() error {
	if d.err == nil {
		return nil
	}
	return &DrainError{Source: d.source, Err: d.err}
}
