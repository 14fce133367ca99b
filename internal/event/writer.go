package event

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/Paintersrp/execo/internal/exec"
)

// LineWriter is an io.WriteCloser that chunks arbitrary writes into trimmed
// line events for a sink. It keeps partial lines buffered across writes, so
// interleaved writers sharing one sink still produce whole lines. Close
// flushes any buffered remainder.
type LineWriter struct {
	sink   exec.Sink
	task   string
	source string

	mu  sync.Mutex
	buf bytes.Buffer
}

// NewLineWriter constructs a LineWriter emitting events labelled with the
// provided task and stream source.
func NewLineWriter(sink exec.Sink, task, source string) *LineWriter {
	return &LineWriter{sink: sink, task: task, source: source}
}

// Write implements io.Writer.
func (w *LineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	total := len(p)
	reader := bufio.NewReader(bytes.NewReader(p))
	for {
		segment, err := reader.ReadBytes('\n')
		if len(segment) > 0 {
			if segment[len(segment)-1] == '\n' {
				w.buf.Write(segment[:len(segment)-1])
				w.emit(w.buf.String())
				w.buf.Reset()
			} else {
				w.buf.Write(segment)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return total, err
		}
	}
	return total, nil
}

// Close flushes a trailing partial line.
func (w *LineWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() == 0 {
		return nil
	}
	w.emit(w.buf.String())
	w.buf.Reset()
	return nil
}

func (w *LineWriter) emit(line string) {
	line = strings.TrimSpace(line)
	if line == "" || w.sink == nil {
		return
	}
	w.sink.Accept(exec.Event{
		Timestamp: time.Now(),
		Task:      w.task,
		Type:      exec.EventTypeLine,
		Source:    w.source,
		Line:      line,
	})
}
