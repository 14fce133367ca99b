package event

import (
	"fmt"
	"sync"
	"time"

	"github.com/Paintersrp/execo/internal/exec"
)

// Mux fans in lifecycle events from multiple concurrent runs and delivers
// them via a bounded channel. When downstream consumers cannot keep up, line
// events are dropped and a synthesized warning line surfaces the number of
// discarded entries. Started and exited events are delivered blocking so they
// are never lost.
type Mux struct {
	out chan exec.Event

	mu     sync.Mutex
	drops  map[string]int
	inputs sync.WaitGroup
}

// New constructs a mux backed by a channel of the provided size. A size of
// zero results in a minimally buffered channel.
func New(size int) *Mux {
	if size <= 0 {
		size = 1
	}
	return &Mux{
		out:   make(chan exec.Event, size),
		drops: make(map[string]int),
	}
}

// Output exposes the muxed event channel.
func (m *Mux) Output() <-chan exec.Event {
	return m.out
}

// Add registers a new source channel. The mux consumes events until the
// source channel is closed.
func (m *Mux) Add(source <-chan exec.Event) {
	if source == nil {
		return
	}
	m.inputs.Add(1)
	go func() {
		defer m.inputs.Done()
		for evt := range source {
			m.deliver(evt)
		}
	}()
}

// Close waits for all sources to be drained, flushes any pending drop
// metadata, and closes the output channel.
func (m *Mux) Close() {
	m.inputs.Wait()
	m.flushDrops()
	close(m.out)
}

func (m *Mux) deliver(evt exec.Event) {
	if evt.Type != exec.EventTypeLine {
		m.blockingSend(evt)
		return
	}
	if !m.flushPending(evt.Task) {
		m.recordDrops(evt.Task, 1)
		return
	}
	if m.trySend(evt) {
		return
	}
	m.recordDrops(evt.Task, 1)
}

func (m *Mux) flushPending(task string) bool {
	for {
		count := m.takeDrops(task)
		if count == 0 {
			return true
		}
		if m.trySend(dropEvent(task, count)) {
			continue
		}
		m.recordDrops(task, count)
		return false
	}
}

func (m *Mux) takeDrops(task string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := m.drops[task]
	if count != 0 {
		delete(m.drops, task)
	}
	return count
}

func (m *Mux) recordDrops(task string, count int) {
	if count <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drops[task] += count
}

func (m *Mux) flushDrops() {
	m.mu.Lock()
	pending := m.drops
	m.drops = make(map[string]int)
	m.mu.Unlock()
	for task, count := range pending {
		if count > 0 {
			m.blockingSend(dropEvent(task, count))
		}
	}
}

func (m *Mux) trySend(evt exec.Event) bool {
	select {
	case m.out <- evt:
		return true
	default:
		return false
	}
}

func (m *Mux) blockingSend(evt exec.Event) {
	m.out <- evt
}

func dropEvent(task string, count int) exec.Event {
	return exec.Event{
		Timestamp: time.Now(),
		Task:      task,
		Type:      exec.EventTypeLine,
		Source:    exec.SourceSystem,
		Line:      fmt.Sprintf("dropped=%d", count),
	}
}

// ChannelSink adapts a channel to the exec.Sink interface. Delivery blocks,
// so the channel should be buffered and the consumer prompt.
type ChannelSink chan<- exec.Event

// Accept implements exec.Sink.
func (c ChannelSink) Accept(evt exec.Event) {
	c <- evt
}
