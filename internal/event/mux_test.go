package event

import (
	"testing"

	"github.com/Paintersrp/execo/internal/exec"
)

func TestMuxFansInMultipleSources(t *testing.T) {
	mux := New(8)
	src1 := make(chan exec.Event)
	src2 := make(chan exec.Event)

	mux.Add(src1)
	mux.Add(src2)

	go func() {
		src1 <- exec.Event{Task: "build", Type: exec.EventTypeLine, Line: "compiling"}
		src1 <- exec.Event{Task: "build", Type: exec.EventTypeLine, Line: "linking"}
		close(src1)
	}()

	go func() {
		src2 <- exec.Event{Task: "test", Type: exec.EventTypeLine, Line: "ok"}
		close(src2)
	}()

	go mux.Close()

	byTask := map[string][]string{}
	for evt := range mux.Output() {
		byTask[evt.Task] = append(byTask[evt.Task], evt.Line)
	}

	if got := byTask["build"]; len(got) != 2 || got[0] != "compiling" || got[1] != "linking" {
		t.Fatalf("build lines out of order: %v", got)
	}
	if got := byTask["test"]; len(got) != 1 || got[0] != "ok" {
		t.Fatalf("test lines mismatch: %v", got)
	}
}

func TestMuxNeverDropsLifecycleEvents(t *testing.T) {
	mux := New(1)
	src := make(chan exec.Event)
	mux.Add(src)

	go func() {
		src <- exec.Event{Task: "job", Type: exec.EventTypeStarted, PID: 42}
		for i := 0; i < 16; i++ {
			src <- exec.Event{Task: "job", Type: exec.EventTypeLine, Line: "spam"}
		}
		src <- exec.Event{Task: "job", Type: exec.EventTypeExited, Result: &exec.Result{}}
		close(src)
	}()
	go mux.Close()

	var sawStarted, sawExited bool
	lines := 0
	dropped := 0
	for evt := range mux.Output() {
		switch evt.Type {
		case exec.EventTypeStarted:
			sawStarted = true
		case exec.EventTypeExited:
			sawExited = true
		case exec.EventTypeLine:
			if evt.Source == exec.SourceSystem {
				dropped++
			} else {
				lines++
			}
		}
	}

	if !sawStarted || !sawExited {
		t.Fatalf("lifecycle events lost: started=%v exited=%v", sawStarted, sawExited)
	}
	if lines == 16 && dropped != 0 {
		t.Fatalf("drop marker emitted with no drops")
	}
	if lines < 16 && dropped == 0 {
		t.Fatalf("dropped %d lines without a drop marker", 16-lines)
	}
}

func TestChannelSinkDelivers(t *testing.T) {
	ch := make(chan exec.Event, 1)
	ChannelSink(ch).Accept(exec.Event{Task: "x", Type: exec.EventTypeStarted})
	evt := <-ch
	if evt.Task != "x" || evt.Type != exec.EventTypeStarted {
		t.Fatalf("unexpected event: %+v", evt)
	}
}
