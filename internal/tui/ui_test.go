package tui

import (
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/Paintersrp/execo/internal/exec"
)

func newTestUI(t *testing.T) *UI {
	t.Helper()
	app := tview.NewApplication()
	table := tview.NewTable().SetFixed(1, 1).SetSelectable(true, false)
	logs := tview.NewTextView()
	flex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(table, 0, 2, true).
		AddItem(logs, 0, 3, false)

	ui := &UI{
		app:     app,
		table:   table,
		logs:    logs,
		events:  make(chan exec.Event, 1),
		tasks:   make(map[string]*taskState),
		maxLogs: defaultLogRetention,
		done:    make(chan struct{}),
	}

	app.SetRoot(flex, true)
	app.SetInputCapture(ui.handleKey)

	return ui
}

func TestApplyEventTracksLifecycle(t *testing.T) {
	ui := newTestUI(t)

	ui.applyEvent(exec.Event{
		Timestamp: time.Now(),
		Task:      "build",
		Type:      exec.EventTypeStarted,
		PID:       4321,
	})
	state, ok := ui.tasks["build"]
	if !ok {
		t.Fatalf("expected task state for build")
	}
	if !state.running || state.pid != 4321 {
		t.Fatalf("unexpected state after start: %+v", state)
	}

	ui.applyEvent(exec.Event{
		Timestamp: time.Now(),
		Task:      "build",
		Type:      exec.EventTypeLine,
		Source:    exec.SourceStdout,
		Line:      "compiling",
	})
	if len(state.logs) != 1 {
		t.Fatalf("logs = %d, want 1", len(state.logs))
	}
	if state.logs[0].Message != "compiling" {
		t.Fatalf("log message = %q", state.logs[0].Message)
	}

	ui.applyEvent(exec.Event{
		Timestamp: time.Now(),
		Task:      "build",
		Type:      exec.EventTypeExited,
		Result:    &exec.Result{ExitCode: 2},
	})
	if state.running || !state.exited || state.exitCode != 2 {
		t.Fatalf("unexpected state after exit: %+v", state)
	}
	if got := describeState(state); got != "failed" {
		t.Fatalf("describeState = %q, want failed", got)
	}
}

func TestApplyEventTrimsLogRetention(t *testing.T) {
	ui := newTestUI(t)
	ui.maxLogs = 3

	for i := 0; i < 5; i++ {
		ui.applyEvent(exec.Event{
			Task:   "noisy",
			Type:   exec.EventTypeLine,
			Source: exec.SourceStdout,
			Line:   string(rune('a' + i)),
		})
	}

	state := ui.tasks["noisy"]
	if len(state.logs) != 3 {
		t.Fatalf("logs = %d, want 3", len(state.logs))
	}
	if state.logs[0].Message != "c" {
		t.Fatalf("oldest retained = %q, want c", state.logs[0].Message)
	}
}

func TestHandleKeyQuitStopsUI(t *testing.T) {
	ui := newTestUI(t)

	quit := tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone)
	if res := ui.handleKey(quit); res != nil {
		t.Fatalf("expected quit shortcut to be consumed")
	}

	select {
	case <-ui.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("UI did not stop after quit")
	}
}

func TestHandleKeyTogglesJSONRendering(t *testing.T) {
	ui := newTestUI(t)

	if ui.logsJSON {
		t.Fatalf("expected plain rendering by default")
	}
	toggle := tcell.NewEventKey(tcell.KeyRune, 'j', tcell.ModNone)
	if res := ui.handleKey(toggle); res != nil {
		t.Fatalf("expected toggle shortcut to be consumed")
	}
	if !ui.logsJSON {
		t.Fatalf("expected JSON rendering after toggle")
	}
}
