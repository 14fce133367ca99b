package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/Paintersrp/execo/internal/cliutil"
	"github.com/Paintersrp/execo/internal/exec"
)

const (
	tableTitle          = "Tasks"
	logsTitle           = "Output"
	defaultLogRetention = 500
)

// Option configures UI behaviour.
type Option func(*UI)

// WithMaxLogs sets the maximum number of output lines retained per task.
func WithMaxLogs(n int) Option {
	return func(u *UI) {
		if n > 0 {
			u.maxLogs = n
		}
	}
}

// UI renders live task execution state backed by tview. Events arrive on the
// channel returned by EventSink; the table tracks per-task lifecycle and the
// lower pane shows the selected task's output.
type UI struct {
	app    *tview.Application
	table  *tview.Table
	logs   *tview.TextView
	events chan exec.Event

	tasks map[string]*taskState

	visible   []string
	selected  string
	logsJSON  bool
	logsFocus bool
	maxLogs   int

	mu sync.RWMutex

	cancelMu sync.Mutex
	cancel   context.CancelFunc

	wg        sync.WaitGroup
	stopOnce  sync.Once
	closeOnce sync.Once
	done      chan struct{}
}

type taskState struct {
	name      string
	firstSeen time.Time
	lastEvent time.Time
	pid       int
	running   bool
	exited    bool
	exitCode  int

	logs []cliutil.LogRecord
}

// New constructs a UI configured with the supplied options.
func New(opts ...Option) *UI {
	app := tview.NewApplication()
	table := tview.NewTable().SetFixed(1, 1).SetSelectable(true, false)
	table.SetBorder(true).SetTitle(tableTitle)

	logs := tview.NewTextView().SetDynamicColors(true).SetWrap(false)
	logs.SetBorder(true).SetTitle(logsTitle)
	logs.SetChangedFunc(func() {
		app.Draw()
	})

	flex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(table, 0, 2, true).
		AddItem(logs, 0, 3, false)

	ui := &UI{
		app:     app,
		table:   table,
		logs:    logs,
		events:  make(chan exec.Event, 256),
		tasks:   make(map[string]*taskState),
		maxLogs: defaultLogRetention,
		done:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(ui)
	}

	table.SetSelectionChangedFunc(func(row, column int) {
		ui.mu.Lock()
		defer ui.mu.Unlock()
		ui.syncSelection(row)
		ui.renderLogsLocked()
	})

	logs.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEnter {
			ui.toggleFocus()
			return nil
		}
		return event
	})

	app.SetRoot(flex, true)
	app.SetInputCapture(ui.handleKey)

	ui.mu.Lock()
	ui.refreshTableLocked()
	ui.mu.Unlock()

	return ui
}

// EventSink exposes the channel where run events should be delivered.
func (u *UI) EventSink() chan<- exec.Event {
	return u.events
}

// CloseEvents releases the event channel so the consumer goroutine exits.
func (u *UI) CloseEvents() {
	u.closeOnce.Do(func() {
		close(u.events)
	})
}

// Done returns a channel that is closed when the UI stops.
func (u *UI) Done() <-chan struct{} {
	return u.done
}

// Run starts the tview application and processes incoming events until Stop
// is invoked or the provided context is cancelled.
func (u *UI) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	u.cancelMu.Lock()
	u.cancel = cancel
	u.cancelMu.Unlock()

	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		u.consumeEvents(ctx)
	}()

	go func() {
		<-ctx.Done()
		u.Stop()
	}()

	err := u.app.Run()

	u.cancelMu.Lock()
	cancel = u.cancel
	u.cancel = nil
	u.cancelMu.Unlock()
	if cancel != nil {
		cancel()
	}

	u.wg.Wait()
	u.Stop()

	return err
}

// Stop terminates the application loop and releases resources.
func (u *UI) Stop() {
	u.stopOnce.Do(func() {
		u.cancelMu.Lock()
		cancel := u.cancel
		u.cancel = nil
		u.cancelMu.Unlock()
		if cancel != nil {
			cancel()
		}
		u.app.Stop()
		close(u.done)
	})
}

func (u *UI) consumeEvents(ctx context.Context) {
	ctxDone := ctx.Done()
	draining := false

	for {
		select {
		case <-ctxDone:
			draining = true
			ctxDone = nil
		case evt, ok := <-u.events:
			if !ok {
				return
			}
			if draining {
				continue
			}
			u.applyEvent(evt)
		}
	}
}

func (u *UI) handleKey(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyEnter:
		u.toggleFocus()
		return nil
	case tcell.KeyUp, tcell.KeyDown:
		return event
	case tcell.KeyRune:
		switch event.Rune() {
		case 'q', 'Q':
			go u.Stop()
			return nil
		case 'j', 'J':
			u.toggleJSON()
			return nil
		}
	}
	return event
}

func (u *UI) toggleFocus() {
	if u.logsFocus {
		u.app.SetFocus(u.table)
	} else {
		u.app.SetFocus(u.logs)
	}
	u.logsFocus = !u.logsFocus
}

func (u *UI) toggleJSON() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.logsJSON = !u.logsJSON
	u.renderLogsLocked()
}

func (u *UI) applyEvent(evt exec.Event) {
	u.mu.Lock()
	defer u.mu.Unlock()

	name := evt.Task
	if name == "" {
		name = "unnamed"
	}
	state, ok := u.tasks[name]
	if !ok {
		state = &taskState{name: name, firstSeen: time.Now()}
		u.tasks[name] = state
	}
	state.lastEvent = evt.Timestamp
	if state.lastEvent.IsZero() {
		state.lastEvent = time.Now()
	}

	switch evt.Type {
	case exec.EventTypeStarted:
		state.pid = evt.PID
		state.running = true
	case exec.EventTypeExited:
		state.running = false
		state.exited = true
		if evt.Result != nil {
			state.exitCode = evt.Result.ExitCode
		}
	case exec.EventTypeLine:
		state.logs = append(state.logs, cliutil.NewLogRecord(evt))
		if len(state.logs) > u.maxLogs {
			state.logs = state.logs[len(state.logs)-u.maxLogs:]
		}
	}

	u.refreshTableLocked()
	if name == u.selected {
		u.renderLogsLocked()
	}
}

func (u *UI) syncSelection(row int) {
	idx := row - 1
	if idx >= 0 && idx < len(u.visible) {
		u.selected = u.visible[idx]
	}
}

func (u *UI) refreshTableLocked() {
	names := make([]string, 0, len(u.tasks))
	for name := range u.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	u.visible = names
	if u.selected == "" && len(names) > 0 {
		u.selected = names[0]
	}

	u.table.Clear()
	headers := []string{"TASK", "STATE", "PID", "LINES", "EXIT"}
	for col, header := range headers {
		cell := tview.NewTableCell(header).
			SetTextColor(tcell.ColorYellow).
			SetSelectable(false)
		u.table.SetCell(0, col, cell)
	}

	for i, name := range names {
		state := u.tasks[name]
		row := i + 1
		u.table.SetCell(row, 0, tview.NewTableCell(name))
		u.table.SetCell(row, 1, tview.NewTableCell(describeState(state)))
		u.table.SetCell(row, 2, tview.NewTableCell(formatPID(state)))
		u.table.SetCell(row, 3, tview.NewTableCell(fmt.Sprintf("%d", len(state.logs))))
		u.table.SetCell(row, 4, tview.NewTableCell(formatExit(state)))
	}

	u.queueDraw()
}

func (u *UI) renderLogsLocked() {
	state, ok := u.tasks[u.selected]
	if !ok {
		u.logs.SetText("")
		return
	}

	var b strings.Builder
	for _, record := range state.logs {
		if u.logsJSON {
			encoded, err := json.Marshal(record)
			if err != nil {
				continue
			}
			b.Write(encoded)
			b.WriteByte('\n')
			continue
		}
		prefix := record.Source
		if prefix == "" {
			prefix = "system"
		}
		fmt.Fprintf(&b, "[%s] %s\n", prefix, record.Message)
	}
	u.logs.SetText(b.String())
	u.logs.ScrollToEnd()
}

func (u *UI) queueDraw() {
	go u.app.QueueUpdateDraw(func() {})
}

func describeState(state *taskState) string {
	switch {
	case state.running:
		return "running"
	case state.exited && state.exitCode == 0:
		return "done"
	case state.exited:
		return "failed"
	default:
		return "pending"
	}
}

func formatPID(state *taskState) string {
	if state.pid == 0 {
		return "-"
	}
	return fmt.Sprintf("%d", state.pid)
}

func formatExit(state *taskState) string {
	if !state.exited {
		return "-"
	}
	return fmt.Sprintf("%d", state.exitCode)
}
