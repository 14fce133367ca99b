package cli

import (
	stdcontext "context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/execo/internal/cliutil"
	"github.com/Paintersrp/execo/internal/config"
	"github.com/Paintersrp/execo/internal/event"
	"github.com/Paintersrp/execo/internal/exec"
	"github.com/Paintersrp/execo/internal/metrics"
)

func newTaskCmd(ctx *context) *cobra.Command {
	var (
		parallel   bool
		jsonOutput bool
		listenAddr string
	)

	cmd := &cobra.Command{
		Use:   "task [name...]",
		Short: "Run tasks from the task file in dependency order",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, graph, err := ctx.loadTasks()
			if err != nil {
				return err
			}

			order, err := selectTasks(graph, args)
			if err != nil {
				return err
			}

			finishServer, err := startStatusServer(cmd.Context(), ctx, listenAddr, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			runner := &taskRunner{
				ctx:    ctx,
				file:   file,
				graph:  graph,
				stdout: cmd.OutOrStdout(),
				stderr: cmd.ErrOrStderr(),
				json:   jsonOutput,
			}

			var runErr error
			if parallel {
				runErr = runner.runParallel(cmd.Context(), order)
			} else {
				runErr = runner.runSequential(cmd.Context(), order)
			}

			if finishServer != nil {
				if err := finishServer(); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "error: status server: %v\n", err)
				}
			}
			return runErr
		},
	}

	cmd.Flags().BoolVar(&parallel, "parallel", false, "Run independent tasks concurrently")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit lifecycle events as JSON lines")
	cmd.Flags().StringVar(&listenAddr, "listen", "", "Serve run reports and metrics on this address while running")

	return cmd
}

// selectTasks resolves the requested task names plus their transitive needs
// into execution order. No names selects every task.
func selectTasks(graph *config.Graph, names []string) ([]string, error) {
	if len(names) == 0 {
		return graph.Tasks(), nil
	}
	return graph.Closure(names...)
}

type taskRunner struct {
	ctx    *context
	file   *config.File
	graph  *config.Graph
	stdout io.Writer
	stderr io.Writer
	json   bool
}

func (r *taskRunner) runSequential(runCtx stdcontext.Context, order []string) error {
	mux := event.New(256)
	consumerDone := r.consume(mux.Output())

	failed := make(map[string]string)
	var firstErr error
	for _, name := range order {
		if reason := r.skipReason(name, failed); reason != "" {
			failed[name] = "skipped"
			r.reportSkip(mux, name, reason)
			continue
		}
		if err := runCtx.Err(); err != nil {
			failed[name] = "cancelled"
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		if err := r.runOne(runCtx, mux, name); err != nil {
			failed[name] = err.Error()
			if firstErr == nil {
				firstErr = fmt.Errorf("task %q failed: %w", name, err)
			}
		}
	}

	mux.Close()
	<-consumerDone
	return firstErr
}

func (r *taskRunner) runParallel(runCtx stdcontext.Context, order []string) error {
	selected := make(map[string]bool, len(order))
	for _, name := range order {
		selected[name] = true
	}

	mux := event.New(256)
	consumerDone := r.consume(mux.Output())

	var (
		mu       sync.Mutex
		failed   = make(map[string]string)
		firstErr error
	)

	for _, batch := range r.graph.Batches() {
		var wave []string
		for _, name := range batch {
			if !selected[name] {
				continue
			}
			if reason := r.skipReason(name, failed); reason != "" {
				failed[name] = "skipped"
				r.reportSkip(mux, name, reason)
				continue
			}
			wave = append(wave, name)
		}
		if len(wave) == 0 {
			continue
		}
		if err := runCtx.Err(); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			break
		}

		var wg sync.WaitGroup
		for _, name := range wave {
			wg.Add(1)
			go func(name string) {
				defer wg.Done()
				err := r.runOne(runCtx, mux, name)
				if err == nil {
					return
				}
				mu.Lock()
				failed[name] = err.Error()
				if firstErr == nil {
					firstErr = fmt.Errorf("task %q failed: %w", name, err)
				}
				mu.Unlock()
			}(name)
		}
		wg.Wait()
	}

	mux.Close()
	<-consumerDone
	return firstErr
}

// skipReason reports why a task cannot run given earlier failures.
func (r *taskRunner) skipReason(name string, failed map[string]string) string {
	for _, need := range r.file.Tasks[name].Needs {
		if _, ok := failed[need]; ok {
			return fmt.Sprintf("dependency %q did not succeed", need)
		}
	}
	return ""
}

func (r *taskRunner) reportSkip(mux *event.Mux, name, reason string) {
	ch := make(chan exec.Event, 1)
	mux.Add(ch)
	ch <- exec.Event{
		Timestamp: time.Now(),
		Task:      name,
		Type:      exec.EventTypeLine,
		Source:    exec.SourceSystem,
		Line:      "skipped: " + reason,
	}
	close(ch)
}

// runOne executes a single task and records its metrics and report.
func (r *taskRunner) runOne(runCtx stdcontext.Context, mux *event.Mux, name string) error {
	spec, cleanup, err := buildTaskSpec(r.file.Tasks[name], name)
	if err != nil {
		return err
	}

	events := make(chan exec.Event, 64)
	mux.Add(events)
	spec.Sink = event.ChannelSink(events)

	started := time.Now()
	result, runErr := exec.Run(runCtx, spec)
	// Flush line writers before the event channel closes.
	cleanup()
	close(events)
	duration := time.Since(started)

	outcome := classifyOutcome(result, runErr)
	metrics.ObserveRun(name, outcome, duration)
	if outcome == metrics.OutcomeTimeout || outcome == metrics.OutcomeCancelled {
		metrics.IncrementKill(string(spec.KillMode))
	}
	r.ctx.recorder.Record(buildReport(spec, result, runErr, outcome, started, duration))

	if runErr != nil {
		return runErr
	}
	if !result.Success() {
		return fmt.Errorf("exit status %d", result.ExitCode)
	}
	return nil
}

// consume drains muxed events to the configured output until the channel
// closes. The returned channel signals completion.
func (r *taskRunner) consume(events <-chan exec.Event) chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if r.json {
			enc := json.NewEncoder(r.stdout)
			for evt := range events {
				cliutil.EncodeLogEvent(enc, r.stderr, evt)
			}
			return
		}
		for evt := range events {
			r.printEvent(evt)
		}
	}()
	return done
}

func (r *taskRunner) printEvent(evt exec.Event) {
	switch evt.Type {
	case exec.EventTypeStarted:
		fmt.Fprintf(r.stderr, "%s: started pid=%d\n", evt.Task, evt.PID)
	case exec.EventTypeExited:
		if evt.Result != nil {
			fmt.Fprintf(r.stderr, "%s: exited code=%d\n", evt.Task, evt.Result.ExitCode)
		}
	case exec.EventTypeLine:
		line := cliutil.RedactSecrets(evt.Line)
		if evt.Source == exec.SourceStdout {
			fmt.Fprintf(r.stdout, "%s | %s\n", evt.Task, line)
			return
		}
		fmt.Fprintf(r.stderr, "%s ! %s\n", evt.Task, line)
	}
}

// buildTaskSpec converts a task definition into an execution spec. The
// returned cleanup closes any files opened for stdin or line forwarding.
func buildTaskSpec(task *config.TaskSpec, name string) (*exec.Spec, func(), error) {
	spec := exec.New(task.Command[0], task.Command[1:]...)
	spec.Name = name
	spec.Dir = task.ResolvedWorkdir
	spec.Env = task.Env
	spec.Timeout = task.Timeout.Duration

	mode, err := exec.ParseKillMode(task.KillMode)
	if err != nil {
		return nil, nil, err
	}
	spec.KillMode = mode

	var closers []io.Closer
	cleanup := func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}

	if task.Stdin != nil {
		switch {
		case task.Stdin.Text != "":
			spec.Input = exec.TextInput(task.Stdin.Text)
		case task.Stdin.File != "":
			handle, err := os.Open(task.Stdin.File)
			if err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("open stdin file: %w", err)
			}
			closers = append(closers, handle)
			spec.Input = exec.StreamInput(handle)
		}
	}

	if task.Capture != nil {
		if task.Capture.Stdout != nil && !*task.Capture.Stdout {
			writer := event.NewLineWriter(sinkOf(spec), name, exec.SourceStdout)
			closers = append(closers, writer)
			spec.Stdout = exec.StreamConfig{Sink: writer}
		}
		if task.Capture.Stderr != nil && !*task.Capture.Stderr {
			writer := event.NewLineWriter(sinkOf(spec), name, exec.SourceStderr)
			closers = append(closers, writer)
			spec.Stderr = exec.StreamConfig{Sink: writer}
		}
	}

	return spec, cleanup, nil
}

// sinkOf defers sink resolution so line writers built before Sink assignment
// still deliver to the final destination.
func sinkOf(spec *exec.Spec) exec.Sink {
	return exec.SinkFunc(func(evt exec.Event) {
		if spec.Sink != nil {
			spec.Sink.Accept(evt)
		}
	})
}
