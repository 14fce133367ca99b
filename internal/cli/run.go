package cli

import (
	stdcontext "context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/execo/internal/api"
	"github.com/Paintersrp/execo/internal/cliutil"
	"github.com/Paintersrp/execo/internal/event"
	"github.com/Paintersrp/execo/internal/exec"
	"github.com/Paintersrp/execo/internal/metrics"
	"github.com/Paintersrp/execo/internal/tui"
)

// Exit statuses for abnormal run outcomes, mirroring timeout(1) and shell
// conventions.
const (
	exitCodeTimeout   = 124
	exitCodeInternal  = 125
	exitCodeStartFail = 127
	exitCodeCancelled = 130
)

func newRunCmd(ctx *context) *cobra.Command {
	var (
		name       string
		timeout    time.Duration
		killMode   string
		workdir    string
		envPairs   []string
		stdinText  string
		stdinFile  string
		noCapture  bool
		jsonOutput bool
		useTUI     bool
		listenAddr string
	)

	cmd := &cobra.Command{
		Use:   "run [flags] -- program [args...]",
		Short: "Run a single program with a bounded lifetime",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := exec.ParseKillMode(killMode)
			if err != nil {
				return err
			}
			env, err := parseEnvPairs(envPairs)
			if err != nil {
				return err
			}
			if stdinText != "" && stdinFile != "" {
				return errors.New("--stdin and --stdin-file are mutually exclusive")
			}

			spec := exec.New(args[0], args[1:]...)
			spec.Name = name
			spec.Timeout = timeout
			spec.KillMode = mode
			spec.Dir = workdir
			spec.Env = env

			if stdinText != "" {
				spec.Input = exec.TextInput(stdinText)
			}
			var stdinHandle *os.File
			if stdinFile != "" {
				if stdinFile == "-" {
					spec.Input = exec.StreamInput(cmd.InOrStdin())
				} else {
					stdinHandle, err = os.Open(stdinFile)
					if err != nil {
						return fmt.Errorf("open stdin file: %w", err)
					}
					defer stdinHandle.Close()
					spec.Input = exec.StreamInput(stdinHandle)
				}
			}

			switch {
			case useTUI:
				if jsonOutput {
					return errors.New("--tui and --json are mutually exclusive")
				}
				if !supportsInteractiveOutput(cmd) {
					return errors.New("--tui requires an interactive terminal")
				}
				return runWithTUI(cmd, ctx, spec, listenAddr)
			case noCapture:
				spec.Stdout = exec.StreamConfig{Sink: cmd.OutOrStdout()}
				spec.Stderr = exec.StreamConfig{Sink: cmd.ErrOrStderr()}
			case jsonOutput:
				// Capture stays on; line events carry the output.
			default:
				spec.Stdout = exec.StreamConfig{Capture: true, Sink: cmd.OutOrStdout()}
				spec.Stderr = exec.StreamConfig{Capture: true, Sink: cmd.ErrOrStderr()}
			}

			var drainEvents func()
			if jsonOutput {
				events := make(chan exec.Event, 64)
				spec.Sink = event.ChannelSink(events)
				enc := json.NewEncoder(cmd.OutOrStdout())
				done := make(chan struct{})
				go func() {
					defer close(done)
					for evt := range events {
						cliutil.EncodeLogEvent(enc, cmd.ErrOrStderr(), evt)
					}
				}()
				drainEvents = func() {
					close(events)
					<-done
				}
			}

			result, runErr := executeRun(cmd.Context(), ctx, spec, listenAddr)
			if drainEvents != nil {
				drainEvents()
			}
			return runOutcome(result, runErr)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Label attached to lifecycle events")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Maximum run duration (0 disables the deadline)")
	cmd.Flags().StringVar(&killMode, "kill", "process", "Termination policy on cancellation (none, process, tree)")
	cmd.Flags().StringVar(&workdir, "dir", "", "Working directory for the child process")
	cmd.Flags().StringArrayVar(&envPairs, "env", nil, "Environment override KEY=VALUE (repeatable)")
	cmd.Flags().StringVar(&stdinText, "stdin", "", "Literal text to write to the child's stdin")
	cmd.Flags().StringVar(&stdinFile, "stdin-file", "", "File to stream to the child's stdin (- for this process's stdin)")
	cmd.Flags().BoolVar(&noCapture, "no-capture", false, "Forward output verbatim without capture or line events")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit lifecycle events as JSON lines")
	cmd.Flags().BoolVar(&useTUI, "tui", false, "Show the interactive live view")
	cmd.Flags().StringVar(&listenAddr, "listen", "", "Serve run reports and metrics on this address while running")

	return cmd
}

// executeRun performs the run with metrics and report recording, optionally
// exposing the HTTP status endpoint for the duration.
func executeRun(runCtx stdcontext.Context, ctx *context, spec *exec.Spec, listenAddr string) (*exec.Result, error) {
	finishServer, err := startStatusServer(runCtx, ctx, listenAddr, os.Stderr)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	result, runErr := exec.Run(runCtx, spec)
	duration := time.Since(started)

	outcome := classifyOutcome(result, runErr)
	metrics.ObserveRun(spec.Name, outcome, duration)
	if outcome == metrics.OutcomeTimeout || outcome == metrics.OutcomeCancelled {
		metrics.IncrementKill(string(spec.KillMode))
	}
	ctx.recorder.Record(buildReport(spec, result, runErr, outcome, started, duration))

	if finishServer != nil {
		if err := finishServer(); err != nil {
			fmt.Fprintf(os.Stderr, "error: status server: %v\n", err)
		}
	}
	return result, runErr
}

func runWithTUI(cmd *cobra.Command, ctx *context, spec *exec.Spec, listenAddr string) error {
	ui := tui.New()
	spec.Sink = event.ChannelSink(ui.EventSink())
	spec.Stdout = exec.StreamConfig{Capture: true}
	spec.Stderr = exec.StreamConfig{Capture: true}

	runCtx, cancel := stdcontext.WithCancel(cmd.Context())
	defer cancel()

	type runResult struct {
		result *exec.Result
		err    error
	}
	resultCh := make(chan runResult, 1)
	go func() {
		result, err := executeRun(runCtx, ctx, spec, listenAddr)
		resultCh <- runResult{result: result, err: err}
		ui.CloseEvents()
	}()

	go func() {
		// Quitting the view cancels the run.
		<-ui.Done()
		cancel()
	}()

	if err := ui.Run(runCtx); err != nil {
		return err
	}
	res := <-resultCh
	return runOutcome(res.result, res.err)
}

// runOutcome converts a run result into the command's exit status.
func runOutcome(result *exec.Result, runErr error) error {
	if runErr != nil {
		var timeoutErr *exec.TimeoutError
		var startErr *exec.StartError
		switch {
		case errors.As(runErr, &timeoutErr):
			return &exitCodeError{code: exitCodeTimeout, message: runErr.Error()}
		case errors.As(runErr, &startErr):
			return &exitCodeError{code: exitCodeStartFail, message: runErr.Error()}
		case errors.Is(runErr, stdcontext.Canceled):
			return &exitCodeError{code: exitCodeCancelled, message: "execution cancelled"}
		default:
			return &exitCodeError{code: exitCodeInternal, message: runErr.Error()}
		}
	}
	if result != nil {
		return exitWithCode(result.ExitCode)
	}
	return nil
}

func classifyOutcome(result *exec.Result, runErr error) string {
	if runErr != nil {
		var timeoutErr *exec.TimeoutError
		switch {
		case errors.As(runErr, &timeoutErr):
			return metrics.OutcomeTimeout
		case errors.Is(runErr, stdcontext.Canceled):
			return metrics.OutcomeCancelled
		default:
			return metrics.OutcomeError
		}
	}
	if result != nil && !result.Success() {
		return metrics.OutcomeFailure
	}
	return metrics.OutcomeSuccess
}

func buildReport(spec *exec.Spec, result *exec.Result, runErr error, outcome string, started time.Time, duration time.Duration) api.RunReport {
	report := api.RunReport{
		Task:      spec.Name,
		Command:   spec.CommandLine(),
		Outcome:   outcome,
		StartedAt: started.UTC(),
		Duration:  duration.Round(time.Millisecond).String(),
	}
	if runErr != nil {
		report.Error = runErr.Error()
	}
	if result != nil {
		code := result.ExitCode
		report.ExitCode = &code
	}
	return report
}

func parseEnvPairs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	env := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid environment override %q, expected KEY=VALUE", pair)
		}
		env[key] = value
	}
	return env, nil
}
