package exec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	osexec "os/exec"
	"sort"
	"sync"
	"syscall"
)

// Run executes the spec and blocks until the process has exited and both
// output streams have drained, or until the effective cancellation signal
// fires. The effective signal is the caller's ctx combined with the spec's
// deadline when one is set.
//
// On cancellation the process is terminated according to the spec's kill
// mode and Run fails with a *TimeoutError when the deadline fired, or with
// the caller's own ctx.Err() otherwise. Exactly one kill attempt is made per
// run; killing an already-exited process is a silent no-op.
func Run(ctx context.Context, spec *Spec) (*Result, error) {
	if spec == nil || spec.Program == "" {
		return nil, &StartError{Err: errors.New("program is required")}
	}

	runCtx := ctx
	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	cmd := osexec.Command(spec.Program, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = mergeEnv(spec.Env)
	configureSysProcAttr(cmd)

	var stdin io.WriteCloser
	if spec.Input.isSet() {
		pipe, err := cmd.StdinPipe()
		if err != nil {
			return nil, &StartError{Program: spec.Program, Err: err}
		}
		stdin = pipe
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &StartError{Program: spec.Program, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &StartError{Program: spec.Program, Err: err}
	}

	if err := cmd.Start(); err != nil {
		return nil, &StartError{Program: spec.Program, Err: err}
	}

	emitEvent(spec.Sink, Event{
		Task:   spec.Name,
		Type:   EventTypeStarted,
		PID:    cmd.Process.Pid,
		Source: SourceSystem,
	})

	// Drains attach before any stdin write so a child flooding its output
	// cannot deadlock against a full pipe while input is still pending.
	outDrain := newDrain(spec.Name, SourceStdout, spec.Stdout, spec.Sink)
	errDrain := newDrain(spec.Name, SourceStderr, spec.Stderr, spec.Sink)

	var drains sync.WaitGroup
	drains.Add(2)
	go func() {
		defer drains.Done()
		outDrain.run(stdout)
	}()
	go func() {
		defer drains.Done()
		errDrain.run(stderr)
	}()

	inputErr := make(chan error, 1)
	if stdin != nil {
		go func() {
			inputErr <- writeInput(stdin, spec.Input)
		}()
	} else {
		inputErr <- nil
	}

	// Wait reaps the process only after both drains have reached
	// end-of-stream; calling it earlier would close the pipes underneath
	// them. After a kill the pipes hit end-of-stream and the goroutine
	// reaps the child in the background even if Run has already returned.
	waitErr := make(chan error, 1)
	go func() {
		drains.Wait()
		waitErr <- cmd.Wait()
	}()

	select {
	case err := <-waitErr:
		if derr := outDrain.failure(); derr != nil {
			return nil, derr
		}
		if derr := errDrain.failure(); derr != nil {
			return nil, derr
		}
		if werr := <-inputErr; werr != nil {
			return nil, &InputError{Err: werr}
		}
		code, err := exitCode(cmd, err)
		if err != nil {
			return nil, err
		}
		result := &Result{
			ExitCode: code,
			Stdout:   outDrain.text(),
			Stderr:   errDrain.text(),
		}
		emitEvent(spec.Sink, Event{
			Task:   spec.Name,
			Type:   EventTypeExited,
			PID:    cmd.Process.Pid,
			Source: SourceSystem,
			Result: result,
		})
		return result, nil
	case <-runCtx.Done():
		// The deadline context records DeadlineExceeded only when its own
		// timer fired; checking it before the caller's ctx makes the
		// deadline win an ambiguous dual cancellation.
		timedOut := spec.Timeout > 0 && errors.Is(runCtx.Err(), context.DeadlineExceeded)
		kill(cmd, spec.KillMode)
		if timedOut {
			return nil, &TimeoutError{Timeout: spec.Timeout}
		}
		return nil, ctx.Err()
	}
}

func writeInput(w io.WriteCloser, in Input) error {
	src := in.reader()
	if src == nil {
		return w.Close()
	}
	_, err := io.Copy(w, src)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err == nil || errors.Is(err, syscall.EPIPE) || errors.Is(err, os.ErrClosed) {
		// A child that exits without consuming its input is not a write
		// failure.
		return nil
	}
	return err
}

func exitCode(cmd *osexec.Cmd, waitErr error) (int, error) {
	if waitErr == nil {
		return cmd.ProcessState.ExitCode(), nil
	}
	var exitErr *osexec.ExitError
	if errors.As(waitErr, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return 0, fmt.Errorf("wait for %s: %w", cmd.Path, waitErr)
}

func mergeEnv(overrides map[string]string) []string {
	env := os.Environ()
	if len(overrides) == 0 {
		return env
	}
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, fmt.Sprintf("%s=%s", k, overrides[k]))
	}
	return env
}
