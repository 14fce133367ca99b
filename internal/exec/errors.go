package exec

import (
	"fmt"
	"time"
)

// StartError reports that the process could not be launched. No kill is
// attempted and no other error kind can follow it.
type StartError struct {
	Program string
	Err     error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("start %s: %v", e.Program, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

// InputError reports a failure while writing the configured stdin.
type InputError struct {
	Err error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("write stdin: %v", e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// TimeoutError reports that the configured deadline elapsed before the
// process exited and its output drained.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("execution timed out after %s", e.Timeout)
}

// DrainError reports an I/O failure, unrelated to cancellation, while
// reading one of the output streams.
type DrainError struct {
	Source string
	Err    error
}

func (e *DrainError) Error() string {
	return fmt.Sprintf("drain %s: %v", e.Source, e.Err)
}

func (e *DrainError) Unwrap() error { return e.Err }
