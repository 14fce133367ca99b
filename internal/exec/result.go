package exec

// Result is the outcome of a completed run. Stdout and Stderr hold the
// captured output with surrounding whitespace trimmed. It is never produced
// for cancelled or timed-out runs, which fail with an error instead.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Success reports whether the process exited with code zero.
func (r *Result) Success() bool {
	return r.ExitCode == 0
}
