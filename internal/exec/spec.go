package exec

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// KillMode selects how aggressively a still-running process is terminated
// when a run is cancelled or times out.
type KillMode string

const (
	// KillNone leaves the process running after cancellation.
	KillNone KillMode = "none"
	// KillProcess terminates only the direct child.
	KillProcess KillMode = "process"
	// KillTree terminates the child and everything it spawned.
	KillTree KillMode = "tree"
)

// ParseKillMode converts a textual mode into a KillMode.
func ParseKillMode(s string) (KillMode, error) {
	switch KillMode(strings.TrimSpace(s)) {
	case KillNone:
		return KillNone, nil
	case KillProcess, "":
		return KillProcess, nil
	case KillTree:
		return KillTree, nil
	}
	return "", fmt.Errorf("invalid kill mode %q (expected none, process or tree)", s)
}

// StreamConfig controls routing for one output stream. Capture accumulates
// trimmed lines into the run result and emits line events; Sink additionally
// receives the raw bytes verbatim. The two are independent; with both unset
// the stream is read and discarded.
type StreamConfig struct {
	Capture bool
	Sink    io.Writer
}

type inputKind int

const (
	inputNone inputKind = iota
	inputText
	inputStream
)

// Input is the stdin source for a run. Exactly one kind is active; the zero
// value means the child receives an immediately closed stdin.
type Input struct {
	kind   inputKind
	text   string
	stream io.Reader
}

// TextInput feeds the provided literal to the child's stdin.
func TextInput(text string) Input {
	return Input{kind: inputText, text: text}
}

// StreamInput feeds bytes read from r to the child's stdin.
func StreamInput(r io.Reader) Input {
	return Input{kind: inputStream, stream: r}
}

func (in Input) isSet() bool {
	return in.kind != inputNone
}

func (in Input) reader() io.Reader {
	switch in.kind {
	case inputText:
		return strings.NewReader(in.text)
	case inputStream:
		return in.stream
	}
	return nil
}

// Spec describes one execution. It is assembled before Run is called and
// must not be mutated while a run that references it is in flight.
type Spec struct {
	// Name labels events emitted for this run. Optional.
	Name string
	// Program is the executable path or name, resolved via PATH.
	Program string
	// Args is the argument vector, passed verbatim without shell
	// interpretation.
	Args []string
	// Env is merged over the inherited environment.
	Env map[string]string
	// Dir is the working directory. Empty inherits the caller's.
	Dir string
	// Input is the stdin source.
	Input Input
	// Stdout and Stderr route the two output streams.
	Stdout StreamConfig
	Stderr StreamConfig
	// Timeout bounds the run. Zero means no deadline.
	Timeout time.Duration
	// KillMode is applied when the run is cancelled or times out.
	KillMode KillMode
	// Sink receives lifecycle events. Nil disables event delivery.
	Sink Sink
}

// New returns a Spec with both streams captured and KillProcess termination.
func New(program string, args ...string) *Spec {
	return &Spec{
		Program:  program,
		Args:     args,
		Stdout:   StreamConfig{Capture: true},
		Stderr:   StreamConfig{Capture: true},
		KillMode: KillProcess,
	}
}

// CommandLine renders the program and arguments with shell-style quoting.
// The rendering is for display only; execution never passes through a shell.
func (s *Spec) CommandLine() string {
	return FormatCommand(s.Program, s.Args)
}
