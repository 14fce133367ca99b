package config

import (
	"fmt"
	"time"

	"github.com/Paintersrp/execo/internal/exec"
)

// Duration wraps time.Duration for YAML unmarshalling.
type Duration struct {
	time.Duration
	explicit bool
}

// UnmarshalText parses a textual duration, accepting empty strings.
func (d *Duration) UnmarshalText(text []byte) error {
	d.explicit = true
	if len(text) == 0 {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = dur
	return nil
}

// MarshalText renders the duration using time.Duration formatting.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// IsSet reports whether the duration was explicitly provided or non-zero.
func (d Duration) IsSet() bool {
	return d.explicit || d.Duration != 0
}

// File mirrors the tasks.yaml document structure.
type File struct {
	Version  string               `yaml:"version"`
	Defaults Defaults             `yaml:"defaults"`
	Tasks    map[string]*TaskSpec `yaml:"tasks"`
}

// Defaults captures default policies applied to tasks.
type Defaults struct {
	Timeout  Duration `yaml:"timeout"`
	KillMode string   `yaml:"killMode"`
	Workdir  string   `yaml:"workdir"`
}

// TaskSpec describes a single runnable task.
type TaskSpec struct {
	Command     []string          `yaml:"command"`
	Workdir     string            `yaml:"workdir"`
	Env         map[string]string `yaml:"env"`
	EnvFromFile string            `yaml:"envFromFile"`
	Stdin       *StdinSpec        `yaml:"stdin"`
	Timeout     Duration          `yaml:"timeout"`
	KillMode    string            `yaml:"killMode"`
	Capture     *CaptureSpec      `yaml:"capture"`
	Needs       []string          `yaml:"needs"`

	// ResolvedWorkdir is the absolute working directory computed at load
	// time from the task file location.
	ResolvedWorkdir string `yaml:"-"`
}

// StdinSpec selects the task's input source. Text and File are mutually
// exclusive.
type StdinSpec struct {
	Text string `yaml:"text"`
	File string `yaml:"file"`
}

// CaptureSpec toggles per-stream capture. Nil pointers inherit the default
// of capturing both streams.
type CaptureSpec struct {
	Stdout *bool `yaml:"stdout"`
	Stderr *bool `yaml:"stderr"`
}

// Clone creates a deep copy of the task specification.
func (t *TaskSpec) Clone() *TaskSpec {
	if t == nil {
		return nil
	}
	cp := *t
	cp.Command = append([]string(nil), t.Command...)
	cp.Needs = append([]string(nil), t.Needs...)
	if t.Env != nil {
		cp.Env = make(map[string]string, len(t.Env))
		for k, v := range t.Env {
			cp.Env[k] = v
		}
	}
	if t.Stdin != nil {
		stdin := *t.Stdin
		cp.Stdin = &stdin
	}
	if t.Capture != nil {
		capture := CaptureSpec{}
		if t.Capture.Stdout != nil {
			v := *t.Capture.Stdout
			capture.Stdout = &v
		}
		if t.Capture.Stderr != nil {
			v := *t.Capture.Stderr
			capture.Stderr = &v
		}
		cp.Capture = &capture
	}
	return &cp
}

// ApplyDefaults folds the defaults block into each task.
func (f *File) ApplyDefaults() error {
	for _, task := range f.Tasks {
		if task == nil {
			continue
		}
		if !task.Timeout.IsSet() {
			task.Timeout = f.Defaults.Timeout
		}
		if task.KillMode == "" {
			task.KillMode = f.Defaults.KillMode
		}
		if task.KillMode == "" {
			task.KillMode = string(exec.KillProcess)
		}
	}
	return nil
}

// Validate checks structural consistency of the document.
func (f *File) Validate() error {
	if len(f.Tasks) == 0 {
		return fmt.Errorf("tasks: at least one task is required")
	}
	for name, task := range f.Tasks {
		if task == nil {
			return fmt.Errorf("%s: task definition is empty", taskField(name, ""))
		}
		if len(task.Command) == 0 {
			return fmt.Errorf("%s: command is required", taskField(name, "command"))
		}
		if task.Command[0] == "" {
			return fmt.Errorf("%s: executable must not be empty", taskField(name, "command[0]"))
		}
		if _, err := exec.ParseKillMode(task.KillMode); err != nil {
			return fmt.Errorf("%s: %w", taskField(name, "killMode"), err)
		}
		if task.Stdin != nil && task.Stdin.Text != "" && task.Stdin.File != "" {
			return fmt.Errorf("%s: text and file are mutually exclusive", taskField(name, "stdin"))
		}
		if task.Timeout.Duration < 0 {
			return fmt.Errorf("%s: timeout must not be negative", taskField(name, "timeout"))
		}
		for _, dep := range task.Needs {
			if _, ok := f.Tasks[dep]; !ok {
				return fmt.Errorf("%s: unknown task %q", taskField(name, "needs"), dep)
			}
			if dep == name {
				return fmt.Errorf("%s: task cannot need itself", taskField(name, "needs"))
			}
		}
	}
	return nil
}

func taskField(name, field string) string {
	if field == "" {
		return fmt.Sprintf("tasks.%s", name)
	}
	return fmt.Sprintf("tasks.%s.%s", name, field)
}
