package api

import (
	"sync"
	"time"
)

// RunReport summarises one completed or failed execution for API consumers.
type RunReport struct {
	Task      string    `json:"task"`
	Command   string    `json:"command"`
	Outcome   string    `json:"outcome"`
	ExitCode  *int      `json:"exit_code,omitempty"`
	Error     string    `json:"error,omitempty"`
	StartedAt time.Time `json:"started_at"`
	Duration  string    `json:"duration"`
}

// Recorder retains run reports for the status endpoint. It is safe for
// concurrent use by parallel executions.
type Recorder struct {
	mu      sync.Mutex
	reports []RunReport
	limit   int
}

// NewRecorder keeps at most limit reports, discarding the oldest first. A
// non-positive limit retains everything.
func NewRecorder(limit int) *Recorder {
	return &Recorder{limit: limit}
}

// Record appends a report.
func (r *Recorder) Record(report RunReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
	if r.limit > 0 && len(r.reports) > r.limit {
		r.reports = r.reports[len(r.reports)-r.limit:]
	}
}

// Reports returns a copy of the retained reports, oldest first.
func (r *Recorder) Reports() []RunReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RunReport, len(r.reports))
	copy(out, r.reports)
	return out
}
