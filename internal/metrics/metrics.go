package metrics

import (
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels attached to the run counter.
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeTimeout   = "timeout"
	OutcomeCancelled = "cancelled"
	OutcomeError     = "error"
)

var (
	registry = prometheus.NewRegistry()

	runsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "execo",
		Name:      "runs_total",
		Help:      "Total number of executions by outcome.",
	}, []string{"task", "outcome"})

	runDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "execo",
		Name:      "run_duration_seconds",
		Help:      "Wall-clock duration of executions in seconds.",
	}, []string{"task"})

	killsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "execo",
		Name:      "kills_total",
		Help:      "Total number of termination attempts by kill mode.",
	}, []string{"mode"})

	buildInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "execo",
		Name:      "build_info",
		Help:      "Build metadata for the running execo binary.",
	}, []string{"go_version", "vcs", "vcs_revision", "vcs_time", "vcs_modified"})

	buildInfoOnce sync.Once
)

func init() {
	registry.MustRegister(runsTotal, runDuration, killsTotal, buildInfo)
}

// Registry returns the Prometheus registry containing all execo metrics.
func Registry() *prometheus.Registry {
	return registry
}

// ObserveRun records one completed execution attempt.
func ObserveRun(task, outcome string, d time.Duration) {
	if task == "" {
		task = "unnamed"
	}
	runsTotal.WithLabelValues(task, outcome).Inc()
	runDuration.WithLabelValues(task).Observe(d.Seconds())
}

// IncrementKill records a termination attempt for the provided kill mode.
func IncrementKill(mode string) {
	if mode == "" {
		return
	}
	killsTotal.WithLabelValues(mode).Inc()
}

// EmitBuildInfo publishes build metadata about the running binary.
func EmitBuildInfo() {
	buildInfoOnce.Do(func() {
		labels := prometheus.Labels{
			"go_version":   runtime.Version(),
			"vcs":          "",
			"vcs_revision": "",
			"vcs_time":     "",
			"vcs_modified": "",
		}
		if info, ok := debug.ReadBuildInfo(); ok {
			if info.GoVersion != "" {
				labels["go_version"] = info.GoVersion
			}
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs":
					labels["vcs"] = setting.Value
				case "vcs.revision":
					labels["vcs_revision"] = setting.Value
				case "vcs.time":
					labels["vcs_time"] = setting.Value
				case "vcs.modified":
					labels["vcs_modified"] = setting.Value
				}
			}
		}
		buildInfo.With(labels).Set(1)
	})
}
