package metrics_test

import (
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Paintersrp/execo/internal/metrics"
)

func TestRegistryExposesMetrics(t *testing.T) {
	task := "metrics_test_task"

	metrics.EmitBuildInfo()
	metrics.ObserveRun(task, metrics.OutcomeSuccess, 250*time.Millisecond)
	metrics.ObserveRun(task, metrics.OutcomeTimeout, time.Second)
	metrics.IncrementKill("tree")

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}).ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("unexpected status code from metrics handler: %d", rec.Code)
	}

	body := rec.Body.String()
	successLine := fmt.Sprintf("execo_runs_total{outcome=\"success\",task=\"%s\"} 1", task)
	if !strings.Contains(body, successLine) {
		t.Fatalf("expected run counter line %q in body:\n%s", successLine, body)
	}
	timeoutLine := fmt.Sprintf("execo_runs_total{outcome=\"timeout\",task=\"%s\"} 1", task)
	if !strings.Contains(body, timeoutLine) {
		t.Fatalf("expected timeout counter line %q in body:\n%s", timeoutLine, body)
	}
	if !strings.Contains(body, "execo_kills_total{mode=\"tree\"} 1") {
		t.Fatalf("expected kill counter in body:\n%s", body)
	}
	if !strings.Contains(body, "execo_build_info{") {
		t.Fatalf("expected build info metric in body:\n%s", body)
	}
	if !strings.Contains(body, "go_version=") {
		t.Fatalf("expected go_version label on build info metric:\n%s", body)
	}
}

func TestObserveRunDefaultsTaskLabel(t *testing.T) {
	metrics.ObserveRun("", metrics.OutcomeFailure, time.Millisecond)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}).ServeHTTP(rec, req)

	if !strings.Contains(rec.Body.String(), "task=\"unnamed\"") {
		t.Fatalf("expected unnamed task label:\n%s", rec.Body.String())
	}
}
