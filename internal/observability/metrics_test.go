package observability

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewPipelineCollectorRegistersMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewPipelineCollector(reg)
	if err != nil {
		t.Fatalf("NewPipelineCollector: %v", err)
	}

	c.RunCompleted("prediction", "ok")
	c.RunCompleted("prediction", "error")
	c.ViolationFound("hi")
	c.ObserveStage("simulate", 0.25)
	c.ObserveChainDepth(3)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, mf := range families {
		byName[mf.GetName()] = mf
	}

	runs, ok := byName["thermcheck_runs_total"]
	if !ok {
		t.Fatal("thermcheck_runs_total not gathered")
	}
	var total float64
	for _, m := range runs.GetMetric() {
		total += m.GetCounter().GetValue()
	}
	if total != 2 {
		t.Fatalf("runs total = %v, want 2", total)
	}

	if _, ok := byName["thermcheck_violations_total"]; !ok {
		t.Fatal("thermcheck_violations_total not gathered")
	}
	if _, ok := byName["thermcheck_stage_duration_seconds"]; !ok {
		t.Fatal("thermcheck_stage_duration_seconds not gathered")
	}
	depth, ok := byName["thermcheck_continuity_chain_depth"]
	if !ok {
		t.Fatal("thermcheck_continuity_chain_depth not gathered")
	}
	if got := depth.GetMetric()[0].GetHistogram().GetSampleCount(); got != 1 {
		t.Fatalf("chain depth sample count = %d, want 1", got)
	}
}

func TestNewPipelineCollectorTolerantOfReRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPipelineCollector(reg); err != nil {
		t.Fatalf("first NewPipelineCollector: %v", err)
	}
	if _, err := NewPipelineCollector(reg); err != nil {
		t.Fatalf("second NewPipelineCollector: %v", err)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *PipelineCollector
	c.RunCompleted("prediction", "ok")
	c.ViolationFound("lo")
	c.ObserveStage("scan", 0.01)
	c.ObserveChainDepth(1)
	if c.Handler() == nil {
		t.Fatal("nil collector Handler returned nil")
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewPipelineCollector(reg)
	if err != nil {
		t.Fatalf("NewPipelineCollector: %v", err)
	}
	c.RunCompleted("validation", "ok")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "thermcheck_runs_total") {
		t.Fatal("metrics output missing thermcheck_runs_total")
	}
}
