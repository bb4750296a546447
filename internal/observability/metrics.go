package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PipelineCollector bundles Prometheus metrics for the review pipeline. A nil
// collector is valid and records nothing, so the engine never has to guard
// its instrumentation calls.
type PipelineCollector struct {
	gatherer prometheus.Gatherer

	Runs           *prometheus.CounterVec
	Violations     *prometheus.CounterVec
	StageDurations *prometheus.HistogramVec
	ChainDepth     prometheus.Histogram
}

// NewPipelineCollector registers pipeline metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewPipelineCollector(reg prometheus.Registerer) (*PipelineCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "thermcheck_runs_total",
		Help: "Completed review runs, labeled by mode (prediction, validation) and outcome.",
	}, []string{"mode", "outcome"})
	runs, err := registerCounterVec(reg, runs, "thermcheck_runs_total")
	if err != nil {
		return nil, err
	}

	violations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "thermcheck_violations_total",
		Help: "Planning limit violations found, labeled by kind (hi, lo).",
	}, []string{"kind"})
	violations, err = registerCounterVec(reg, violations, "thermcheck_violations_total")
	if err != nil {
		return nil, err
	}

	stages := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "thermcheck_stage_duration_seconds",
		Help:    "Pipeline stage latency in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"stage"})
	stages, err = registerHistogramVec(reg, stages, "thermcheck_stage_duration_seconds")
	if err != nil {
		return nil, err
	}

	depth, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "thermcheck_continuity_chain_depth",
		Help:    "Loads walked while resolving continuity for a run.",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21, 30},
	}), "thermcheck_continuity_chain_depth")
	if err != nil {
		return nil, err
	}

	return &PipelineCollector{
		gatherer:       gatherer,
		Runs:           runs,
		Violations:     violations,
		StageDurations: stages,
		ChainDepth:     depth,
	}, nil
}

// RunCompleted counts one finished run.
func (c *PipelineCollector) RunCompleted(mode, outcome string) {
	if c == nil || c.Runs == nil {
		return
	}
	c.Runs.WithLabelValues(mode, outcome).Inc()
}

// ViolationFound counts one planning limit violation.
func (c *PipelineCollector) ViolationFound(kind string) {
	if c == nil || c.Violations == nil {
		return
	}
	c.Violations.WithLabelValues(kind).Inc()
}

// ObserveStage records the latency of one pipeline stage.
func (c *PipelineCollector) ObserveStage(stage string, seconds float64) {
	if c == nil || c.StageDurations == nil {
		return
	}
	c.StageDurations.WithLabelValues(stage).Observe(seconds)
}

// ObserveChainDepth records how many loads a resolution walked.
func (c *PipelineCollector) ObserveChainDepth(depth int) {
	if c == nil || c.ChainDepth == nil {
		return
	}
	c.ChainDepth.Observe(float64(depth))
}

// Handler exposes a ready-to-use /metrics handler.
func (c *PipelineCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}
