// Package metrics collects run metrics in a Prometheus registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/edgeqa/edgeqa-runner/pkg/core"
)

const namespace = "edgeqa"

// Collector counts steps and test cases. It implements runner.Observer and
// is safe for concurrent use.
type Collector struct {
	registry *prometheus.Registry

	steps        *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	testCases    *prometheus.CounterVec
	tcDuration   prometheus.Histogram
}

// New creates a collector with its own registry.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Steps finished, by command and status.",
		}, []string{"command", "status"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Step execution time, by command.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"command"}),
		testCases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "test_cases_total",
			Help:      "Test cases finished, by outcome.",
		}, []string{"outcome"}),
		tcDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "test_case_duration_seconds",
			Help:      "Test case execution time.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}
	c.registry.MustRegister(c.steps, c.stepDuration, c.testCases, c.tcDuration)
	return c
}

// StepFinished records one step. Skipped steps are counted but not timed.
func (c *Collector) StepFinished(command string, status core.StepStatus, d time.Duration) {
	c.steps.WithLabelValues(command, status.String()).Inc()
	if status != core.StatusSkipped {
		c.stepDuration.WithLabelValues(command).Observe(d.Seconds())
	}
}

// TestCaseFinished records one test case.
func (c *Collector) TestCaseFinished(outcome core.Outcome, d time.Duration) {
	c.testCases.WithLabelValues(string(outcome)).Inc()
	c.tcDuration.Observe(d.Seconds())
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the metrics for the node exporter textfile
// collector. The file is replaced atomically.
func (c *Collector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}
