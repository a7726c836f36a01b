// Package metrics exposes Prometheus metrics for the execution engine,
// served at /metrics in the text exposition format.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	executionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signaldesk_executions_total",
			Help: "Executions by terminal status",
		},
		[]string{"status"},
	)

	stepFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signaldesk_step_failures_total",
			Help: "Failed executions by pipeline step (1-6)",
		},
		[]string{"step"},
	)

	fillAttempts = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "signaldesk_fill_attempts",
			Help:    "Fill attempts consumed per execution reaching step 6",
			Buckets: prometheus.LinearBuckets(1, 1, 14),
		},
	)
)

func init() {
	prometheus.MustRegister(executionsTotal, stepFailures, fillAttempts)
}

// ExecutionDone counts a terminal execution; failed ones also count against
// the step they died on.
func ExecutionDone(status string, step int) {
	executionsTotal.WithLabelValues(status).Inc()
	if status == "failed" {
		stepFailures.WithLabelValues(stepLabel(step)).Inc()
	}
}

// FillAttempts observes how many attempts a fill loop consumed.
func FillAttempts(n int) {
	fillAttempts.Observe(float64(n))
}

func stepLabel(step int) string {
	return strconv.Itoa(step)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
