// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askace_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "askace_http_request_duration_seconds",
			Help: "HTTP request duration in seconds",
		},
		[]string{"method", "endpoint"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "askace_pipeline_stage_duration_seconds",
			Help:    "Duration of each pipeline stage in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)

	Runs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askace_pipeline_runs_total",
			Help: "Pipeline runs by outcome",
		},
		[]string{"outcome"},
	)

	ActiveRuns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "askace_pipeline_active_runs",
			Help: "Number of pipeline runs in flight",
		},
	)

	SearchFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "askace_search_failures_total",
			Help: "Search provider calls that failed",
		},
	)

	FetchFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "askace_fetch_fallbacks_total",
			Help: "Search results answered from their snippet after fetch failed",
		},
	)

	LLMTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askace_llm_tokens_total",
			Help: "Tokens reported by generation clients, by client and usage kind",
		},
		[]string{"client", "kind"},
	)

	DeltasProposed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "askace_ace_deltas_proposed_total",
			Help: "Heuristic deltas proposed by the reflector",
		},
	)

	DeltasMerged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "askace_ace_deltas_merged_total",
			Help: "Heuristic deltas accepted by the curator",
		},
	)
)

// Run outcomes.
const (
	OutcomeSuccess           = "success"
	OutcomeEvidenceExhausted = "evidence_exhausted"
	OutcomeError             = "error"
)

// ObserveStage records d against stage.
func ObserveStage(stage string, d time.Duration) {
	StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}
