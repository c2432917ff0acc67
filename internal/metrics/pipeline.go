package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline Prometheus metrics.
var (
	PipelineRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "profundo",
			Name:      "pipeline_runs_total",
			Help:      "Total number of research pipeline runs",
		},
		[]string{"depth", "outcome"}, // outcome: success / error / cancelled
	)

	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "profundo",
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"stage", "status"},
	)

	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "profundo",
			Name:      "llm_requests_total",
			Help:      "Total number of LLM requests",
		},
		[]string{"model", "status"},
	)

	LLMTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "profundo",
			Name:      "llm_tokens_total",
			Help:      "Total LLM tokens consumed",
		},
		[]string{"model", "type"}, // type: input / output
	)

	LLMCostUSDTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "profundo",
			Name:      "llm_cost_usd_total",
			Help:      "Accumulated LLM cost in USD",
		},
		[]string{"model"},
	)

	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "profundo",
			Name:      "search_requests_total",
			Help:      "Total number of web search requests",
		},
		[]string{"provider", "status"},
	)

	EventsEmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "profundo",
			Name:      "pipeline_events_emitted_total",
			Help:      "Total pipeline events written to clients",
		},
		[]string{"kind"},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers Prometheus pipeline metrics.
// Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(PipelineRunsTotal)
	prometheus.MustRegister(StageDuration)
	prometheus.MustRegister(LLMRequestsTotal)
	prometheus.MustRegister(LLMTokensTotal)
	prometheus.MustRegister(LLMCostUSDTotal)
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(EventsEmittedTotal)
	pipelineMetricsRegistered = true
}
