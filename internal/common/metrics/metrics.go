// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FunctionInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "function_invocations_total",
			Help: "Total number of function invocations by response status",
		},
		[]string{"function", "status"},
	)

	FunctionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "function_duration_seconds",
			Help:    "Duration of function invocations in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"function"},
	)

	FunctionsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "function_invocations_active",
			Help: "Number of in-flight invocations per function",
		},
		[]string{"function"},
	)

	SkillRecordsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skill_records_processed_total",
			Help: "Total number of skill records processed by outcome",
		},
		[]string{"outcome"},
	)

	ChatCompletionCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_completion_calls_total",
			Help: "Total number of chat completion calls by orchestration phase",
		},
		[]string{"phase"},
	)
)
