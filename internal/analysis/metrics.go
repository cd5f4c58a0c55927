package analysis

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	llmCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spyglass",
			Name:      "llm_calls_total",
			Help:      "Total LLM API calls",
		},
		[]string{"provider", "model", "status"},
	)

	llmDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "spyglass",
			Name:      "llm_duration_seconds",
			Help:      "Duration of LLM API calls in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~50s
		},
		[]string{"provider", "model"},
	)

	llmTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spyglass",
			Name:      "llm_tokens_total",
			Help:      "Total LLM tokens consumed",
		},
		[]string{"provider", "model", "direction"},
	)

	bucketsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spyglass",
			Name:      "analysis_buckets_total",
			Help:      "Analysis buckets processed by final state",
		},
		[]string{"state"},
	)

	runDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "spyglass",
			Name:      "analysis_run_duration_seconds",
			Help:      "Duration of whole analysis runs in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)

	recordsUpserted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "spyglass",
			Name:      "analysis_records_upserted_total",
			Help:      "Analysis records written or overwritten",
		},
	)

	unsatisfiedModalities = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "spyglass",
			Name:      "unsatisfied_modalities_total",
			Help:      "Required modalities no catalog model could serve",
		},
		[]string{"modality"},
	)
)
