// Package metrics provides Prometheus metrics for the Harmonia service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AnalysesTotal tracks completed analysis runs by outcome
	AnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "harmonia",
			Subsystem: "analysis",
			Name:      "runs_total",
			Help:      "Total number of event analysis runs by outcome",
		},
		[]string{"outcome"},
	)

	// AnalysisDuration tracks analysis run duration in seconds
	AnalysisDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "harmonia",
			Subsystem: "analysis",
			Name:      "run_duration_seconds",
			Help:      "Duration of event analysis runs in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	// CompletionRequestsTotal tracks outbound model completion requests
	CompletionRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "harmonia",
			Subsystem: "completion",
			Name:      "requests_total",
			Help:      "Total number of outbound model completion requests",
		},
		[]string{"model", "status"},
	)

	// CompletionRequestDuration tracks completion request duration
	CompletionRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "harmonia",
			Subsystem: "completion",
			Name:      "request_duration_seconds",
			Help:      "Duration of outbound model completion requests in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"model"},
	)

	// KafkaMessagesPublished tracks Kafka messages published
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "harmonia",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"},
	)

	// AvatarUploadsTotal tracks avatar uploads by outcome
	AvatarUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "harmonia",
			Subsystem: "storage",
			Name:      "avatar_uploads_total",
			Help:      "Total number of avatar uploads by outcome",
		},
		[]string{"status"},
	)
)

// RecordAnalysisRun records an analysis run outcome and duration
func RecordAnalysisRun(outcome string, durationSeconds float64) {
	AnalysesTotal.WithLabelValues(outcome).Inc()
	AnalysisDuration.Observe(durationSeconds)
}

// RecordCompletionRequest records a model completion request metric
func RecordCompletionRequest(model, status string, durationSeconds float64) {
	CompletionRequestsTotal.WithLabelValues(model, status).Inc()
	CompletionRequestDuration.WithLabelValues(model).Observe(durationSeconds)
}

// RecordKafkaPublish records a Kafka publish operation
func RecordKafkaPublish(topic, status string) {
	KafkaMessagesPublished.WithLabelValues(topic, status).Inc()
}
