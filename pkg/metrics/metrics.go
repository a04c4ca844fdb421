package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "reportsummary", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "reportsummary", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	IngestedDocuments = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "reportsummary", Name: "webhook_documents_inserted_total", Help: "Documents inserted through the webhook, by collection."},
		[]string{"collection"},
	)
	IngestWarnings = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "reportsummary", Name: "webhook_warnings_total", Help: "Skipped batches and invalid records seen by the webhook."},
		[]string{"kind"},
	)
	AggregationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: "reportsummary", Name: "aggregation_duration_seconds", Help: "Report pipeline latency.", Buckets: prometheus.DefBuckets},
		[]string{"pipeline", "outcome"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(IngestedDocuments)
	reg.MustRegister(IngestWarnings)
	reg.MustRegister(AggregationDuration)
}
