package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tracks outbound message-gateway calls.
	GatewayRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rfq_gateway_requests_total",
			Help: "Total number of message gateway requests made (by channel and status).",
		},
		[]string{"channel", "status"},
	)

	// Measures duration of gateway requests.
	GatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rfq_gateway_request_duration_seconds",
			Help:    "Duration of message gateway requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms → ~16s
		},
		[]string{"channel"},
	)

	// Tracks send attempts recorded in the dispatch ledger.
	SendAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rfq_send_attempts_total",
			Help: "Total send attempts recorded, by channel and attempt status.",
		},
		[]string{"channel", "status"},
	)

	// Tracks webhook authentication outcomes.
	WebhookAuthTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rfq_webhook_auth_total",
			Help: "Webhook authentication attempts by result.",
		},
		[]string{"result"}, // signature | api_key | trusted | rejected
	)

	// Tracks NATS messages published by subject and result.
	NATSMessageCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nats_messages_total",
			Help: "Total number of NATS messages published.",
		},
		[]string{"subject", "result"}, // result = "ok" | "error"
	)

	NATSMessageLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nats_message_latency_seconds",
			Help:    "Time taken to publish NATS messages",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"subject"},
	)

	// Tracks cache hits and misses for secrets / credentials.
	SecretsCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secrets_cache_access_total",
			Help: "Number of cache hits/misses in secret cache.",
		},
		[]string{"result"}, // hit | miss
	)

	// Tracks total errors (aggregated).
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rfq_engine_errors_total",
			Help: "Count of engine-level errors by component.",
		},
		[]string{"component", "reason"},
	)

	// Gauges RFQs by lifecycle status, refreshed by the summary job.
	RfqStatusCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rfq_status_count",
			Help: "Number of RFQs currently in each lifecycle status.",
		},
		[]string{"status"},
	)
)

// ObserveDuration records the time taken for a function and updates the given histogram.
func ObserveDuration(v interface{}, start time.Time, labels ...string) {
	duration := time.Since(start).Seconds()

	switch metric := v.(type) {
	case *prometheus.HistogramVec:
		metric.WithLabelValues(labels...).Observe(duration)
	case *prometheus.SummaryVec:
		metric.WithLabelValues(labels...).Observe(duration)
	default:
		// silently ignore counters; they're not meant for duration tracking
	}
}

func IncGatewayRequest(channel, status string) {
	GatewayRequestsTotal.WithLabelValues(channel, status).Inc()
}

func IncSendAttempt(channel, status string) {
	SendAttemptsTotal.WithLabelValues(channel, status).Inc()
}

func IncWebhookAuth(result string) {
	WebhookAuthTotal.WithLabelValues(result).Inc()
}

func IncNATSMessage(subject, result string) {
	NATSMessageCount.WithLabelValues(subject, result).Inc()
}

func IncCacheHit(result string) {
	SecretsCacheHits.WithLabelValues(result).Inc()
}

func IncError(component, reason string) {
	ErrorsTotal.WithLabelValues(component, reason).Inc()
}

func SetRfqStatusCount(status string, n int) {
	RfqStatusCount.WithLabelValues(status).Set(float64(n))
}
