// journal-payments/pkg/metrics/metrics.go
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// "provider" label lets one query compare click vs payme traffic.
	WebhookRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payments",
			Name:      "webhook_requests_total",
			Help:      "Total provider webhook calls",
		},
		[]string{"provider", "operation", "status"},
	)

	WebhookDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "payments",
			Name:      "webhook_duration_seconds",
			Help:      "Webhook handling duration",
			// providers time out after a few seconds, so keep buckets sub-second heavy
			Buckets: []float64{
				0.01, 0.02, 0.03, 0.05, 0.08, 0.12,
				0.2, 0.3, 0.5, 0.8, 1.2, 2, 3, 5,
			},
		},
		[]string{"provider", "status"},
	)

	TransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payments",
			Name:      "transitions_total",
			Help:      "Ledger status transitions applied",
		},
		[]string{"provider", "to"},
	)

	// The degraded invoice->pay-link path must stay observable, not silent.
	InvoiceFallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payments",
			Name:      "invoice_fallback_total",
			Help:      "Invoice creation calls degraded to a direct pay-link",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		WebhookRequestsTotal,
		WebhookDuration,
		TransitionsTotal,
		InvoiceFallbackTotal,
	)
}

// Helpers keep handler call sites short.
func IncWebhook(provider, operation, status string) {
	WebhookRequestsTotal.WithLabelValues(provider, operation, status).Inc()
}

func ObserveWebhook(provider, status string, seconds float64) {
	WebhookDuration.WithLabelValues(provider, status).Observe(seconds)
}

func IncTransition(provider, to string) {
	TransitionsTotal.WithLabelValues(provider, to).Inc()
}

func IncInvoiceFallback(reason string) {
	InvoiceFallbackTotal.WithLabelValues(reason).Inc()
}
