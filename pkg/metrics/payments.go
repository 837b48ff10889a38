package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dukapay"

// PaymentMetrics tracks checkout, provider and callback outcomes.
type PaymentMetrics struct {
	checkouts       *prometheus.CounterVec
	providerResults *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
	webhooks        *prometheus.CounterVec
	transitions     *prometheus.CounterVec
}

// NewPaymentMetrics registers payment metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkout_total",
		Help:      "Checkout and retry requests by outcome.",
	}, []string{"flow", "outcome"})
	providerResults := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "provider_requests_total",
		Help:      "Push-payment requests by provider and result kind.",
	}, []string{"provider", "result"})
	providerLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "provider_request_duration_seconds",
		Help:      "Latency of push-payment requests.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
	}, []string{"provider"})
	webhooks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_callbacks_total",
		Help:      "Provider callbacks by outcome.",
	}, []string{"provider", "outcome"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payment_transitions_total",
		Help:      "Payment attempt transition decisions.",
	}, []string{"event", "outcome"})
	reg.MustRegister(checkouts, providerResults, providerLatency, webhooks, transitions)
	return &PaymentMetrics{
		checkouts:       checkouts,
		providerResults: providerResults,
		providerLatency: providerLatency,
		webhooks:        webhooks,
		transitions:     transitions,
	}
}

// IncCheckout counts a checkout or retry outcome.
func (m *PaymentMetrics) IncCheckout(flow, outcome string) {
	if m == nil || m.checkouts == nil {
		return
	}
	m.checkouts.WithLabelValues(normalizeLabel(flow), normalizeLabel(outcome)).Inc()
}

// ObserveProvider records one provider push request.
func (m *PaymentMetrics) ObserveProvider(provider, result string, took time.Duration) {
	if m == nil || m.providerResults == nil {
		return
	}
	m.providerResults.WithLabelValues(normalizeLabel(provider), normalizeLabel(result)).Inc()
	m.providerLatency.WithLabelValues(normalizeLabel(provider)).Observe(took.Seconds())
}

// IncWebhook counts a provider callback outcome.
func (m *PaymentMetrics) IncWebhook(provider, outcome string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalizeLabel(provider), normalizeLabel(outcome)).Inc()
}

// IncTransition counts a state machine decision.
func (m *PaymentMetrics) IncTransition(event, outcome string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(event), normalizeLabel(outcome)).Inc()
}
