package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records checkout state transitions and order service latency.
type CheckoutMetrics struct {
	transitions *prometheus.CounterVec
	failures    *prometheus.CounterVec
	calls       *prometheus.HistogramVec
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_transitions_total",
		Help: "Checkout attempt state transitions.",
	}, []string{"from", "to"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_failures_total",
		Help: "Checkout attempts that ended in failure, by kind.",
	}, []string{"kind"})
	calls := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "order_service_call_duration_seconds",
		Help:    "Latency of create-order and verify-payment calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "outcome"})
	reg.MustRegister(transitions, failures, calls)
	return &CheckoutMetrics{
		transitions: transitions,
		failures:    failures,
		calls:       calls,
	}
}

// IncTransition counts a state change.
func (c *CheckoutMetrics) IncTransition(from, to string) {
	if c == nil || c.transitions == nil {
		return
	}
	c.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// IncFailure counts a failed attempt.
func (c *CheckoutMetrics) IncFailure(kind string) {
	if c == nil || c.failures == nil {
		return
	}
	c.failures.WithLabelValues(normalizeLabel(kind)).Inc()
}

// ObserveCall records an order service call.
func (c *CheckoutMetrics) ObserveCall(operation string, err error, duration time.Duration) {
	if c == nil || c.calls == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.calls.WithLabelValues(normalizeLabel(operation), outcome).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
