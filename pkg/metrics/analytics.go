package metrics

import "github.com/prometheus/client_golang/prometheus"

// AnalyticsMetrics counts order event messages by how the worker settled them.
type AnalyticsMetrics struct {
	messages *prometheus.CounterVec
}

func NewAnalyticsMetrics(reg prometheus.Registerer) *AnalyticsMetrics {
	if reg == nil {
		return nil
	}
	messages := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "analytics_messages_total",
		Help: "Order event messages handled by the analytics worker.",
	}, []string{"event_type", "outcome"})
	reg.MustRegister(messages)
	return &AnalyticsMetrics{messages: messages}
}

func (a *AnalyticsMetrics) Observe(eventType, outcome string) {
	if a == nil {
		return
	}
	a.messages.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}
