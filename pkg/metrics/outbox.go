package metrics

import "github.com/prometheus/client_golang/prometheus"

// OutboxMetrics tracks the outbox publisher.
type OutboxMetrics struct {
	published *prometheus.CounterVec
	failed    *prometheus.CounterVec
	pending   prometheus.Gauge
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_published_total",
		Help: "Order events delivered to the broker.",
	}, []string{"event_type"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_publish_failures_total",
		Help: "Failed publish attempts partitioned by whether the row was parked.",
	}, []string{"event_type", "terminal"})
	pending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "outbox_events_pending",
		Help: "Unpublished order events with attempts left.",
	})
	reg.MustRegister(published, failed, pending)
	return &OutboxMetrics{published: published, failed: failed, pending: pending}
}

func (m *OutboxMetrics) IncPublished(eventType string) {
	if m == nil || m.published == nil {
		return
	}
	m.published.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func (m *OutboxMetrics) IncFailed(eventType string, terminal bool) {
	if m == nil || m.failed == nil {
		return
	}
	label := "false"
	if terminal {
		label = "true"
	}
	m.failed.WithLabelValues(normalizeLabel(eventType), label).Inc()
}

func (m *OutboxMetrics) SetPending(n int64) {
	if m == nil || m.pending == nil {
		return
	}
	m.pending.Set(float64(n))
}
