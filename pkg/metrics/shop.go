package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ShopMetrics counts checkout attempts and payment callback outcomes.
type ShopMetrics struct {
	checkouts *prometheus.CounterVec
	callbacks *prometheus.CounterVec
}

// NewShopMetrics registers the storefront counters on the provided registerer.
func NewShopMetrics(reg prometheus.Registerer) *ShopMetrics {
	if reg == nil {
		return &ShopMetrics{}
	}
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_orders_total",
		Help: "Checkout attempts partitioned by result.",
	}, []string{"result"})
	callbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_callbacks_total",
		Help: "Verified payment gateway callbacks partitioned by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(checkouts, callbacks)
	return &ShopMetrics{
		checkouts: checkouts,
		callbacks: callbacks,
	}
}

// IncCheckout increments the checkout counter for the given result.
func (m *ShopMetrics) IncCheckout(result string) {
	if m == nil || m.checkouts == nil {
		return
	}
	m.checkouts.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncCallback increments the callback counter for the given outcome.
func (m *ShopMetrics) IncCallback(outcome string) {
	if m == nil || m.callbacks == nil {
		return
	}
	m.callbacks.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
