// Package metrics は在庫・注文・決済まわりのPrometheusカウンタ。
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "onlinestore"

// nilでも呼べる（テストでは省略できる）
type Metrics struct {
	ConflictRetries   *prometheus.CounterVec
	InsufficientStock prometheus.Counter
	PaymentEvents     *prometheus.CounterVec
	OrderTransitions  *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		ConflictRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflict_retries_total",
			Help:      "Retries caused by version or unique conflicts.",
		}, []string{"op"}),
		InsufficientStock: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "insufficient_stock_total",
			Help:      "Stock decrements rejected for insufficient quantity.",
		}),
		PaymentEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_events_total",
			Help:      "Payment provider events by type and result.",
		}, []string{"type", "result"}),
		OrderTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_transitions_total",
			Help:      "Order status transitions.",
		}, []string{"from", "to"}),
		gatherer: reg,
	}

	reg.MustRegister(m.ConflictRetries, m.InsufficientStock, m.PaymentEvents, m.OrderTransitions)
	return m
}

func (m *Metrics) ConflictRetry(op string) {
	if m == nil {
		return
	}
	m.ConflictRetries.WithLabelValues(op).Inc()
}

func (m *Metrics) StockRejected() {
	if m == nil {
		return
	}
	m.InsufficientStock.Inc()
}

func (m *Metrics) PaymentEvent(eventType, result string) {
	if m == nil {
		return
	}
	m.PaymentEvents.WithLabelValues(eventType, result).Inc()
}

func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	m.OrderTransitions.WithLabelValues(from, to).Inc()
}

// /metrics
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
