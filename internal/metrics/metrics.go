// Package metrics instruments the transaction executor with Prometheus
// collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mms"

// Metrics holds the executor's collectors.
type Metrics struct {
	transactions *prometheus.CounterVec
	phases       *prometheus.HistogramVec
	sideChannel  *prometheus.CounterVec
	gatherer     prometheus.Gatherer
}

// New creates the collectors and registers them with reg. A nil reg gets a
// fresh registry, which keeps tests isolated from the global one.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Transactions by operation, outcome and failure category.",
		}, []string{"operation", "outcome", "category"}),
		phases: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_round_trip_seconds",
			Help:      "Duration of store round trips by operation and phase.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "phase"}),
		sideChannel: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "side_channel_failures_total",
			Help:      "Failed cleanup, journal and event writes.",
		}, []string{"channel"}),
		gatherer: reg,
	}
	reg.MustRegister(m.transactions, m.phases, m.sideChannel)
	return m
}

// ObservePhase records one store round trip.
func (m *Metrics) ObservePhase(operation, phase string, d time.Duration) {
	m.phases.WithLabelValues(operation, phase).Observe(d.Seconds())
}

// ObserveOutcome counts a decided transaction.
func (m *Metrics) ObserveOutcome(operation, outcome, category string) {
	m.transactions.WithLabelValues(operation, outcome, category).Inc()
}

// ObserveSideChannelFailure counts a failed best-effort write.
func (m *Metrics) ObserveSideChannelFailure(channel string) {
	m.sideChannel.WithLabelValues(channel).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
