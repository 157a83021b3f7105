package livequery

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Subscriptions
	SubscriptionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "livequery_subscriptions_active",
		Help: "The number of subscriptions currently registered",
	})

	EventsEmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "livequery_events_emitted_total",
		Help: "The total number of subscription events emitted",
	}, []string{"kind"})

	ClassificationFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "livequery_classification_failures_total",
		Help: "The total number of mutations a subscription failed to classify",
	})

	// Mutations
	MutationsApplied = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "livequery_mutations_total",
		Help: "The total number of mutations fanned out to subscriptions",
	}, []string{"op", "source"})

	// Store
	StoreOps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "livequery_store_operations_total",
		Help: "The total number of store operations",
	}, []string{"op", "result"})

	StoreLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "livequery_store_latency_seconds",
		Help: "The latency of store operations",
	}, []string{"op"})
)

func init() {
	prometheus.MustRegister(SubscriptionsActive)
	prometheus.MustRegister(EventsEmitted)
	prometheus.MustRegister(ClassificationFailures)
	prometheus.MustRegister(MutationsApplied)
	prometheus.MustRegister(StoreOps)
	prometheus.MustRegister(StoreLatency)
}

func observeStore(op string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	StoreOps.WithLabelValues(op, result).Inc()
	StoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
