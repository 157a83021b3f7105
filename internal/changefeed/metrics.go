package changefeed

import "github.com/prometheus/client_golang/prometheus"

var (
	ChangesPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livequery_changefeed_published_total",
			Help: "Total number of changes published to the feed",
		},
		[]string{"op", "result"},
	)

	ChangesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livequery_changefeed_received_total",
			Help: "Total number of changes received from the feed, by outcome",
		},
		[]string{"op", "outcome"},
	)

	PublishLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "livequery_changefeed_publish_duration_seconds",
			Help:    "Latency of change feed publishes",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(ChangesPublished)
	prometheus.MustRegister(ChangesReceived)
	prometheus.MustRegister(PublishLatency)
}
