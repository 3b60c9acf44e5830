package providers

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the client-side collectors. One value must be shared by every
// session that registers into the same registry.
type Metrics struct {
	upstreamRequests *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec

	PagesFetched    prometheus.Counter
	ReadingsDecoded *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		upstreamRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "octopus_upstream_requests_total",
				Help: "Total number of requests made to the Octopus APIs.",
			},
			[]string{"api", "code"},
		),
		upstreamDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "octopus_upstream_request_duration_seconds",
				Help:    "Octopus API request latency in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"api"},
		),
		PagesFetched: factory.NewCounter(prometheus.CounterOpts{
			Name: "octopus_consumption_pages_fetched_total",
			Help: "Total number of consumption pages fetched by readers.",
		}),
		ReadingsDecoded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "octopus_readings_decoded_total",
			Help: "Total number of consumption readings decoded.",
		}, []string{"api"}),
	}
}

var (
	defaultMetricsOnce sync.Once
	defaultMetrics     *Metrics
)

// DefaultMetrics returns the collectors registered with the default
// prometheus registry.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		defaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

func (m *Metrics) observeUpstream(api, code string, dur time.Duration) {
	m.upstreamRequests.WithLabelValues(api, code).Inc()
	m.upstreamDuration.WithLabelValues(api).Observe(dur.Seconds())
}
