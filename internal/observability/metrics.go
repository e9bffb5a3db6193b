package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// discovery service.
type Metrics struct {
	SessionsActive  prometheus.Gauge
	SessionsCreated prometheus.Counter
	SessionsEvicted prometheus.Counter

	// Directory client metrics.
	DirectoryRequests *prometheus.CounterVec   // labels: op={all,nearby,by_city,detail}, outcome={success,error}
	DirectoryDuration *prometheus.HistogramVec // labels: op={all,nearby,by_city,detail}

	// Position lookup metrics.
	LocateRequests *prometheus.CounterVec // labels: outcome={success,denied,timeout,unavailable}
	LocateCache    *prometheus.CounterVec // labels: result={hit,miss}

	// Reverse geocoding metrics.
	GeocodeRequests *prometheus.CounterVec // labels: outcome={success,error,empty}
	GeocodeCache    *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeEnabled  prometheus.Gauge

	// Degraded-mode and ranking metrics.
	Fallbacks    *prometheus.CounterVec // labels: reason={directory,locate,nearby,city}
	RankDuration prometheus.Histogram

	HandoffPublishes *prometheus.CounterVec // labels: outcome={success,error}
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "salon_discovery",
			Name:      "sessions_active",
			Help:      "Number of live discovery sessions.",
		}),
		SessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "salon_discovery",
			Name:      "sessions_created_total",
			Help:      "Total discovery sessions created.",
		}),
		SessionsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "salon_discovery",
			Name:      "sessions_evicted_total",
			Help:      "Total sessions evicted after exceeding the idle limit.",
		}),
		DirectoryRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salon_discovery",
			Name:      "directory_requests_total",
			Help:      "Directory API requests by operation and outcome.",
		}, []string{"op", "outcome"}),
		DirectoryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "salon_discovery",
			Name:      "directory_request_duration_seconds",
			Help:      "Directory API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"op"}),
		LocateRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salon_discovery",
			Name:      "locate_requests_total",
			Help:      "Position lookups by outcome.",
		}, []string{"outcome"}),
		LocateCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salon_discovery",
			Name:      "locate_cache_total",
			Help:      "Position cache lookups by result.",
		}, []string{"result"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salon_discovery",
			Name:      "geocode_requests_total",
			Help:      "Reverse geocoding requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salon_discovery",
			Name:      "geocode_cache_total",
			Help:      "Reverse geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "salon_discovery",
			Name:      "geocode_enabled",
			Help:      "1 when reverse geocoding is enabled, 0 otherwise.",
		}),
		Fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salon_discovery",
			Name:      "fallbacks_total",
			Help:      "Degraded continuations by reason.",
		}, []string{"reason"}),
		RankDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "salon_discovery",
			Name:      "rank_duration_seconds",
			Help:      "Duration of filtering and sorting a working set.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		HandoffPublishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salon_discovery",
			Name:      "handoff_publishes_total",
			Help:      "Selection publish attempts by outcome.",
		}, []string{"outcome"}),
	}

	prometheus.MustRegister(
		m.SessionsActive,
		m.SessionsCreated,
		m.SessionsEvicted,
		m.DirectoryRequests,
		m.DirectoryDuration,
		m.LocateRequests,
		m.LocateCache,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeEnabled,
		m.Fallbacks,
		m.RankDuration,
		m.HandoffPublishes,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		SessionsActive:    prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "salon_discovery", Name: "sessions_active"}),
		SessionsCreated:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "salon_discovery", Name: "sessions_created_total"}),
		SessionsEvicted:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "salon_discovery", Name: "sessions_evicted_total"}),
		DirectoryRequests: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "salon_discovery", Name: "directory_requests_total"}, []string{"op", "outcome"}),
		DirectoryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "salon_discovery", Name: "directory_request_duration_seconds"}, []string{"op"}),
		LocateRequests:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "salon_discovery", Name: "locate_requests_total"}, []string{"outcome"}),
		LocateCache:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "salon_discovery", Name: "locate_cache_total"}, []string{"result"}),
		GeocodeRequests:   prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "salon_discovery", Name: "geocode_requests_total"}, []string{"outcome"}),
		GeocodeCache:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "salon_discovery", Name: "geocode_cache_total"}, []string{"result"}),
		GeocodeEnabled:    prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "salon_discovery", Name: "geocode_enabled"}),
		Fallbacks:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "salon_discovery", Name: "fallbacks_total"}, []string{"reason"}),
		RankDuration:      prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "salon_discovery", Name: "rank_duration_seconds"}),
		HandoffPublishes:  prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "salon_discovery", Name: "handoff_publishes_total"}, []string{"outcome"}),
	}
}
