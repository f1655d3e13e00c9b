package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// station classification engine.
type Metrics struct {
	RefreshCycles   prometheus.Counter
	RefreshErrors   prometheus.Counter
	RefreshDuration prometheus.Histogram
	EngineReady     prometheus.Gauge

	ReadingsProcessed prometheus.Counter
	ReadingsDropped   prometheus.Counter
	StationsCurrent   prometheus.Gauge
	StatusTotal       *prometheus.CounterVec // labels: status

	// Threshold resolver metrics.
	ResolverStages  *prometheus.CounterVec // labels: stage
	ThresholdMisses prometheus.Counter

	// Coordinate resolution metrics.
	CoordSources         *prometheus.CounterVec // labels: source
	GeocodeRequests      *prometheus.CounterVec // labels: outcome={success,empty,error}
	GeocodeBatchDuration prometheus.Histogram
	CacheWrites          prometheus.Counter

	SinkPublished prometheus.Counter
	SinkErrors    prometheus.Counter
}

// NewMetrics creates and registers all engine metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RefreshCycles,
		m.RefreshErrors,
		m.RefreshDuration,
		m.EngineReady,
		m.ReadingsProcessed,
		m.ReadingsDropped,
		m.StationsCurrent,
		m.StatusTotal,
		m.ResolverStages,
		m.ThresholdMisses,
		m.CoordSources,
		m.GeocodeRequests,
		m.GeocodeBatchDuration,
		m.CacheWrites,
		m.SinkPublished,
		m.SinkErrors,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering the collectors,
// avoiding "already registered" panics across tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RefreshCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hydro_engine",
			Name:      "refresh_cycles_total",
			Help:      "Total completed refresh cycles.",
		}),
		RefreshErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hydro_engine",
			Name:      "refresh_errors_total",
			Help:      "Refresh cycles aborted by an upstream failure.",
		}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hydro_engine",
			Name:      "refresh_duration_seconds",
			Help:      "Duration of a complete fetch-classify-resolve cycle.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		EngineReady: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hydro_engine",
			Name:      "ready",
			Help:      "1 once the engine holds a classified snapshot.",
		}),
		ReadingsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hydro_engine",
			Name:      "readings_processed_total",
			Help:      "Live readings folded into classified stations.",
		}),
		ReadingsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hydro_engine",
			Name:      "readings_dropped_total",
			Help:      "Readings dropped for lacking a usable identity.",
		}),
		StationsCurrent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hydro_engine",
			Name:      "stations_current",
			Help:      "Stations in the latest classified snapshot.",
		}),
		StatusTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hydro_engine",
			Name:      "status_total",
			Help:      "Classified stations by resulting status.",
		}, []string{"status"}),
		ResolverStages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hydro_engine",
			Name:      "resolver_stage_total",
			Help:      "Threshold cascade stages consulted, by stage number.",
		}, []string{"stage"}),
		ThresholdMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hydro_engine",
			Name:      "threshold_misses_total",
			Help:      "Readings whose threshold cascade was exhausted.",
		}),
		CoordSources: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hydro_engine",
			Name:      "coordinate_source_total",
			Help:      "Coordinate resolutions by cascade source.",
		}, []string{"source"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hydro_engine",
			Name:      "geocode_requests_total",
			Help:      "Geocoding queries by outcome.",
		}, []string{"outcome"}),
		GeocodeBatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hydro_engine",
			Name:      "geocode_batch_duration_seconds",
			Help:      "Duration of one throttled geocoding batch.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		CacheWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hydro_engine",
			Name:      "coordinate_cache_writes_total",
			Help:      "Geocoded coordinates written back to the persistent cache.",
		}),
		SinkPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hydro_engine",
			Name:      "sink_published_total",
			Help:      "Classified stations published to the Kafka sink.",
		}),
		SinkErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hydro_engine",
			Name:      "sink_errors_total",
			Help:      "Failed Kafka sink publishes.",
		}),
	}
}
