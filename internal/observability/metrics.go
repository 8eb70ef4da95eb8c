package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "commute_heatmap"

// Metrics holds the Prometheus counters, histograms, and gauges for the heatmap pipeline and map server.
type Metrics struct {
	// Travel-time acquisition.
	BatchesTotal         *prometheus.CounterVec // labels: outcome={success,error}
	PointsTotal          *prometheus.CounterVec // labels: result={resolved,absent,resumed}
	BatchSize            prometheus.Histogram
	DistanceAPIDuration  prometheus.Histogram
	CheckpointWriteError prometheus.Counter

	// Postcode sampling.
	GeocodeRequests *prometheus.CounterVec // labels: method={search,bulk}, outcome={success,error}
	GeocodeCache    *prometheus.CounterVec // labels: result={hit,miss}

	// Interpolation and rendering.
	GridsInterpolated    *prometheus.CounterVec // labels: method
	InterpolationSeconds prometheus.Histogram
	ArtifactsRendered    *prometheus.CounterVec // labels: kind={raster,contours,legend,map,preview}
	ContourLevelsDropped prometheus.Counter

	// Map server.
	CatalogCities prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		BatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "travel_time_batches_total",
			Help:      "Distance Matrix batches by outcome.",
		}, []string{"outcome"}),
		PointsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "travel_time_points_total",
			Help:      "Sample points processed by result.",
		}, []string{"result"}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "travel_time_batch_size",
			Help:      "Destinations per Distance Matrix request.",
			Buckets:   []float64{1, 5, 10, 15, 20, 25},
		}),
		DistanceAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "distance_api_duration_seconds",
			Help:      "Distance Matrix request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		CheckpointWriteError: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkpoint_write_errors_total",
			Help:      "Failed checkpoint persists.",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "postcodes.io requests by method and outcome.",
		}, []string{"method", "outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Postcode cache lookups by result.",
		}, []string{"result"}),
		GridsInterpolated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grids_interpolated_total",
			Help:      "Interpolated grids produced by method.",
		}, []string{"method"}),
		InterpolationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "interpolation_duration_seconds",
			Help:      "Time spent interpolating and smoothing a grid.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		ArtifactsRendered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_rendered_total",
			Help:      "Rendered artifacts by kind.",
		}, []string{"kind"}),
		ContourLevelsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contour_levels_dropped_total",
			Help:      "Requested contour levels outside the grid range.",
		}),
		CatalogCities: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_cities",
			Help:      "Cities currently served by the map server.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.BatchesTotal,
		m.PointsTotal,
		m.BatchSize,
		m.DistanceAPIDuration,
		m.CheckpointWriteError,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GridsInterpolated,
		m.InterpolationSeconds,
		m.ArtifactsRendered,
		m.ContourLevelsDropped,
		m.CatalogCities,
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
