package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "seismic"

// Metrics holds the Prometheus counters, histograms, and gauges for ingestion,
// the analysis engine, and the collector.
type Metrics struct {
	MessagesConsumed prometheus.Counter
	EventsIngested   prometheus.Counter
	DuplicateEvents  prometheus.Counter
	TransformErrors  *prometheus.CounterVec // labels: reason={missing_magnitude,invalid,decode}
	PipelineRunning  prometheus.Gauge

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Fan-out of newly ingested events.
	NotificationsPublished prometheus.Counter
	LivePublished          prometheus.Counter
	FanoutErrors           *prometheus.CounterVec // labels: target={notifications,live,subscriptions}
	LiveClients            prometheus.Gauge

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec // labels: outcome={success,error,empty}
	GeocodeCache       *prometheus.CounterVec // labels: result={hit,miss}
	GeocodeAPIDuration prometheus.Histogram
	GeocodeEnabled     prometheus.Gauge

	// Analysis engine metrics.
	TrainDuration    prometheus.Histogram
	TrainFailures    prometheus.Counter
	WindowEvents     prometheus.Gauge
	HotspotsDetected prometheus.Histogram
	ProximityChecks  prometheus.Counter
	DataUnavailable  *prometheus.CounterVec // labels: component={loader,proximity,engine}

	// Collector metrics.
	FeaturesFetched  prometheus.Counter
	FeaturesProduced prometheus.Counter
	FetchErrors      prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		MessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_consumed_total",
			Help:      "Total messages read from the source topic.",
		}),
		EventsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_ingested_total",
			Help:      "Events newly inserted into the store.",
		}),
		DuplicateEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicate_events_total",
			Help:      "Events skipped because their natural key already exists.",
		}),
		TransformErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_errors_total",
			Help:      "Messages rejected during parsing, by reason.",
		}, []string{"reason"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the ingestion pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of messages per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch extract-transform-load cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		NotificationsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_published_total",
			Help:      "Subscription notifications written to the alert topic.",
		}),
		LivePublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "live_events_published_total",
			Help:      "Events published on the live channel.",
		}),
		FanoutErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fanout_errors_total",
			Help:      "Failures handing new events to downstream consumers.",
		}, []string{"target"}),
		LiveClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_clients",
			Help:      "Connected live feed websocket clients.",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Reverse geocoding API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      "Geocoding cache lookups by result.",
		}, []string{"result"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      "1 when geocoding enrichment is enabled, 0 otherwise.",
		}),
		TrainDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "engine_train_duration_seconds",
			Help:      "Duration of a load-and-estimate training cycle.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		TrainFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_train_failures_total",
			Help:      "Training cycles that kept the previous snapshot.",
		}),
		WindowEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "engine_window_events",
			Help:      "Events in the currently trained historical window.",
		}),
		HotspotsDetected: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "hotspots_detected",
			Help:      "Hotspots returned per detection run.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		}),
		ProximityChecks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proximity_checks_total",
			Help:      "Proximity checks evaluated.",
		}),
		DataUnavailable: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "data_unavailable_total",
			Help:      "Event source failures by component.",
		}, []string{"component"}),
		FeaturesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collector_features_fetched_total",
			Help:      "Features returned by the USGS event service.",
		}),
		FeaturesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collector_features_produced_total",
			Help:      "Features written to the source topic.",
		}),
		FetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collector_fetch_errors_total",
			Help:      "Failed USGS poll cycles.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.MessagesConsumed,
		m.EventsIngested,
		m.DuplicateEvents,
		m.TransformErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.NotificationsPublished,
		m.LivePublished,
		m.FanoutErrors,
		m.LiveClients,
		m.GeocodeRequests,
		m.GeocodeCache,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
		m.TrainDuration,
		m.TrainFailures,
		m.WindowEvents,
		m.HotspotsDetected,
		m.ProximityChecks,
		m.DataUnavailable,
		m.FeaturesFetched,
		m.FeaturesProduced,
		m.FetchErrors,
	}
}
