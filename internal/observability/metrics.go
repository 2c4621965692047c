package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "radar_loop"

// Metrics holds the Prometheus counters, histograms, and gauges for the radar loop.
type Metrics struct {
	EngineRunning prometheus.Gauge

	// Mode and playback metrics.
	ModeSwitches   *prometheus.CounterVec // labels: mode
	FramesAdvanced prometheus.Counter
	PlaybackState  prometheus.Gauge // 0 stopped, 1 loading, 2 playing

	// Prefetch metrics.
	PrefetchTiles    *prometheus.CounterVec // labels: outcome={loaded,errored}
	PrefetchSessions *prometheus.CounterVec // labels: outcome={completed,canceled}
	PrefetchDuration prometheus.Histogram
	TileCache        *prometheus.CounterVec // labels: result={hit,miss}

	// Timestamp lookup metrics.
	TimestampLookups     *prometheus.CounterVec // labels: outcome={success,error,fallback}
	TimestampCache       *prometheus.CounterVec // labels: result={hit,miss}
	TimestampAPIDuration prometheus.Histogram

	// Archive processing metrics.
	ArchiveJobs  *prometheus.CounterVec // labels: outcome={completed,failed,timeout}
	ArchivePolls prometheus.Counter

	// Event and command metrics.
	EventsPublished  prometheus.Counter
	EventsDropped    prometheus.Counter
	CommandsConsumed prometheus.Counter
	CommandErrors    prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)

	prometheus.MustRegister(
		m.EngineRunning,
		m.ModeSwitches,
		m.FramesAdvanced,
		m.PlaybackState,
		m.PrefetchTiles,
		m.PrefetchSessions,
		m.PrefetchDuration,
		m.TileCache,
		m.TimestampLookups,
		m.TimestampCache,
		m.TimestampAPIDuration,
		m.ArchiveJobs,
		m.ArchivePolls,
		m.EventsPublished,
		m.EventsDropped,
		m.CommandsConsumed,
		m.CommandErrors,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}

	return &Metrics{
		EngineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "engine_running",
			Help:      help("1 when the engine loop is active, 0 when shut down."),
		}),
		ModeSwitches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mode_switches_total",
			Help:      help("Visualization mode transitions by target mode."),
		}, []string{"mode"}),
		FramesAdvanced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_advanced_total",
			Help:      help("Frames advanced by the playback ticker."),
		}),
		PlaybackState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "playback_state",
			Help:      help("Playback state: 0 stopped, 1 loading, 2 playing."),
		}),
		PrefetchTiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prefetch_tiles_total",
			Help:      help("Prefetched tiles by outcome."),
		}, []string{"outcome"}),
		PrefetchSessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prefetch_sessions_total",
			Help:      help("Prefetch sessions by outcome."),
		}, []string{"outcome"}),
		PrefetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prefetch_duration_seconds",
			Help:      help("Time from prefetch start until every tile settled."),
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		TileCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tile_cache_total",
			Help:      help("Tile cache lookups by result."),
		}, []string{"result"}),
		TimestampLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timestamp_lookups_total",
			Help:      help("RealEarth latest-timestamp lookups by outcome."),
		}, []string{"outcome"}),
		TimestampCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timestamp_cache_total",
			Help:      help("RealEarth timestamp cache lookups by result."),
		}, []string{"result"}),
		TimestampAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "timestamp_api_duration_seconds",
			Help:      help("RealEarth products API request duration in seconds."),
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		ArchiveJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_jobs_total",
			Help:      help("Single-file archive processing jobs by outcome."),
		}, []string{"outcome"}),
		ArchivePolls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_polls_total",
			Help:      help("Job status polls against the processing backend."),
		}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      help("State change events handed to the publisher."),
		}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      help("State change events dropped because the publish queue was full."),
		}),
		CommandsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_consumed_total",
			Help:      help("Commands read from the command topic."),
		}),
		CommandErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "command_errors_total",
			Help:      help("Commands rejected by decoding or the engine."),
		}),
	}
}
