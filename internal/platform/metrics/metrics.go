package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the ingestion pipeline.
type Metrics struct {
	LinesReceived     prometheus.Counter
	DownloadsParsed   prometheus.Counter
	LinesDiscarded    prometheus.Counter
	EventsDropped     prometheus.Counter
	WritesSucceeded   prometheus.Counter
	WritesFailed      prometheus.Counter
	ActiveConnections prometheus.Gauge
	WriteDuration     prometheus.Histogram
}

// New creates and registers all metrics on the given registerer. Pass
// prometheus.DefaultRegisterer in main; tests use a private registry so
// repeated construction never collides.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LinesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "pkgstats_lines_received_total",
			Help: "Total log lines received on the syslog stream",
		}),
		DownloadsParsed: factory.NewCounter(prometheus.CounterOpts{
			Name: "pkgstats_downloads_parsed_total",
			Help: "Total lines recognized as package downloads",
		}),
		LinesDiscarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "pkgstats_lines_discarded_total",
			Help: "Total lines discarded as unparsable or not a download",
		}),
		EventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "pkgstats_events_dropped_total",
			Help: "Total parsed events dropped because the dispatch queue was full",
		}),
		WritesSucceeded: factory.NewCounter(prometheus.CounterOpts{
			Name: "pkgstats_writes_succeeded_total",
			Help: "Total download events durably stored",
		}),
		WritesFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "pkgstats_writes_failed_total",
			Help: "Total persistence calls that failed or panicked",
		}),
		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pkgstats_active_connections",
			Help: "Open syslog stream connections",
		}),
		WriteDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pkgstats_write_duration_seconds",
			Help:    "Latency of download persistence calls",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

// ObserveWrite records the outcome and latency of one persistence call.
func (m *Metrics) ObserveWrite(d time.Duration, err error) {
	m.WriteDuration.Observe(d.Seconds())
	if err != nil {
		m.WritesFailed.Inc()
		return
	}
	m.WritesSucceeded.Inc()
}
