package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes Prometheus collectors for the workers and the scraper.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	scrapesTotal     *prometheus.CounterVec
	passDuration     *prometheus.HistogramVec
	recordErrors     *prometheus.CounterVec
	episodesPlaced   prometheus.Counter
	releasesByStatus *prometheus.GaugeVec
}

// New creates the collectors and registers them on reg. When reg is nil the
// default registry is used.
func New(reg *prometheus.Registry) *Metrics {
	var registerer prometheus.Registerer = prometheus.DefaultRegisterer
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if reg != nil {
		registerer = reg
		gatherer = reg
	}

	m := &Metrics{
		gatherer: gatherer,

		scrapesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trackarr_scrapes_total",
				Help: "Total number of release page collections by tracker and outcome",
			},
			[]string{"tracker", "outcome"}, // outcome: success or the error kind
		),

		passDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trackarr_worker_pass_duration_seconds",
				Help:    "Duration of worker passes in seconds",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
			},
			[]string{"worker"},
		),

		recordErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trackarr_record_errors_total",
				Help: "Total number of per-release failures by worker",
			},
			[]string{"worker"},
		),

		episodesPlaced: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "trackarr_episodes_placed_total",
				Help: "Total number of episodes placed into the media library",
			},
		),

		releasesByStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "trackarr_releases",
				Help: "Number of releases by control status",
			},
			[]string{"status"},
		),
	}

	registerer.MustRegister(
		m.scrapesTotal,
		m.passDuration,
		m.recordErrors,
		m.episodesPlaced,
		m.releasesByStatus,
	)

	return m
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveScrape counts one collection attempt
func (m *Metrics) ObserveScrape(tracker, outcome string) {
	if m == nil {
		return
	}
	m.scrapesTotal.WithLabelValues(tracker, outcome).Inc()
}

// ObservePass records the duration of one worker pass
func (m *Metrics) ObservePass(worker string, started time.Time) {
	if m == nil {
		return
	}
	m.passDuration.WithLabelValues(worker).Observe(time.Since(started).Seconds())
}

// RecordError counts one failed release within a worker pass
func (m *Metrics) RecordError(worker string) {
	if m == nil {
		return
	}
	m.recordErrors.WithLabelValues(worker).Inc()
}

// EpisodesPlaced adds n placed episodes
func (m *Metrics) EpisodesPlaced(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.episodesPlaced.Add(float64(n))
}

// SetReleaseCounts replaces the per-status release gauge
func (m *Metrics) SetReleaseCounts(counts map[string]int64) {
	if m == nil {
		return
	}
	for status, count := range counts {
		m.releasesByStatus.WithLabelValues(status).Set(float64(count))
	}
}
