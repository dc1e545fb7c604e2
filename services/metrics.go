package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes refresh pipeline health to Prometheus.
type Metrics struct {
	runs       *prometheus.CounterVec
	duration   prometheus.Histogram
	inProgress prometheus.Gauge
	units      prometheus.Gauge
	projects   prometheus.Gauge
	rejected   prometheus.Counter
}

// NewMetrics registers the refresh metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "presale_refresh_runs_total",
			Help: "Refresh runs by outcome (success or an error kind).",
		}, []string{"outcome"}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Name: "presale_refresh_duration_seconds",
			Help: "Wall time of completed refresh runs.",
			// Upstream is slow; 0.5s .. ~256s.
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		inProgress: f.NewGauge(prometheus.GaugeOpts{
			Name: "presale_refresh_in_progress",
			Help: "1 while a refresh run is active.",
		}),
		units: f.NewGauge(prometheus.GaugeOpts{
			Name: "presale_snapshot_available_units",
			Help: "Available units in the last persisted snapshot.",
		}),
		projects: f.NewGauge(prometheus.GaugeOpts{
			Name: "presale_snapshot_projects",
			Help: "Projects in the last persisted snapshot.",
		}),
		rejected: f.NewCounter(prometheus.CounterOpts{
			Name: "presale_records_rejected_total",
			Help: "Parsed records dropped by the name deny rules.",
		}),
	}
}

func (m *Metrics) started() {
	if m == nil {
		return
	}
	m.inProgress.Set(1)
}

func (m *Metrics) finished(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.inProgress.Set(0)
	m.runs.WithLabelValues(outcome).Inc()
	m.duration.Observe(took.Seconds())
}

func (m *Metrics) persisted(projects, units int) {
	if m == nil {
		return
	}
	m.projects.Set(float64(projects))
	m.units.Set(float64(units))
}

func (m *Metrics) rejectedRecords(n int) {
	if m == nil {
		return
	}
	m.rejected.Add(float64(n))
}
