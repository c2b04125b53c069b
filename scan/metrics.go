package scan

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/soter-security/soter/wpvulndb"
)

// Metrics are updated at the end of each cycle and per lookup. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	ScansTotal    *prometheus.CounterVec
	QueriesTotal  *prometheus.CounterVec
	Findings      prometheus.Gauge
	ScanDuration  prometheus.Histogram
	LastSuccessAt prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{}

	m.ScansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soter_scans_total",
			Help: "Total number of scan cycles by terminal state",
		},
		[]string{"state"},
	)

	m.QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soter_queries_total",
			Help: "Total number of component lookups",
		},
		[]string{"kind", "outcome"},
	)

	m.Findings = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "soter_findings",
			Help: "Number of applicable vulnerabilities found by the last scan",
		},
	)

	m.ScanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "soter_scan_duration_seconds",
			Help:    "Duration of scan cycles in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	m.LastSuccessAt = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "soter_last_completed_scan_timestamp_seconds",
			Help: "Unix time of the last scan that checked every component",
		},
	)

	reg.MustRegister(
		m.ScansTotal,
		m.QueriesTotal,
		m.Findings,
		m.ScanDuration,
		m.LastSuccessAt,
	)

	return m
}

func (m *Metrics) observeQuery(kind wpvulndb.Kind, outcome string) {
	if m == nil {
		return
	}
	m.QueriesTotal.WithLabelValues(string(kind), outcome).Inc()
}

func (m *Metrics) observeScan(r Result) {
	if m == nil {
		return
	}
	m.ScansTotal.WithLabelValues(r.State.String()).Inc()
	m.Findings.Set(float64(len(r.Findings)))
	m.ScanDuration.Observe(r.FinishedAt.Sub(r.StartedAt).Seconds())
	if r.State == Completed {
		m.LastSuccessAt.Set(float64(r.FinishedAt.Unix()))
	}
}
