// Package metrics records scan counters and exports them in the Prometheus
// text format for the node exporter textfile collector.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ochairo/vulnscan/internal/domain/entities"
)

// Metrics holds the scan metrics on a private registry
type Metrics struct {
	registry *prometheus.Registry

	ArtifactsTotal  *prometheus.CounterVec
	FindingsTotal   *prometheus.CounterVec
	RunsTotal       *prometheus.CounterVec
	RunDuration     prometheus.Histogram
	LastRunTime     prometheus.Gauge
	LastRunFindings prometheus.Gauge
}

// NewMetrics creates and registers all scan metrics
func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.ArtifactsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vulnscan_artifacts_total",
			Help: "Artifacts seen by scan runs, by how they were handled",
		},
		[]string{"outcome"},
	)

	m.FindingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vulnscan_findings_total",
			Help: "Vulnerable artifacts reported, by check category",
		},
		[]string{"category"},
	)

	m.RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vulnscan_runs_total",
			Help: "Completed scan runs by verdict",
		},
		[]string{"verdict"},
	)

	m.RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vulnscan_run_duration_seconds",
			Help:    "Duration of scan runs",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	m.LastRunTime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vulnscan_last_run_timestamp_seconds",
			Help: "Unix time the last scan run finished",
		},
	)

	m.LastRunFindings = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "vulnscan_last_run_findings",
			Help: "Number of findings reported by the last scan run",
		},
	)

	m.registry.MustRegister(
		m.ArtifactsTotal,
		m.FindingsTotal,
		m.RunsTotal,
		m.RunDuration,
		m.LastRunTime,
		m.LastRunFindings,
	)
	return m
}

// Registry exposes the private registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveOutcome records the counters of a finished run
func (m *Metrics) ObserveOutcome(outcome *entities.ScanOutcome) {
	stats := outcome.Stats
	m.ArtifactsTotal.WithLabelValues("discovered").Add(float64(stats.Discovered))
	m.ArtifactsTotal.WithLabelValues("skipped").Add(float64(stats.Skipped))
	m.ArtifactsTotal.WithLabelValues("cached").Add(float64(stats.CacheHits))
	m.ArtifactsTotal.WithLabelValues("scanned").Add(float64(stats.Dispatched))

	for _, finding := range outcome.Findings {
		m.FindingsTotal.WithLabelValues(string(finding.Category)).Inc()
	}

	m.RunsTotal.WithLabelValues(string(outcome.Verdict)).Inc()
	m.RunDuration.Observe(stats.Duration.Seconds())
	m.LastRunTime.SetToCurrentTime()
	m.LastRunFindings.Set(float64(len(outcome.Findings)))
}

// WriteTextfile writes every metric to path in the Prometheus text format
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
