/*
Package metrics holds the Prometheus collectors of the pipeline.

PURPOSE:
  Batch commands record run and stage durations, per-file load outcomes and
  rows written, then dump the registry to a textfile (node_exporter textfile
  collector format) when METRICS_FILE is set. The report server exposes the
  same registry on /metrics.

NIL SAFETY:
  Every method accepts a nil *Metrics and does nothing, so components can
  run without metrics wired (tests, library use).

SEE ALSO:
  - ingest/loader.go: File outcomes
  - summary/summarizer.go: Stage durations
  - api/server.go: /metrics endpoint
*/
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vendor_analytics"

// Metrics groups the collectors on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	RunDuration   *prometheus.HistogramVec
	StageDuration *prometheus.HistogramVec
	Files         *prometheus.CounterVec
	RowsWritten   *prometheus.CounterVec
	SummaryRows   prometheus.Gauge
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of load and summarize runs.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900, 1800},
		}, []string{"command", "status"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of summarizer stages.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		Files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_total",
			Help:      "Tabular files seen by the loader, by format and outcome.",
		}, []string{"format", "outcome"}),
		RowsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_written_total",
			Help:      "Rows written per table.",
		}, []string{"table"}),
		SummaryRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "summary_rows",
			Help:      "Rows in the last computed vendor summary.",
		}),
	}

	m.Registry.MustRegister(
		m.RunDuration,
		m.StageDuration,
		m.Files,
		m.RowsWritten,
		m.SummaryRows,
		collectors.NewGoCollector(),
	)
	return m
}

// ObserveRun records the duration of a whole command.
func (m *Metrics) ObserveRun(command, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.RunDuration.WithLabelValues(command, status).Observe(d.Seconds())
}

// ObserveStage records the duration of one summarizer stage.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// FileLoaded counts a loader outcome ("loaded", "failed", "skipped").
func (m *Metrics) FileLoaded(format, outcome string) {
	if m == nil {
		return
	}
	m.Files.WithLabelValues(format, outcome).Inc()
}

// RowsWrittenTo adds n rows written to table.
func (m *Metrics) RowsWrittenTo(table string, n int) {
	if m == nil {
		return
	}
	m.RowsWritten.WithLabelValues(table).Add(float64(n))
}

// SetSummaryRows sets the summary row gauge.
func (m *Metrics) SetSummaryRows(n int) {
	if m == nil {
		return
	}
	m.SummaryRows.Set(float64(n))
}

// WriteTextfile dumps the registry in text exposition format to path.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.Registry)
}

// Handler serves the registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
