package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	barsTotal    *prometheus.CounterVec
	rowsWritten  *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	stageLatency *prometheus.HistogramVec
	psiScore     *prometheus.GaugeVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		barsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketforge_bars_total",
				Help: "Bars processed per pipeline stage",
			},
			[]string{"stage", "symbol"},
		),
		rowsWritten: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketforge_rows_written_total",
				Help: "Rows written per storage table",
			},
			[]string{"table"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketforge_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		stageLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketforge_stage_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		psiScore: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "marketforge_drift_psi",
				Help: "Last computed PSI per monitored feature",
			},
			[]string{"feature"},
		),
	}
}

// RecordBars records bars handled by a pipeline stage.
func (r *Recorder) RecordBars(stage, symbol string, n int) {
	r.barsTotal.WithLabelValues(stage, symbol).Add(float64(n))
}

// RecordRowsWritten records rows persisted into a table.
func (r *Recorder) RecordRowsWritten(table string, n int) {
	r.rowsWritten.WithLabelValues(table).Add(float64(n))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordStageLatency records stage latency in seconds.
func (r *Recorder) RecordStageLatency(stage string, seconds float64) {
	r.stageLatency.WithLabelValues(stage).Observe(seconds)
}

// RecordPSI records the latest PSI score for a feature.
func (r *Recorder) RecordPSI(feature string, score float64) {
	r.psiScore.WithLabelValues(feature).Set(score)
}
