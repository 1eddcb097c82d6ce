package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL run.
type Metrics struct {
	RowsExtracted *prometheus.CounterVec // labels: dataset={collisions,population,streets}
	RowsDropped   *prometheus.CounterVec // labels: dataset, reason={duplicate,invalid_date,invalid_value}
	RowsLoaded    *prometheus.CounterVec // labels: table={collisions,population,borough_summary}

	BoroughsResolved   *prometheus.CounterVec // labels: method={source,direct,inferred}
	UnresolvedBoroughs prometheus.Gauge

	StageDuration   *prometheus.HistogramVec // labels: stage={acquire,normalize,resolve,aggregate,persist,publish}
	PipelineRunning prometheus.Gauge
	Runs            *prometheus.CounterVec // labels: outcome={success,failure}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.RowsExtracted,
		m.RowsDropped,
		m.RowsLoaded,
		m.BoroughsResolved,
		m.UnresolvedBoroughs,
		m.StageDuration,
		m.PipelineRunning,
		m.Runs,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RowsExtracted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "collision_etl",
			Name:      "rows_extracted_total",
			Help:      "Raw rows read per source dataset.",
		}, []string{"dataset"}),
		RowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "collision_etl",
			Name:      "rows_dropped_total",
			Help:      "Rows removed during normalization, by dataset and reason.",
		}, []string{"dataset", "reason"}),
		RowsLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "collision_etl",
			Name:      "rows_loaded_total",
			Help:      "Rows written to the relational store, by table.",
		}, []string{"table"}),
		BoroughsResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "collision_etl",
			Name:      "boroughs_resolved_total",
			Help:      "Collision rows with a known borough, by resolution method.",
		}, []string{"method"}),
		UnresolvedBoroughs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "collision_etl",
			Name:      "unresolved_boroughs",
			Help:      "Collision rows still tagged Unknown after resolution.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "collision_etl",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"stage"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "collision_etl",
			Name:      "pipeline_running",
			Help:      "1 while a run is in progress, 0 otherwise.",
		}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "collision_etl",
			Name:      "runs_total",
			Help:      "Completed pipeline runs by outcome.",
		}, []string{"outcome"}),
	}
}
