package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "aq_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL pipeline.
type Metrics struct {
	PipelineRunning prometheus.Gauge
	Runs            *prometheus.CounterVec   // labels: outcome={success,error}
	StageDuration   *prometheus.HistogramVec // labels: stage={extract,transform,load}

	// Normalization metrics, labeled by source year.
	RowsIngested       *prometheus.CounterVec
	CellsMissing       *prometheus.CounterVec
	InvalidCells       *prometheus.CounterVec
	TimestampsUnparsed *prometheus.CounterVec
	UnmappedStations   *prometheus.CounterVec

	// Merge metrics.
	MergedStations prometheus.Gauge
	ColumnsDropped prometheus.Counter

	ReportRowsWritten *prometheus.CounterVec // labels: sink
}

func newMetrics() *Metrics {
	return &Metrics{
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a pipeline run is in progress, 0 otherwise.",
		}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed pipeline runs by outcome.",
		}, []string{"outcome"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		RowsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_ingested_total",
			Help:      "Measurement rows read from yearly files after preamble removal.",
		}, []string{"year"}),
		CellsMissing: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cells_missing_total",
			Help:      "Station cells without a reading after normalization.",
		}, []string{"year"}),
		InvalidCells: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalid_cells_total",
			Help:      "Cells that were neither a number nor a missing token.",
		}, []string{"year"}),
		TimestampsUnparsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timestamps_unparsed_total",
			Help:      "Rows whose timestamp could not be parsed.",
		}, []string{"year"}),
		UnmappedStations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unmapped_stations_total",
			Help:      "Station columns without a metadata entry.",
		}, []string{"year"}),
		MergedStations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "merged_stations",
			Help:      "Stations present in every configured year after the last merge.",
		}),
		ColumnsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "columns_dropped_total",
			Help:      "Station columns dropped because they were absent from some year.",
		}),
		ReportRowsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_rows_written_total",
			Help:      "Report rows written by sink.",
		}, []string{"sink"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.PipelineRunning,
		m.Runs,
		m.StageDuration,
		m.RowsIngested,
		m.CellsMissing,
		m.InvalidCells,
		m.TimestampsUnparsed,
		m.UnmappedStations,
		m.MergedStations,
		m.ColumnsDropped,
		m.ReportRowsWritten,
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics registered with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newMetrics()
	prometheus.NewRegistry().MustRegister(m.collectors()...)
	return m
}
