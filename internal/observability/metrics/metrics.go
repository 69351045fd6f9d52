package metrics

import (
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const (
	metricPrefix = "energy_report_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	jobsTotal    *prometheus.CounterVec
	jobLatency   *prometheus.HistogramVec
	outputRows   *prometheus.GaugeVec
	droppedRows  *prometheus.CounterVec
	sourceLoads  *prometheus.CounterVec
	httpTriggers *prometheus.CounterVec
)

// Init registers report metrics and, when db is set, run-log backed gauges.
func Init(db *sql.DB, logger zerolog.Logger) {
	registerOnce.Do(func() {
		jobsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "jobs_total",
				Help: "Total report jobs by type and result",
			},
			[]string{"type", "result"},
		)
		jobLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "job_duration_seconds",
				Help:    "Report job duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"type", "result"},
		)
		outputRows = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "output_rows",
				Help: "Rows written by the last successful run of a job",
			},
			[]string{"job"},
		)
		droppedRows = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "dropped_rows_total",
				Help: "Rows silently excluded from reports by reason",
			},
			[]string{"job", "reason"},
		)
		sourceLoads = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "source_loads_total",
				Help: "Input table loads by scheme and result",
			},
			[]string{"scheme", "result"},
		)
		httpTriggers = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "http_triggers_total",
				Help: "Job runs triggered over HTTP by result",
			},
			[]string{"result"},
		)

		prometheus.MustRegister(
			jobsTotal,
			jobLatency,
			outputRows,
			droppedRows,
			sourceLoads,
			httpTriggers,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveJob records a finished job run.
func ObserveJob(jobType, result string, duration time.Duration) {
	if jobType == "" {
		jobType = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if jobsTotal != nil {
		jobsTotal.WithLabelValues(jobType, result).Inc()
	}
	if jobLatency != nil {
		jobLatency.WithLabelValues(jobType, result).Observe(duration.Seconds())
	}
}

// SetOutputRows records the row count of a job's last output.
func SetOutputRows(job string, rows int) {
	if outputRows != nil {
		outputRows.WithLabelValues(job).Set(float64(rows))
	}
}

// AddDropped increments the silent-drop counter by count.
func AddDropped(job, reason string, count int) {
	if count <= 0 {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	if droppedRows != nil {
		droppedRows.WithLabelValues(job, reason).Add(float64(count))
	}
}

// IncSourceLoad increments the input load counter.
func IncSourceLoad(scheme, result string) {
	if scheme == "" {
		scheme = "file"
	}
	if result == "" {
		result = resultSuccess
	}
	if sourceLoads != nil {
		sourceLoads.WithLabelValues(scheme, result).Inc()
	}
}

// IncHTTPTrigger increments the HTTP trigger counter.
func IncHTTPTrigger(result string) {
	if result == "" {
		result = resultSuccess
	}
	if httpTriggers != nil {
		httpTriggers.WithLabelValues(result).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
