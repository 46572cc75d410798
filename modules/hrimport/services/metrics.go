package services

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics exposes import pipeline counters on the shared
// Prometheus registry.
type PipelineMetrics struct {
	jobsStarted   prometheus.Counter
	jobsCompleted prometheus.Counter
	jobsFailed    prometheus.Counter
	jobsReclaimed prometheus.Counter
	rowsProcessed prometheus.Counter
	rowsFailed    prometheus.Counter
	batchDuration prometheus.Histogram
}

// registerCounter keeps re-registration (module loaded more than once in
// a process, as integration tests do) from panicking: the existing
// collector is reused.
func registerCounter(reg prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	c := prometheus.NewCounter(opts)
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector.(prometheus.Counter)
		}
		panic(err)
	}
	return c
}

func registerHistogram(reg prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	h := prometheus.NewHistogram(opts)
	if err := reg.Register(h); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector.(prometheus.Histogram)
		}
		panic(err)
	}
	return h
}

func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	return &PipelineMetrics{
		jobsStarted: registerCounter(reg, prometheus.CounterOpts{
			Name: "hr_import_jobs_started_total",
			Help: "Import jobs claimed for processing.",
		}),
		jobsCompleted: registerCounter(reg, prometheus.CounterOpts{
			Name: "hr_import_jobs_completed_total",
			Help: "Import jobs that reached the completed state.",
		}),
		jobsFailed: registerCounter(reg, prometheus.CounterOpts{
			Name: "hr_import_jobs_failed_total",
			Help: "Import jobs that reached the failed state.",
		}),
		jobsReclaimed: registerCounter(reg, prometheus.CounterOpts{
			Name: "hr_import_jobs_reclaimed_total",
			Help: "Stuck import jobs re-dispatched by the sweep.",
		}),
		rowsProcessed: registerCounter(reg, prometheus.CounterOpts{
			Name: "hr_import_rows_processed_total",
			Help: "Rows processed across all import jobs.",
		}),
		rowsFailed: registerCounter(reg, prometheus.CounterOpts{
			Name: "hr_import_rows_failed_total",
			Help: "Rows rejected across all import jobs.",
		}),
		batchDuration: registerHistogram(reg, prometheus.HistogramOpts{
			Name:    "hr_import_batch_duration_seconds",
			Help:    "Wall time of a full batch run.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}
}

func (m *PipelineMetrics) JobStarted() {
	if m != nil {
		m.jobsStarted.Inc()
	}
}

func (m *PipelineMetrics) JobCompleted(duration time.Duration, result *BatchResult) {
	if m == nil {
		return
	}
	m.jobsCompleted.Inc()
	m.batchDuration.Observe(duration.Seconds())
	m.rowsProcessed.Add(float64(result.Processed))
	m.rowsFailed.Add(float64(result.Failed))
}

func (m *PipelineMetrics) JobFailed() {
	if m != nil {
		m.jobsFailed.Inc()
	}
}

func (m *PipelineMetrics) JobReclaimed() {
	if m != nil {
		m.jobsReclaimed.Inc()
	}
}
