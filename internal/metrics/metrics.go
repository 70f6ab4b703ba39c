// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from a load job.
//
// The rest of the codebase depends only on the helpers here; concrete metric
// systems (Prometheus Pushgateway, DogStatsD) live in subpackages. The global
// backend defaults to a no-op, so calls are always safe when no backend is
// configured.
package metrics

import (
	"sync"
	"time"
)

// Metric names shared by every backend.
const (
	StepTotal           = "taxietl_step_total"
	StepDurationSeconds = "taxietl_step_duration_seconds"
	RecordsTotal        = "taxietl_records_total"
	BatchesTotal        = "taxietl_batches_total"
	ColumnValuesTotal   = "taxietl_column_values_total"
)

// Record kinds reported under RecordsTotal.
const (
	KindRead         = "read"
	KindCoercionNull = "coercion_null"
	KindFilled       = "filled"
	KindInserted     = "inserted"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// nopBackend is used by default so metrics are optional.
type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

// Flush delegates to the current backend.
func Flush() error {
	return current().Flush()
}

// RecordStep measures latency and success/failure of one job step
// (read, normalize, write).
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status,
	}
	b := current()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDurationSeconds, d.Seconds(), lbls)
}

// RecordRows increments the record counter for kind (see the Kind constants).
func RecordRows(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RecordsTotal, float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordColumn counts values of one output column that were nulled by a
// failed cast or replaced by a fill default.
func RecordColumn(job, column, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(ColumnValuesTotal, float64(delta), Labels{
		"job":    job,
		"column": column,
		"kind":   kind,
	})
}

// RecordBatches increments a batch-level counter for the given job.
func RecordBatches(job string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(BatchesTotal, float64(delta), Labels{
		"job": job,
	})
}
