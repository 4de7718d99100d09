// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from the pipeline.
//
//   - It exposes a narrow interface (Backend) focused on counters and timing
//     data (histograms).
//   - It provides a global, pluggable backend that defaults to a no-op
//     implementation, so metrics are always safe to call even when no real
//     backend is configured.
//   - Concrete systems live in subpackages (prompush, datadog); the rest of
//     the code depends only on this package.
//
// The backend is installed once at startup, before any stage runs.
package metrics

import "time"

// Metric names emitted by the pipeline.
const (
	StepTotal       = "songetl_step_total"
	StepDuration    = "songetl_step_duration_seconds"
	RecordsTotal    = "songetl_records_total"
	TableRowsTotal  = "songetl_table_rows_total"
	JoinMissesTotal = "songetl_join_misses_total"
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

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordStep is a convenience for the common pattern:
// measure latency + success/failure per pipeline step.
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

	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRow increments a record-level counter for the given job and kind.
//
// Kinds used by the pipeline:
//   - "catalog_read", "catalog_rejected"
//   - "events_read", "events_rejected"
//   - "plays", "bad_timestamp"
func RecordRow(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RecordsTotal, float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordTableRows counts rows written to an output table.
func RecordTableRows(job, table string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(TableRowsTotal, float64(delta), Labels{
		"job":   job,
		"table": table,
	})
}

// RecordJoinMisses counts plays dropped by the songplays join for lack of a
// catalog partner.
func RecordJoinMisses(job string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(JoinMissesTotal, float64(delta), Labels{
		"job": job,
	})
}
