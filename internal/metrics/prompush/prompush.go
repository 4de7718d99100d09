// Package prompush implements a Prometheus Pushgateway backend for the
// metrics package.
//
// A batch run has no long-lived HTTP endpoint to scrape, so collected metrics
// are pushed to a Pushgateway on Flush instead. All Prometheus-specific
// dependencies stay in this package.
package prompush

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"songetl/internal/metrics"
)

// Backend is a Prometheus Pushgateway metrics backend.
type Backend struct {
	gatewayURL string // e.g. http://pushgateway:9091
	jobName    string // Pushgateway "job" group
	reg        *prometheus.Registry

	stepCounter   *prometheus.CounterVec // songetl_step_total{step,status}
	stepDuration  *prometheus.SummaryVec // songetl_step_duration_seconds{step,status}
	recordCounter *prometheus.CounterVec // songetl_records_total{kind}
	tableRows     *prometheus.CounterVec // songetl_table_rows_total{table}
	joinMisses    prometheus.Counter     // songetl_join_misses_total
}

// NewBackend constructs a Prometheus Pushgateway backend.
// jobName: the Pushgateway "job" name.
// gatewayURL: base URL of the Pushgateway server.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("prompush: gateway URL is required")
	}
	if jobName == "" {
		jobName = "songetl"
	}

	reg := prometheus.NewRegistry()

	// job is the Pushgateway grouping key, so it is not a metric label.
	stepCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.StepTotal,
			Help: "Total number of pipeline step executions, partitioned by step and status.",
		},
		[]string{"step", "status"},
	)
	stepDuration := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       metrics.StepDuration,
			Help:       "Duration of pipeline steps in seconds, partitioned by step and status.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"step", "status"},
	)
	recordCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.RecordsTotal,
			Help: "Input record counts per kind (catalog_read, events_rejected, plays, ...).",
		},
		[]string{"kind"},
	)
	tableRows := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metrics.TableRowsTotal,
			Help: "Rows written per output table.",
		},
		[]string{"table"},
	)
	joinMisses := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: metrics.JoinMissesTotal,
			Help: "Plays dropped by the songplays join for lack of a catalog match.",
		},
	)

	for _, c := range []prometheus.Collector{stepCounter, stepDuration, recordCounter, tableRows, joinMisses} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("prompush: register: %w", err)
		}
	}

	return &Backend{
		gatewayURL:    gatewayURL,
		jobName:       jobName,
		reg:           reg,
		stepCounter:   stepCounter,
		stepDuration:  stepDuration,
		recordCounter: recordCounter,
		tableRows:     tableRows,
		joinMisses:    joinMisses,
	}, nil
}

// IncCounter implements metrics.Backend. Unknown names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	switch name {
	case metrics.StepTotal:
		b.stepCounter.WithLabelValues(labels["step"], labels["status"]).Add(delta)

	case metrics.RecordsTotal:
		b.recordCounter.WithLabelValues(labels["kind"]).Add(delta)

	case metrics.TableRowsTotal:
		b.tableRows.WithLabelValues(labels["table"]).Add(delta)

	case metrics.JoinMissesTotal:
		b.joinMisses.Add(delta)
	}
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if name != metrics.StepDuration {
		return
	}
	b.stepDuration.WithLabelValues(labels["step"], labels["status"]).Observe(value)
}

// Flush pushes the current registry to the Pushgateway.
func (b *Backend) Flush() error {
	return push.New(b.gatewayURL, b.jobName).
		Gatherer(b.reg).
		Push()
}
