package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zeebo/errs"

	"songetl/internal/metrics"
	"songetl/internal/storage"
)

// Sink writes one stage to one output table.
type Sink struct {
	Table       string
	Stage       string
	PartitionBy []string
}

// Phase is an ordered list of sinks. Sinks of a phase run one after another
// and the first failure stops the phase.
type Phase struct {
	Name  string
	Sinks []Sink
}

// Report summarizes a run.
type Report struct {
	// Rows maps each written table to its row count.
	Rows map[string]int64
	// Failed lists tables whose write was attempted and failed.
	Failed []string
}

// Written reports whether every named table was written.
func (r Report) Written(tables ...string) bool {
	for _, t := range tables {
		if _, ok := r.Rows[t]; !ok {
			return false
		}
	}
	return true
}

// Run executes phases concurrently against w. A failing phase does not
// cancel the others; their errors are combined. Tables written before a
// failure stay written.
func Run(ctx context.Context, p *Plan, w storage.Writer, phases ...Phase) (Report, error) {
	for _, ph := range phases {
		for _, sk := range ph.Sinks {
			if _, ok := p.Stage(sk.Stage); !ok {
				return Report{}, Error.New("phase %s: table %s: unknown stage %q", ph.Name, sk.Table, sk.Stage)
			}
		}
	}

	var (
		mu     sync.Mutex
		report = Report{Rows: map[string]int64{}}
		wg     sync.WaitGroup
		phErrs = make([]error, len(phases))
	)
	for i, ph := range phases {
		wg.Add(1)
		go func() {
			defer wg.Done()
			phErrs[i] = runPhase(ctx, p, w, ph, func(table string, n int64, err error) {
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					report.Failed = append(report.Failed, table)
					return
				}
				report.Rows[table] = n
			})
		}()
	}
	wg.Wait()
	return report, errs.Combine(phErrs...)
}

func runPhase(ctx context.Context, p *Plan, w storage.Writer, ph Phase, done func(string, int64, error)) error {
	for _, sk := range ph.Sinks {
		st, _ := p.Stage(sk.Stage)
		t, err := st.Materialize(ctx)
		if err != nil {
			log.Error().Err(err).Str("phase", ph.Name).Str("table", sk.Table).Msg("phase halted")
			return err
		}

		start := time.Now()
		n, err := w.WriteTable(ctx, sk.Table, t, sk.PartitionBy)
		metrics.RecordStep(p.job, "write_"+sk.Table, err, time.Since(start))
		done(sk.Table, n, err)
		if err != nil {
			log.Error().Err(err).Str("phase", ph.Name).Str("table", sk.Table).Msg("phase halted")
			return Error.Wrap(fmt.Errorf("phase %s: write %s: %w", ph.Name, sk.Table, err))
		}
		metrics.RecordTableRows(p.job, sk.Table, n)
		log.Info().
			Str("phase", ph.Name).
			Str("table", sk.Table).
			Int64("rows", n).
			Strs("partition_by", sk.PartitionBy).
			Dur("elapsed", time.Since(start)).
			Msg("table written")
	}
	return nil
}
