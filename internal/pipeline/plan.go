// Package pipeline schedules the star-schema build. A Plan is a graph of
// named lazy stages; nothing is computed until a sink asks for a stage, and
// each stage is computed at most once per plan no matter how many sinks or
// downstream stages depend on it.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zeebo/errs"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"songetl/internal/metrics"
	"songetl/internal/table"
)

// Error is the error class for scheduling failures.
var Error = errs.Class("pipeline")

// Func computes a stage from its materialized dependencies, keyed by stage
// name.
type Func func(ctx context.Context, deps map[string]*table.Table) (*table.Table, error)

// Plan is a set of named stages. Stages may only depend on stages added
// before them, so a Plan is acyclic by construction.
type Plan struct {
	job    string
	mu     sync.RWMutex
	stages map[string]*Stage
	flight singleflight.Group
}

// NewPlan returns an empty plan. job labels the step metrics.
func NewPlan(job string) *Plan {
	return &Plan{job: job, stages: map[string]*Stage{}}
}

// Stage is one lazily materialized table.
type Stage struct {
	plan *Plan
	name string
	deps []*Stage
	fn   Func

	mu   sync.Mutex
	done bool
	out  *table.Table
	err  error
}

// Add registers a stage. Every dependency must already be in the plan.
func (p *Plan) Add(name string, fn Func, deps ...string) (*Stage, error) {
	if name == "" || fn == nil {
		return nil, Error.New("stage needs a name and a func")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, dup := p.stages[name]; dup {
		return nil, Error.New("duplicate stage %q", name)
	}
	s := &Stage{plan: p, name: name, fn: fn}
	for _, d := range deps {
		ds, ok := p.stages[d]
		if !ok {
			return nil, Error.New("stage %q depends on unknown stage %q", name, d)
		}
		s.deps = append(s.deps, ds)
	}
	p.stages[name] = s
	return s, nil
}

// Stage looks up a stage by name.
func (p *Plan) Stage(name string) (*Stage, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.stages[name]
	return s, ok
}

// Names lists the registered stages in sorted order.
func (p *Plan) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.stages))
	for n := range p.stages {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Name returns the stage name.
func (s *Stage) Name() string { return s.name }

// Materialized reports whether the stage has already run.
func (s *Stage) Materialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Materialize returns the stage's table, computing it and its dependencies
// on first use. Dependencies are materialized concurrently. Concurrent
// callers share one computation, and the outcome (table or error) is
// memoized for the life of the plan.
func (s *Stage) Materialize(ctx context.Context) (*table.Table, error) {
	if out, err, ok := s.memo(); ok {
		return out, err
	}
	v, err, _ := s.plan.flight.Do(s.name, func() (any, error) {
		if out, err, ok := s.memo(); ok {
			return out, err
		}
		out, err := s.compute(ctx)
		s.mu.Lock()
		s.done, s.out, s.err = true, out, err
		s.mu.Unlock()
		return out, err
	})
	if err != nil {
		return nil, err
	}
	return v.(*table.Table), nil
}

func (s *Stage) memo() (*table.Table, error, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out, s.err, s.done
}

func (s *Stage) compute(ctx context.Context) (*table.Table, error) {
	inputs := make([]*table.Table, len(s.deps))
	g, gctx := errgroup.WithContext(ctx)
	for i, d := range s.deps {
		g.Go(func() error {
			t, err := d.Materialize(gctx)
			inputs[i] = t
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	deps := make(map[string]*table.Table, len(s.deps))
	for i, d := range s.deps {
		deps[d.name] = inputs[i]
	}

	start := time.Now()
	out, err := s.fn(ctx, deps)
	if err == nil && out == nil {
		err = fmt.Errorf("returned no table")
	}
	elapsed := time.Since(start)
	metrics.RecordStep(s.plan.job, s.name, err, elapsed)
	if err != nil {
		log.Error().Err(err).Str("stage", s.name).Dur("elapsed", elapsed).Msg("stage failed")
		return nil, Error.Wrap(fmt.Errorf("stage %s: %w", s.name, err))
	}
	log.Info().Str("stage", s.name).Int("rows", out.Len()).Dur("elapsed", elapsed).Msg("stage materialized")
	return out, nil
}
