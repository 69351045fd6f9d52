package memory

import (
	"context"
	"errors"
	"maps"
	"sort"
	"sync"

	report "energy-report/internal/report/domain"
)

// RunRepository is an in-memory run log.
type RunRepository struct {
	mu   sync.RWMutex
	data map[string]report.Run
}

// NewRunRepository constructs a repository.
func NewRunRepository() *RunRepository {
	return &RunRepository{data: make(map[string]report.Run)}
}

// Create stores a started run.
func (r *RunRepository) Create(ctx context.Context, run *report.Run) error {
	_ = ctx
	if run == nil {
		return errors.New("run repo: nil run")
	}
	r.mu.Lock()
	r.data[run.ID] = clone(*run)
	r.mu.Unlock()
	return nil
}

// Finish overwrites the stored run.
func (r *RunRepository) Finish(ctx context.Context, run *report.Run) error {
	return r.Create(ctx, run)
}

// List returns the latest runs of a job, newest first.
func (r *RunRepository) List(ctx context.Context, jobName string, limit int) ([]report.Run, error) {
	_ = ctx
	r.mu.RLock()
	var out []report.Run
	for _, run := range r.data {
		if run.JobName == jobName {
			out = append(out, clone(run))
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func clone(run report.Run) report.Run {
	run.Dropped = maps.Clone(run.Dropped)
	return run
}
