package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"energy-report/internal/observability/metrics"
	report "energy-report/internal/report/domain"
	"energy-report/internal/report/domain/pipeline"
)

// Drop reasons recorded on a run.
const (
	DropNullCellList  = "null_cell_list"
	DropUnmappedRRU   = "unmapped_rru"
	DropSecondaryOnly = "secondary_only"
)

// Runner executes report jobs and records their runs.
type Runner struct {
	sources  SourceFactory
	sink     Sink
	runs     RunRepository
	logger   zerolog.Logger
	parallel int
	now      func() time.Time
}

// NewRunner constructs a Runner. runs may be nil. parallel below one runs jobs sequentially.
func NewRunner(sources SourceFactory, sink Sink, runs RunRepository, logger zerolog.Logger, parallel int) *Runner {
	if parallel < 1 {
		parallel = 1
	}
	return &Runner{
		sources:  sources,
		sink:     sink,
		runs:     runs,
		logger:   logger,
		parallel: parallel,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run executes one job: load, reconcile, write. The returned run is populated even on failure.
func (r *Runner) Run(ctx context.Context, job report.JobConfig) (*report.Run, error) {
	if r == nil {
		return nil, errors.New("report runner: nil")
	}
	run := &report.Run{
		ID:         uuid.NewString(),
		JobName:    job.Name,
		JobType:    job.Type,
		Day:        job.Day(),
		Status:     report.RunStatusRunning,
		OutputFile: job.OutputFile,
		StartedAt:  r.now(),
	}
	logger := r.logger.With().
		Str("job", job.Name).
		Str("type", string(job.Type)).
		Str("day", run.Day).
		Str("run_id", run.ID).
		Logger()

	if r.runs != nil {
		if err := r.runs.Create(ctx, run); err != nil {
			logger.Warn().Err(err).Msg("run log create failed")
		}
	}
	logger.Info().Str("event", "report_job_start").Msg("report job started")

	result, err := pipeline.Run(ctx, job, r.sources.Open(job))
	if err == nil {
		err = r.sink.Write(ctx, job.OutputFile, job.OutputFormat, result.Table)
		if err != nil {
			err = fmt.Errorf("write %s: %w", job.OutputFile, err)
		}
	}

	run.FinishedAt = r.now()
	if err != nil {
		run.Status = report.RunStatusFailed
		run.Error = err.Error()
		r.finish(ctx, logger, run)
		metrics.ObserveJob(string(job.Type), metrics.ResultError, run.Duration())
		logger.Error().Err(err).Str("event", "report_job_failed").Msg("report job failed")
		return run, fmt.Errorf("job %s: %w", job.Name, err)
	}

	run.Status = report.RunStatusSucceeded
	run.OutputRows = result.Stats.OutputRows
	run.Dropped = map[string]int{
		DropNullCellList:  result.Stats.NullListRows,
		DropUnmappedRRU:   result.Stats.UnmappedRRURows,
		DropSecondaryOnly: result.Stats.SecondaryOnlyKeys,
	}
	r.finish(ctx, logger, run)
	metrics.ObserveJob(string(job.Type), metrics.ResultSuccess, run.Duration())
	metrics.SetOutputRows(job.Name, run.OutputRows)
	for reason, count := range run.Dropped {
		metrics.AddDropped(job.Name, reason, count)
	}
	logger.Info().
		Str("event", "report_job_success").
		Int("primary_rows", result.Stats.PrimaryRows).
		Int("output_rows", run.OutputRows).
		Int("null_cell_list", result.Stats.NullListRows).
		Int("unmapped_rru", result.Stats.UnmappedRRURows).
		Int("secondary_only", result.Stats.SecondaryOnlyKeys).
		Str("output", job.OutputFile).
		Dur("elapsed", run.Duration()).
		Msg("report job finished")
	return run, nil
}

// RunAll executes jobs with bounded parallelism. A failing job never stops the others; the
// returned error wraps ErrJobsFailed and every job error. Runs keep the order of jobs.
func (r *Runner) RunAll(ctx context.Context, jobs []report.JobConfig) ([]report.Run, error) {
	runs := make([]report.Run, len(jobs))
	errs := make([]error, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallel)
	for i, job := range jobs {
		g.Go(func() error {
			run, err := r.Run(gctx, job)
			if run != nil {
				runs[i] = *run
			}
			errs[i] = err
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	r.logger.Info().
		Str("event", "report_batch_done").
		Int("jobs", len(jobs)).
		Int("failed", failed).
		Msg("report batch finished")
	if failed > 0 {
		return runs, errors.Join(append([]error{ErrJobsFailed}, errs...)...)
	}
	return runs, nil
}

// History returns recent runs of a job, newest first.
func (r *Runner) History(ctx context.Context, jobName string, limit int) ([]report.Run, error) {
	if r.runs == nil {
		return nil, nil
	}
	return r.runs.List(ctx, jobName, limit)
}

func (r *Runner) finish(ctx context.Context, logger zerolog.Logger, run *report.Run) {
	if r.runs == nil {
		return
	}
	// a run log outage must not fail a report that was already written
	if err := r.runs.Finish(context.WithoutCancel(ctx), run); err != nil {
		logger.Warn().Err(err).Msg("run log finish failed")
	}
}
