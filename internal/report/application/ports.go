package application

import (
	"context"
	"errors"

	report "energy-report/internal/report/domain"
	"energy-report/internal/report/domain/pipeline"
	"energy-report/internal/report/domain/table"
)

// Output formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

var (
	// ErrJobNotFound is returned when a job name is not configured.
	ErrJobNotFound = errors.New("report: job not found")
	// ErrJobsFailed is returned by RunAll when at least one job failed.
	ErrJobsFailed = errors.New("report: one or more jobs failed")
)

// SourceFactory opens the input tables declared by a job.
type SourceFactory interface {
	Open(job report.JobConfig) pipeline.Source
}

// Sink persists a finished report.
type Sink interface {
	Write(ctx context.Context, path, format string, t *table.Table) error
}

// RunRepository records job executions.
type RunRepository interface {
	Create(ctx context.Context, run *report.Run) error
	Finish(ctx context.Context, run *report.Run) error
	List(ctx context.Context, jobName string, limit int) ([]report.Run, error)
}
