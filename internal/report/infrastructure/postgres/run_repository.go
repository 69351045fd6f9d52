package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	// registers the "pgx" database/sql driver
	_ "github.com/jackc/pgx/v5/stdlib"

	report "energy-report/internal/report/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS report_runs (
	id          TEXT PRIMARY KEY,
	job_name    TEXT NOT NULL,
	job_type    TEXT NOT NULL,
	day         DATE NOT NULL,
	status      TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	output_file TEXT NOT NULL DEFAULT '',
	output_rows INTEGER NOT NULL DEFAULT 0,
	dropped     JSONB,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS report_runs_job_started_idx ON report_runs (job_name, started_at DESC);`

// Open connects to Postgres through the pgx database/sql driver.
func Open(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return db, nil
}

// RunRepository persists report runs.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository constructs a repository.
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// EnsureSchema creates the run table when missing.
func (r *RunRepository) EnsureSchema(ctx context.Context) error {
	if r == nil || r.db == nil {
		return errors.New("run repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

// Create inserts a started run.
func (r *RunRepository) Create(ctx context.Context, run *report.Run) error {
	if r == nil || r.db == nil {
		return errors.New("run repo: nil db")
	}
	if run == nil {
		return errors.New("run repo: nil run")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO report_runs (
	id, job_name, job_type, day, status, output_file, started_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7
)`,
		run.ID, run.JobName, string(run.JobType), run.Day, string(run.Status), run.OutputFile, run.StartedAt.UTC())
	return err
}

// Finish stores the final state of a run.
func (r *RunRepository) Finish(ctx context.Context, run *report.Run) error {
	if r == nil || r.db == nil {
		return errors.New("run repo: nil db")
	}
	if run == nil {
		return errors.New("run repo: nil run")
	}
	dropped, err := json.Marshal(run.Dropped)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
UPDATE report_runs
SET status = $1, error = $2, output_rows = $3, dropped = $4, finished_at = $5
WHERE id = $6`,
		string(run.Status), run.Error, run.OutputRows, dropped, run.FinishedAt.UTC(), run.ID)
	return err
}

// List returns the latest runs of a job, newest first.
func (r *RunRepository) List(ctx context.Context, jobName string, limit int) ([]report.Run, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("run repo: nil db")
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, job_name, job_type, day, status, error, output_file, output_rows, dropped, started_at, finished_at
FROM report_runs
WHERE job_name = $1
ORDER BY started_at DESC
LIMIT $2`, jobName, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []report.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*report.Run, error) {
	var (
		run      report.Run
		jobType  string
		status   string
		day      time.Time
		dropped  []byte
		finished sql.NullTime
	)
	if err := row.Scan(
		&run.ID,
		&run.JobName,
		&jobType,
		&day,
		&status,
		&run.Error,
		&run.OutputFile,
		&run.OutputRows,
		&dropped,
		&run.StartedAt,
		&finished,
	); err != nil {
		return nil, err
	}
	run.JobType = report.JobType(jobType)
	run.Status = report.RunStatus(status)
	run.Day = day.Format(report.DayLayout)
	run.StartedAt = run.StartedAt.UTC()
	if finished.Valid {
		run.FinishedAt = finished.Time.UTC()
	}
	if len(dropped) > 0 {
		if err := json.Unmarshal(dropped, &run.Dropped); err != nil {
			return nil, fmt.Errorf("run repo: dropped: %w", err)
		}
	}
	return &run, nil
}
