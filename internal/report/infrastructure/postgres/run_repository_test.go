package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	report "energy-report/internal/report/domain"
)

func TestRunRepositoryCreateAndFinish(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	started := time.Date(2025, 8, 20, 2, 0, 0, 0, time.UTC)
	run := &report.Run{
		ID:         "run-1",
		JobName:    "station_4g",
		JobType:    report.JobTypeStation4G,
		Day:        "2025-08-19",
		Status:     report.RunStatusRunning,
		OutputFile: "output/station_4g.csv",
		StartedAt:  started,
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO report_runs")).
		WithArgs("run-1", "station_4g", "4g_station", "2025-08-19", "running", "output/station_4g.csv", started).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE report_runs")).
		WithArgs("succeeded", "", 12, []byte(`{"unmapped_rru":3}`), started.Add(time.Minute), "run-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewRunRepository(db)
	require.NoError(t, repo.Create(context.Background(), run))

	run.Status = report.RunStatusSucceeded
	run.OutputRows = 12
	run.Dropped = map[string]int{"unmapped_rru": 3}
	run.FinishedAt = started.Add(time.Minute)
	require.NoError(t, repo.Finish(context.Background(), run))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepositoryList(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	started := time.Date(2025, 8, 20, 2, 0, 0, 0, time.UTC)
	cols := []string{"id", "job_name", "job_type", "day", "status", "error", "output_file", "output_rows", "dropped", "started_at", "finished_at"}
	mock.ExpectQuery(regexp.QuoteMeta("FROM report_runs")).
		WithArgs("cell_5g", 20).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("run-2", "cell_5g", "5g", time.Date(2025, 8, 19, 0, 0, 0, 0, time.UTC), "failed", "boom", "out.csv", 0, nil, started, nil).
			AddRow("run-1", "cell_5g", "5g", time.Date(2025, 8, 18, 0, 0, 0, 0, time.UTC), "succeeded", "", "out.csv", 40, []byte(`{"null_cell_list":2}`), started.Add(-24*time.Hour), started.Add(-23*time.Hour)))

	runs, err := NewRunRepository(db).List(context.Background(), "cell_5g", 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, report.RunStatusFailed, runs[0].Status)
	assert.Equal(t, "2025-08-19", runs[0].Day)
	assert.True(t, runs[0].FinishedAt.IsZero())
	assert.Equal(t, report.JobTypeCell5G, runs[1].JobType)
	assert.Equal(t, map[string]int{"null_cell_list": 2}, runs[1].Dropped)
	assert.Equal(t, time.Hour, runs[1].Duration())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRepositoryNilDB(t *testing.T) {
	var repo *RunRepository
	require.Error(t, repo.Create(context.Background(), &report.Run{}))
}
