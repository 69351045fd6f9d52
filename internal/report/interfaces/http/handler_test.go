package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"energy-report/internal/audit"
	"energy-report/internal/auth"
	"energy-report/internal/report/application"
	report "energy-report/internal/report/domain"
	"energy-report/internal/report/domain/pipeline"
	"energy-report/internal/report/domain/table"
	"energy-report/internal/report/infrastructure/memory"
)

const jobsYAML = `
jobs:
  cell_4g_daily:
    type: 4g
    date_filter: 2024-01-15
    input_files:
      pm_cell: pm_cell.csv
      pm_rru: pm_rru.csv
      cm_rru_cell: cm_rru_cell.csv
      dw_cell_info: dw_cell_info.csv
    output_file: out/cell_4g.csv
    id_col: cgi
    cell_list_col: cell_list
    pm_cell_cols: [starttime, cgi, cell_energy]
    rru_agg_cols: [rru_energy]
    output_cols_order: [cgi, starttime_date, cell_energy, rru_energy]
`

type tables map[string]*table.Table

func (m tables) Table(_ context.Context, key string) (*table.Table, error) {
	t, ok := m[key]
	if !ok {
		return nil, &report.MissingSourceError{Key: key, Err: errors.New("not found")}
	}
	return t, nil
}

func (m tables) Declared(key string) bool {
	_, ok := m[key]
	return ok
}

// daySources serves tables only for the 2024-01-15 run; other days miss their inputs.
type daySources struct{}

func (daySources) Open(job report.JobConfig) pipeline.Source {
	if job.Day() != "2024-01-15" {
		return tables{}
	}
	return tables{
		pipeline.KeyPMCell:     rows([]string{"starttime", "cgi", "cell_energy"}, []string{"2024-01-15 00:00:00", "100-1", "2"}),
		pipeline.KeyPMRRU:      rows([]string{"dn", "starttime", "rru_energy"}, []string{"r,1", "2024-01-15 00:00:00", "3"}),
		pipeline.KeyCMRRUCell:  rows([]string{"dn", "cell_list"}, []string{"r,1", "{(100-1,7)}"}),
		pipeline.KeyDWCellInfo: rows([]string{"cgi", "cell_name"}, []string{"100-1", "Site-1"}),
	}
}

func rows(cols []string, data ...[]string) *table.Table {
	t := table.New(cols...)
	for _, row := range data {
		values := make([]table.Value, len(row))
		for i, cell := range row {
			values[i] = table.FromRaw(cell)
		}
		t.Append(values...)
	}
	return t
}

type discardSink struct{}

func (discardSink) Write(context.Context, string, string, *table.Table) error { return nil }

func newTestRouter(t *testing.T, secret []byte) http.Handler {
	t.Helper()
	router, _ := newAuditedRouter(t, secret)
	return router
}

type auditTrail struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (a *auditTrail) Log(_ context.Context, entry audit.Entry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
	return nil
}

func (a *auditTrail) Entries() []audit.Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]audit.Entry(nil), a.entries...)
}

func newAuditedRouter(t *testing.T, secret []byte) (http.Handler, *auditTrail) {
	t.Helper()
	trail := &auditTrail{}
	set, err := application.ParseJobs([]byte(jobsYAML), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	runner := application.NewRunner(daySources{}, discardSink{}, memory.NewRunRepository(), zerolog.Nop(), 1)
	h, err := NewHandler(runner, set, trail)
	require.NoError(t, err)
	mw := auth.NewMiddleware(secret, auth.NewDefaultPolicy("/healthz", "/metrics"))
	return NewRouter(h, mw, zerolog.Nop()), trail
}

func do(t *testing.T, router http.Handler, method, target, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestNewHandlerNilRunner(t *testing.T) {
	_, err := NewHandler(nil, application.JobSet{}, nil)
	require.Error(t, err)
}

func TestHealthz(t *testing.T) {
	resp := do(t, newTestRouter(t, []byte("secret")), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "ok", resp.Body.String())
}

func TestListJobs(t *testing.T) {
	resp := do(t, newTestRouter(t, nil), http.MethodGet, "/api/v1/jobs", "")
	require.Equal(t, http.StatusOK, resp.Code)

	var jobs []jobResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&jobs))
	require.Len(t, jobs, 1)
	assert.Equal(t, "cell_4g_daily", jobs[0].Name)
	assert.Equal(t, "4g", jobs[0].Type)
	assert.Equal(t, []string{"cm_rru_cell", "dw_cell_info", "pm_cell", "pm_rru"}, jobs[0].Inputs)
}

func TestTriggerRunAndHistory(t *testing.T) {
	router := newTestRouter(t, nil)

	resp := do(t, router, http.MethodPost, "/api/v1/jobs/cell_4g_daily/run", "")
	require.Equal(t, http.StatusOK, resp.Code)
	var run runResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&run))
	assert.Equal(t, "succeeded", run.Status)
	assert.Equal(t, 1, run.OutputRows)
	assert.Equal(t, "2024-01-15", run.Day)

	resp = do(t, router, http.MethodPost, "/api/v1/jobs/cell_4g_daily/run?date=2024-01-16", "")
	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	var failed runResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&failed))
	assert.Equal(t, "failed", failed.Status)
	assert.Equal(t, "2024-01-16", failed.Day)

	resp = do(t, router, http.MethodGet, "/api/v1/jobs/cell_4g_daily/runs?limit=1", "")
	require.Equal(t, http.StatusOK, resp.Code)
	var history []runResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&history))
	assert.Len(t, history, 1)
}

func TestTriggerRunErrors(t *testing.T) {
	router := newTestRouter(t, nil)

	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodPost, "/api/v1/jobs/nope/run", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodPost, "/api/v1/jobs/cell_4g_daily/run?date=someday", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/api/v1/jobs/nope/runs", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodGet, "/api/v1/jobs/cell_4g_daily/runs?limit=-1", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, router, http.MethodGet, "/api/v1/jobs/cell_4g_daily/run", "").Code)
}

func TestTriggerRunRequiresOperator(t *testing.T) {
	secret := []byte("secret")
	router, trail := newAuditedRouter(t, secret)
	viewer, err := auth.IssueJWT(secret, "alice", auth.RoleViewer, time.Hour)
	require.NoError(t, err)
	operator, err := auth.IssueJWT(secret, "bob", auth.RoleOperator, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, do(t, router, http.MethodGet, "/api/v1/jobs", "").Code)
	assert.Equal(t, http.StatusOK, do(t, router, http.MethodGet, "/api/v1/jobs", viewer).Code)
	assert.Equal(t, http.StatusForbidden, do(t, router, http.MethodPost, "/api/v1/jobs/cell_4g_daily/run", viewer).Code)
	assert.Equal(t, http.StatusOK, do(t, router, http.MethodPost, "/api/v1/jobs/cell_4g_daily/run", operator).Code)

	entries := trail.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "bob", entries[0].Actor)
	assert.Equal(t, "operator", entries[0].Role)
	assert.Equal(t, audit.ActionJobRun, entries[0].Action)
	assert.Equal(t, "cell_4g_daily", entries[0].JobName)
	assert.Equal(t, "succeeded", entries[0].Outcome)
}
