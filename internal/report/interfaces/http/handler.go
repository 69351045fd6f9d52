package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"energy-report/internal/audit"
	"energy-report/internal/auth"
	"energy-report/internal/observability/metrics"
	"energy-report/internal/report/application"
	report "energy-report/internal/report/domain"
)

const (
	timeLayout   = time.RFC3339
	defaultLimit = 20
	maxLimit     = 200
)

// Handler serves job listing, run history and manual triggers.
type Handler struct {
	runner      *application.Runner
	jobs        application.JobSet
	auditLogger audit.Logger
	now         func() time.Time
}

// NewHandler constructs a Handler. auditLogger may be nil.
func NewHandler(runner *application.Runner, jobs application.JobSet, auditLogger audit.Logger) (*Handler, error) {
	if runner == nil {
		return nil, errors.New("report handler: nil runner")
	}
	return &Handler{
		runner:      runner,
		jobs:        jobs,
		auditLogger: auditLogger,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

type jobResponse struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Day        string   `json:"day"`
	OutputFile string   `json:"output_file"`
	Inputs     []string `json:"inputs"`
}

type runResponse struct {
	ID         string         `json:"id"`
	JobName    string         `json:"job_name"`
	JobType    string         `json:"job_type"`
	Day        string         `json:"day"`
	Status     string         `json:"status"`
	Error      string         `json:"error,omitempty"`
	OutputFile string         `json:"output_file"`
	OutputRows int            `json:"output_rows"`
	Dropped    map[string]int `json:"dropped,omitempty"`
	StartedAt  string         `json:"started_at"`
	FinishedAt string         `json:"finished_at,omitempty"`
}

// ListJobs returns the configured jobs in file order.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	out := make([]jobResponse, 0, len(h.jobs.Jobs))
	for _, job := range h.jobs.Jobs {
		inputs := make([]string, 0, len(job.Inputs))
		for key := range job.Inputs {
			inputs = append(inputs, key)
		}
		slices.Sort(inputs)
		out = append(out, jobResponse{
			Name:       job.Name,
			Type:       string(job.Type),
			Day:        job.Day(),
			OutputFile: job.OutputFile,
			Inputs:     inputs,
		})
	}
	writeJSON(w, r, http.StatusOK, out)
}

// ListRuns returns the recent runs of one job.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, err := h.jobs.Get(name); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(parsed, maxLimit)
	}
	runs, err := h.runner.History(r.Context(), name, limit)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("job", name).Msg("list runs failed")
		http.Error(w, "run history unavailable", http.StatusInternalServerError)
		return
	}
	out := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, toRunResponse(run))
	}
	writeJSON(w, r, http.StatusOK, out)
}

// TriggerRun runs one job synchronously. The optional date query parameter overrides its date_filter.
func (h *Handler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	job, err := h.jobs.Get(name)
	if err != nil {
		metrics.IncHTTPTrigger(metrics.ResultError)
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if raw := r.URL.Query().Get("date"); raw != "" {
		day, err := report.ResolveDate(raw, h.now())
		if err != nil {
			metrics.IncHTTPTrigger(metrics.ResultError)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		job = job.WithDate(day)
	}

	run, err := h.runner.Run(r.Context(), job)
	h.logAudit(r, job, run)
	if err != nil {
		metrics.IncHTTPTrigger(metrics.ResultError)
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("job", name).Msg("triggered run failed")
		if run == nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, r, http.StatusUnprocessableEntity, toRunResponse(*run))
		return
	}
	metrics.IncHTTPTrigger(metrics.ResultSuccess)
	writeJSON(w, r, http.StatusOK, toRunResponse(*run))
}

// Health reports liveness.
func Health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) logAudit(r *http.Request, job report.JobConfig, run *report.Run) {
	if h.auditLogger == nil {
		return
	}
	entry := audit.Entry{
		Actor:     auth.SubjectFromContext(r.Context()),
		Role:      string(auth.RoleFromContext(r.Context())),
		Action:    audit.ActionJobRun,
		JobName:   job.Name,
		Day:       job.Day(),
		IP:        audit.ClientIP(r),
		UserAgent: r.UserAgent(),
	}
	if run != nil {
		entry.RunID = run.ID
		entry.Outcome = string(run.Status)
	}
	if date := r.URL.Query().Get("date"); date != "" {
		entry.Metadata, _ = json.Marshal(map[string]string{"date": date})
	}
	if err := h.auditLogger.Log(r.Context(), entry); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("job", job.Name).Msg("audit log failed")
	}
}

func toRunResponse(run report.Run) runResponse {
	resp := runResponse{
		ID:         run.ID,
		JobName:    run.JobName,
		JobType:    string(run.JobType),
		Day:        run.Day,
		Status:     string(run.Status),
		Error:      run.Error,
		OutputFile: run.OutputFile,
		OutputRows: run.OutputRows,
		Dropped:    run.Dropped,
		StartedAt:  run.StartedAt.Format(timeLayout),
	}
	if !run.FinishedAt.IsZero() {
		resp.FinishedAt = run.FinishedAt.Format(timeLayout)
	}
	return resp
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to encode response")
	}
}
