// Package source loads raw input tables from local files, SQLite databases and S3.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"energy-report/internal/observability/metrics"
	report "energy-report/internal/report/domain"
	"energy-report/internal/report/domain/pipeline"
	"energy-report/internal/report/domain/table"
)

const (
	schemeFile   = "file"
	schemeS3     = "s3"
	schemeSQLite = "sqlite"
)

// Factory opens the inputs of a job.
type Factory struct {
	objects ObjectGetter
	logger  zerolog.Logger
}

// NewFactory constructs a Factory. objects may be nil when no input lives in S3.
func NewFactory(objects ObjectGetter, logger zerolog.Logger) *Factory {
	return &Factory{objects: objects, logger: logger}
}

// Open returns the source bound to job's input_files.
func (f *Factory) Open(job report.JobConfig) pipeline.Source {
	return &JobSource{factory: f, job: job.Name, inputs: job.Inputs, cache: make(map[string]*table.Table)}
}

// JobSource serves the declared tables of one job. Each reference is read at most once.
type JobSource struct {
	factory *Factory
	job     string
	inputs  map[string]string

	mu    sync.Mutex
	cache map[string]*table.Table
}

// Declared reports whether key has a non-empty reference.
func (s *JobSource) Declared(key string) bool {
	return s.inputs[key] != ""
}

// Table loads the table declared under key.
func (s *JobSource) Table(ctx context.Context, key string) (*table.Table, error) {
	ref := s.inputs[key]
	if ref == "" {
		return nil, &report.MissingSourceError{Key: key, Err: fmt.Errorf("not declared in job %s", s.job)}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.cache[key]; ok {
		return t, nil
	}
	t, err := s.factory.Load(ctx, ref)
	if err != nil {
		return nil, &report.MissingSourceError{Key: key, Ref: ref, Err: err}
	}
	s.factory.logger.Debug().Str("job", s.job).Str("input", key).Str("ref", ref).Int("rows", t.Len()).Msg("input loaded")
	s.cache[key] = t
	return t, nil
}

// Load reads the table behind ref: s3://bucket/key, sqlite://path?table=name or a local path.
// Files ending in .xlsx are read as workbooks, everything else as CSV.
func (f *Factory) Load(ctx context.Context, ref string) (*table.Table, error) {
	scheme := schemeFile
	var (
		t   *table.Table
		err error
	)
	switch {
	case strings.HasPrefix(ref, schemeS3+"://"):
		scheme = schemeS3
		t, err = f.loadS3(ctx, ref)
	case strings.HasPrefix(ref, schemeSQLite+"://"):
		scheme = schemeSQLite
		t, err = loadSQLite(ctx, ref)
	default:
		t, err = loadFile(strings.TrimPrefix(ref, schemeFile+"://"))
	}
	if err != nil {
		metrics.IncSourceLoad(scheme, metrics.ResultError)
		return nil, err
	}
	metrics.IncSourceLoad(scheme, metrics.ResultSuccess)
	return t, nil
}

func loadFile(path string) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if isWorkbook(path) {
		return ReadXLSX(f)
	}
	return ReadCSV(f)
}

func (f *Factory) loadS3(ctx context.Context, ref string) (*table.Table, error) {
	if f.objects == nil {
		return nil, errors.New("s3 client not configured")
	}
	u, err := url.Parse(ref)
	if err != nil {
		return nil, err
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return nil, fmt.Errorf("invalid s3 reference %q", ref)
	}
	body, err := getObject(ctx, f.objects, u.Host, key)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	if isWorkbook(key) {
		return ReadXLSX(body)
	}
	return ReadCSV(body)
}

func isWorkbook(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".xlsx")
}

// header canonicalizes a column name the way every input is addressed.
func header(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
