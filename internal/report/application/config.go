package application

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	report "energy-report/internal/report/domain"
	"energy-report/internal/report/domain/pipeline"
)

// JobSpec is one job entry of the jobs file.
type JobSpec struct {
	Type           string            `yaml:"type"`
	InputFiles     map[string]string `yaml:"input_files"`
	OutputFile     string            `yaml:"output_file"`
	OutputFormat   string            `yaml:"output_format"`
	DateFilter     string            `yaml:"date_filter"`
	IDCol          string            `yaml:"id_col"`
	CellListCol    string            `yaml:"cell_list_col"`
	CellListFields []string          `yaml:"cell_list_fields"`
	RRUAggCols     []string          `yaml:"rru_agg_cols"`
	RRUListCol     string            `yaml:"rru_list_col"`
	PMCellCols     []string          `yaml:"pm_cell_cols"`
	NECols         []string          `yaml:"ne_cols"`
	BBUCols        []string          `yaml:"bbu_cols"`
	BBUPackCols    []string          `yaml:"bbu_pack_cols"`
	RRUCols        []string          `yaml:"rru_cols"`
	FunctionCols   []string          `yaml:"function_cols"`
	MetadataCols   []string          `yaml:"metadata_cols"`
	RenameMap      map[string]string `yaml:"final_cols_rename_map"`
	OutputCols     []string          `yaml:"output_cols_order"`
}

type jobsFile struct {
	Jobs map[string]JobSpec `yaml:"jobs"`
}

// JobSet is the ordered list of configured jobs.
type JobSet struct {
	Jobs []report.JobConfig
}

// LoadJobs reads and validates the jobs file at path. Relative dates resolve against now.
func LoadJobs(path string, now time.Time) (JobSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return JobSet{}, fmt.Errorf("jobs file: %w", err)
	}
	return ParseJobs(data, now)
}

// ParseJobs decodes a jobs document. Unknown keys are rejected and jobs keep file order.
func ParseJobs(data []byte, now time.Time) (JobSet, error) {
	var file jobsFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return JobSet{}, fmt.Errorf("jobs file: %w", err)
	}
	order, err := jobOrder(data)
	if err != nil {
		return JobSet{}, err
	}
	if len(order) == 0 {
		return JobSet{}, errors.New("jobs file: no jobs defined")
	}

	set := JobSet{Jobs: make([]report.JobConfig, 0, len(order))}
	var errs []error
	for _, name := range order {
		job, err := file.Jobs[name].toJob(name, now)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		set.Jobs = append(set.Jobs, job)
	}
	if err := errors.Join(errs...); err != nil {
		return JobSet{}, err
	}
	return set, nil
}

func jobOrder(data []byte) ([]string, error) {
	var doc struct {
		Jobs yaml.Node `yaml:"jobs"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("jobs file: %w", err)
	}
	if doc.Jobs.Kind != yaml.MappingNode {
		return nil, nil
	}
	names := make([]string, 0, len(doc.Jobs.Content)/2)
	for i := 0; i+1 < len(doc.Jobs.Content); i += 2 {
		names = append(names, doc.Jobs.Content[i].Value)
	}
	return names, nil
}

func (s JobSpec) toJob(name string, now time.Time) (report.JobConfig, error) {
	jobType, err := report.ParseJobType(s.Type)
	if err != nil {
		return report.JobConfig{}, fmt.Errorf("job %s: %w", name, err)
	}
	dateFilter := s.DateFilter
	if dateFilter == "" {
		dateFilter = "yesterday"
	}
	day, err := report.ResolveDate(dateFilter, now)
	if err != nil {
		return report.JobConfig{}, fmt.Errorf("job %s: %w", name, err)
	}
	job := report.JobConfig{
		Name:           name,
		Type:           jobType,
		Inputs:         s.InputFiles,
		OutputFile:     s.OutputFile,
		OutputFormat:   s.OutputFormat,
		Date:           day,
		IDCol:          s.IDCol,
		CellListCol:    s.CellListCol,
		CellListFields: s.CellListFields,
		PMCellCols:     s.PMCellCols,
		NECols:         s.NECols,
		BBUCols:        s.BBUCols,
		BBUPackCols:    s.BBUPackCols,
		RRUCols:        s.RRUCols,
		FunctionCols:   s.FunctionCols,
		RRUAggCols:     s.RRUAggCols,
		RRUListCol:     s.RRUListCol,
		MetadataCols:   s.MetadataCols,
		RenameMap:      s.RenameMap,
		OutputCols:     s.OutputCols,
	}
	if err := ValidateJob(job); err != nil {
		return report.JobConfig{}, err
	}
	return job, nil
}

// ValidateJob checks a job without touching any input: descriptor invariants, declared
// inputs of the job's strategy and the columns the strategy cannot run without.
func ValidateJob(job report.JobConfig) error {
	if err := job.Validate(); err != nil {
		return err
	}
	strategy, err := pipeline.StrategyFor(job.Type)
	if err != nil {
		return err
	}
	for _, key := range strategy.RequiredInputs() {
		if _, ok := job.Input(key); !ok {
			return fmt.Errorf("job %s: %w", job.Name, &report.MissingSourceError{Key: key, Err: errors.New("not declared")})
		}
	}
	if job.OutputFile == "" {
		return fmt.Errorf("job %s: output_file required", job.Name)
	}
	switch job.OutputFormat {
	case "", FormatCSV, FormatXLSX:
	default:
		return fmt.Errorf("job %s: unsupported output_format %q", job.Name, job.OutputFormat)
	}
	if job.Type.Granularity() == report.GranularityCell && job.CellListCol == "" {
		return fmt.Errorf("job %s: cell_list_col required", job.Name)
	}
	return nil
}

// Select returns the jobs named in names, in file order. An empty names selects all.
func (s JobSet) Select(names ...string) ([]report.JobConfig, error) {
	if len(names) == 0 {
		return s.Jobs, nil
	}
	byName := make(map[string]report.JobConfig, len(s.Jobs))
	for _, job := range s.Jobs {
		byName[job.Name] = job
	}
	want := make(map[string]bool, len(names))
	for _, name := range names {
		if _, ok := byName[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrJobNotFound, name)
		}
		want[name] = true
	}
	var out []report.JobConfig
	for _, job := range s.Jobs {
		if want[job.Name] {
			out = append(out, job)
		}
	}
	return out, nil
}

// Get returns the job called name.
func (s JobSet) Get(name string) (report.JobConfig, error) {
	for _, job := range s.Jobs {
		if job.Name == name {
			return job, nil
		}
	}
	return report.JobConfig{}, fmt.Errorf("%w: %s", ErrJobNotFound, name)
}

// WithDate returns a copy of the set targeting day for every job.
func (s JobSet) WithDate(day time.Time) JobSet {
	out := JobSet{Jobs: make([]report.JobConfig, len(s.Jobs))}
	for i, job := range s.Jobs {
		out.Jobs[i] = job.WithDate(day)
	}
	return out
}
