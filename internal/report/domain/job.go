package report

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// DayLayout is the canonical calendar-day key format.
const DayLayout = "2006-01-02"

// Technology is the radio access generation of a job.
type Technology string

const (
	Technology4G Technology = "4g"
	Technology5G Technology = "5g"
)

// Granularity is the reporting entity of a job.
type Granularity string

const (
	GranularityCell    Granularity = "cell"
	GranularityStation Granularity = "station"
)

// JobType is the closed set of technology x granularity combinations.
type JobType string

const (
	JobTypeCell4G    JobType = "4g"
	JobTypeCell5G    JobType = "5g"
	JobTypeStation4G JobType = "4g_station"
	JobTypeStation5G JobType = "5g_station"
)

var jobTypeAliases = map[string]JobType{
	"4g":         JobTypeCell4G,
	"cell-4g":    JobTypeCell4G,
	"5g":         JobTypeCell5G,
	"cell-5g":    JobTypeCell5G,
	"4g_station": JobTypeStation4G,
	"station-4g": JobTypeStation4G,
	"5g_station": JobTypeStation5G,
	"station-5g": JobTypeStation5G,
}

// ParseJobType resolves a configured type string.
func ParseJobType(value string) (JobType, error) {
	jobType, ok := jobTypeAliases[strings.ToLower(strings.TrimSpace(value))]
	if !ok {
		return "", &UnknownJobTypeError{Type: value}
	}
	return jobType, nil
}

// IsValid reports whether t is one of the supported job types.
func (t JobType) IsValid() bool {
	switch t {
	case JobTypeCell4G, JobTypeCell5G, JobTypeStation4G, JobTypeStation5G:
		return true
	default:
		return false
	}
}

// Technology returns the generation of the job type.
func (t JobType) Technology() Technology {
	switch t {
	case JobTypeCell5G, JobTypeStation5G:
		return Technology5G
	default:
		return Technology4G
	}
}

// Granularity returns the reporting entity of the job type.
func (t JobType) Granularity() Granularity {
	switch t {
	case JobTypeStation4G, JobTypeStation5G:
		return GranularityStation
	default:
		return GranularityCell
	}
}

// JobConfig is the read-only descriptor of one daily report job.
type JobConfig struct {
	Name         string
	Type         JobType
	Inputs       map[string]string
	OutputFile   string
	OutputFormat string
	Date         time.Time
	IDCol        string

	CellListCol    string
	CellListFields []string
	PMCellCols     []string

	NECols       []string
	BBUCols      []string
	BBUPackCols  []string
	RRUCols      []string
	FunctionCols []string

	RRUAggCols   []string
	RRUListCol   string
	MetadataCols []string

	RenameMap  map[string]string
	OutputCols []string
}

// Validate checks invariants that do not require any I/O.
func (c JobConfig) Validate() error {
	if c.Name == "" {
		return ErrEmptyJobName
	}
	if !c.Type.IsValid() {
		return &UnknownJobTypeError{Type: string(c.Type)}
	}
	if c.IDCol == "" {
		return fmt.Errorf("%w: job %s", ErrEmptyIDColumn, c.Name)
	}
	if len(c.OutputCols) == 0 {
		return fmt.Errorf("%w: job %s", ErrEmptyOutputColumns, c.Name)
	}
	seen := make(map[string]bool, len(c.OutputCols))
	for _, col := range c.OutputCols {
		if seen[col] {
			return fmt.Errorf("%w: job %s: %s", ErrDuplicateOutputColumn, c.Name, col)
		}
		seen[col] = true
	}
	if c.Date.IsZero() {
		return fmt.Errorf("%w: job %s", ErrInvalidDateFilter, c.Name)
	}
	return nil
}

// Input returns the table reference declared under key.
func (c JobConfig) Input(key string) (string, bool) {
	ref, ok := c.Inputs[key]
	return ref, ok && ref != ""
}

// Day returns the target calendar day key.
func (c JobConfig) Day() string {
	return c.Date.Format(DayLayout)
}

// WithDate returns a copy of c targeting day.
func (c JobConfig) WithDate(day time.Time) JobConfig {
	clone := c.Clone()
	clone.Date = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	return clone
}

// Clone returns a deep copy so callers cannot share mutable slices or maps.
func (c JobConfig) Clone() JobConfig {
	c.Inputs = maps.Clone(c.Inputs)
	c.RenameMap = maps.Clone(c.RenameMap)
	c.CellListFields = slices.Clone(c.CellListFields)
	c.PMCellCols = slices.Clone(c.PMCellCols)
	c.NECols = slices.Clone(c.NECols)
	c.BBUCols = slices.Clone(c.BBUCols)
	c.BBUPackCols = slices.Clone(c.BBUPackCols)
	c.RRUCols = slices.Clone(c.RRUCols)
	c.FunctionCols = slices.Clone(c.FunctionCols)
	c.RRUAggCols = slices.Clone(c.RRUAggCols)
	c.MetadataCols = slices.Clone(c.MetadataCols)
	c.OutputCols = slices.Clone(c.OutputCols)
	return c
}

// ResolveDate parses a date_filter value relative to now.
// Accepted forms: YYYY-MM-DD, YYYY/MM/DD, "today" and "yesterday".
func ResolveDate(value string, now time.Time) (time.Time, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	switch value {
	case "":
		return time.Time{}, ErrInvalidDateFilter
	case "today":
		return today, nil
	case "yesterday":
		return today.AddDate(0, 0, -1), nil
	}
	for _, layout := range []string{DayLayout, "2006/01/02", "2006/1/2", "20060102"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDateFilter, value)
}
