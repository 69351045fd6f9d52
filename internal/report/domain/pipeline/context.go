// Package pipeline reconciles raw equipment tables into one daily energy report per job.
package pipeline

import (
	"context"
	"fmt"

	report "energy-report/internal/report/domain"
	"energy-report/internal/report/domain/table"
)

// Input table keys declared under a job's input_files.
const (
	KeyPMCell        = "pm_cell"
	KeyPMRRU         = "pm_rru"
	KeyCMRRUCell     = "cm_rru_cell"
	KeyDWCellInfo    = "dw_cell_info"
	KeyPMNE          = "pm_ne"
	KeyPMBBU         = "pm_bbu"
	KeyPMBBUPack     = "pm_bbu_pack"
	KeyCMFunction    = "cm_function"
	KeyDWStationInfo = "dw_station_info"
)

// Well-known columns.
const (
	ColStartTime = "starttime"
	ColDay       = "starttime_date"
	ColDN        = "dn"
	ColDNPrefix  = "dn_prefix"
	ColRRUKey    = "rru_key"
	ColCellName  = "cell_name"
	ColVendor    = "vendor_name"
	ColCity      = "city_name"

	// ListSuffix names the serialized sub-entity summary column of a metric.
	ListSuffix = "_list"
)

// Context is the read-only per-job value every stage receives.
type Context struct {
	job report.JobConfig
}

// NewContext captures a private copy of job.
func NewContext(job report.JobConfig) Context {
	return Context{job: job.Clone()}
}

// Job returns a copy of the job descriptor.
func (c Context) Job() report.JobConfig { return c.job.Clone() }

// Day returns the target calendar day key.
func (c Context) Day() string { return c.job.Day() }

// Source hands out the raw tables declared by a job.
type Source interface {
	// Table loads the table declared under key. It returns *report.MissingSourceError
	// when the key is undeclared or its reference cannot be read.
	Table(ctx context.Context, key string) (*table.Table, error)
	// Declared reports whether the job declares key.
	Declared(key string) bool
}

// Stats counts rows silently excluded from a report.
type Stats struct {
	PrimaryRows       int
	NullListRows      int
	UnmappedRRURows   int
	SecondaryOnlyKeys int
	OutputRows        int
}

// Result is the finalized report table of one job.
type Result struct {
	Table *table.Table
	Stats Stats
}

// Run selects the strategy for job and builds its report.
// An unknown job type fails before any table is loaded.
func Run(ctx context.Context, job report.JobConfig, src Source) (Result, error) {
	strategy, err := StrategyFor(job.Type)
	if err != nil {
		return Result{}, err
	}
	for _, key := range strategy.RequiredInputs() {
		if !src.Declared(key) {
			return Result{}, &report.MissingSourceError{Key: key, Err: fmt.Errorf("not declared in job %s", job.Name)}
		}
	}
	return strategy.Build(ctx, NewContext(job), src)
}
