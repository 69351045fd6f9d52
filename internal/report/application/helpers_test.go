package application

import (
	"context"
	"errors"
	"sync"

	report "energy-report/internal/report/domain"
	"energy-report/internal/report/domain/pipeline"
	"energy-report/internal/report/domain/table"
)

const jobsYAML = `
jobs:
  station_5g_daily:
    type: station-5g
    date_filter: 2024-01-15
    input_files:
      pm_ne: pm_ne.csv
      pm_bbu: pm_bbu.csv
      pm_rru: pm_rru.csv
      cm_function: cm_function.csv
      dw_station_info: dw_station_info.csv
    output_file: out/station_5g.csv
    id_col: gnb_id
    ne_cols: [starttime, gnb_id, ne_energy]
    bbu_cols: [starttime, gnb_id, bbu_energy]
    rru_cols: [starttime, dn, ee_rrumeanpower]
    output_cols_order: [gnb_id, starttime_date, ne_energy, bbu_energy, ee_rrumeanpower_list]
  cell_4g_daily:
    type: 4g
    date_filter: 2024-01-15
    input_files:
      pm_cell: pm_cell.csv
      pm_rru: pm_rru.csv
      cm_rru_cell: cm_rru_cell.csv
      dw_cell_info: dw_cell_info.csv
    output_file: out/cell_4g.xlsx
    output_format: xlsx
    id_col: cgi
    cell_list_col: cell_list
    pm_cell_cols: [starttime, cgi, cell_energy]
    rru_agg_cols: [rru_energy]
    output_cols_order: [cgi, starttime_date, cell_energy, rru_energy, cell_name]
`

func mk(cols []string, rows ...[]string) *table.Table {
	t := table.New(cols...)
	for _, row := range rows {
		values := make([]table.Value, len(row))
		for i, cell := range row {
			values[i] = table.FromRaw(cell)
		}
		t.Append(values...)
	}
	return t
}

type mapSource map[string]*table.Table

func (m mapSource) Table(_ context.Context, key string) (*table.Table, error) {
	t, ok := m[key]
	if !ok {
		return nil, &report.MissingSourceError{Key: key, Err: errors.New("not found")}
	}
	return t, nil
}

func (m mapSource) Declared(key string) bool {
	_, ok := m[key]
	return ok
}

// fakeSources serves tables per job name; unknown jobs get an empty source.
type fakeSources map[string]mapSource

func (f fakeSources) Open(job report.JobConfig) pipeline.Source {
	if src, ok := f[job.Name]; ok {
		return src
	}
	return mapSource{}
}

func cell4GTables() mapSource {
	return mapSource{
		pipeline.KeyPMCell: mk([]string{"starttime", "cgi", "cell_energy"},
			[]string{"2024-01-15 00:00:00", "460-00-100-1", "1.5"},
		),
		pipeline.KeyPMRRU: mk([]string{"dn", "starttime", "rru_energy"},
			[]string{"r,1", "2024-01-15 00:00:00", "3"},
		),
		pipeline.KeyCMRRUCell: mk([]string{"dn", "cell_list"},
			[]string{"r,1", "{(100-1,7)}"},
		),
		pipeline.KeyDWCellInfo: mk([]string{"cgi", "cell_name"},
			[]string{"100-1", "Site-1"},
		),
	}
}

type written struct {
	path   string
	format string
	rows   int
}

type recordingSink struct {
	mu     sync.Mutex
	writes []written
	err    error
}

func (s *recordingSink) Write(_ context.Context, path, format string, t *table.Table) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, written{path: path, format: format, rows: t.Len()})
	return nil
}
