package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	report "energy-report/internal/report/domain"
	"energy-report/internal/report/domain/table"
)

// mk builds a table from text rows; empty cells are Null.
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

func col(t *table.Table, name string) []string {
	out := make([]string, 0, t.Len())
	for _, r := range t.Rows() {
		v := r.Get(name)
		if v.IsNull() {
			out = append(out, "<null>")
			continue
		}
		out = append(out, v.Text())
	}
	return out
}

func grid(t *table.Table) [][]string {
	out := make([][]string, 0, t.Len())
	for _, r := range t.Rows() {
		row := make([]string, 0, len(t.Columns()))
		for _, v := range r.Values() {
			if v.IsNull() {
				row = append(row, "<null>")
				continue
			}
			row = append(row, v.Text())
		}
		out = append(out, row)
	}
	return out
}

// mapSource serves in-memory tables keyed like job inputs.
type mapSource map[string]*table.Table

func (m mapSource) Table(_ context.Context, key string) (*table.Table, error) {
	t, ok := m[key]
	if !ok {
		return nil, &report.MissingSourceError{Key: key, Err: fmt.Errorf("not declared")}
	}
	return t, nil
}

func (m mapSource) Declared(key string) bool {
	_, ok := m[key]
	return ok
}

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(report.DayLayout, s)
	if err != nil {
		t.Fatalf("parse day: %v", err)
	}
	return d
}
