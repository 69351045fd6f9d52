// Package table is the in-memory tabular dataset the report pipeline operates on.
// Operations never mutate their receiver; each returns a new Table.
package table

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
)

// ErrMissingColumn is returned when an operation names a column the table does not have.
var ErrMissingColumn = errors.New("table: missing column")

// Table is an ordered set of named columns over rows of nullable cells.
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]Value
}

// Row is a read-only view of one table row.
type Row struct {
	t *Table
	i int
}

// New creates an empty table. Repeated names are suffixed .1, .2, ... in order.
func New(columns ...string) *Table {
	t := &Table{index: make(map[string]int, len(columns))}
	for _, name := range columns {
		unique := name
		for n := 1; ; n++ {
			if _, dup := t.index[unique]; !dup {
				break
			}
			unique = name + "." + strconv.Itoa(n)
		}
		t.index[unique] = len(t.columns)
		t.columns = append(t.columns, unique)
	}
	return t
}

// Append adds a row. Missing trailing cells are Null; extra cells are ignored.
// It is meant for builders populating a table they own.
func (t *Table) Append(values ...Value) {
	row := make([]Value, len(t.columns))
	copy(row, values)
	t.rows = append(t.rows, row)
}

// Columns returns the column names in order.
func (t *Table) Columns() []string { return slices.Clone(t.columns) }

// Has reports whether the table has column name.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Row returns the i-th row.
func (t *Table) Row(i int) Row { return Row{t: t, i: i} }

// Rows returns views over all rows.
func (t *Table) Rows() []Row {
	out := make([]Row, len(t.rows))
	for i := range t.rows {
		out[i] = Row{t: t, i: i}
	}
	return out
}

// Get returns the cell of column name, Null when the column does not exist.
func (r Row) Get(name string) Value {
	idx, ok := r.t.index[name]
	if !ok {
		return Null
	}
	return r.t.rows[r.i][idx]
}

// Values returns a copy of the row cells in column order.
func (r Row) Values() []Value { return slices.Clone(r.t.rows[r.i]) }

// Index returns the position of the row in its table.
func (r Row) Index() int { return r.i }

// Require returns an error wrapping ErrMissingColumn for the first absent name.
func (t *Table) Require(names ...string) error {
	for _, name := range names {
		if !t.Has(name) {
			return fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}
	return nil
}

// Select projects the table onto names, in that order.
func (t *Table) Select(names ...string) (*Table, error) {
	if err := t.Require(names...); err != nil {
		return nil, err
	}
	out := New(names...)
	idx := make([]int, len(out.columns))
	for i, name := range out.columns {
		idx[i] = t.index[name]
	}
	for _, row := range t.rows {
		values := make([]Value, len(idx))
		for i, j := range idx {
			values[i] = row[j]
		}
		out.rows = append(out.rows, values)
	}
	return out, nil
}

// Filter keeps the rows for which keep returns true.
func (t *Table) Filter(keep func(Row) bool) *Table {
	out := t.emptyCopy()
	for i, row := range t.rows {
		if keep(Row{t: t, i: i}) {
			out.rows = append(out.rows, slices.Clone(row))
		}
	}
	return out
}

// DropNull removes rows whose name cell is Null.
func (t *Table) DropNull(name string) *Table {
	return t.Filter(func(r Row) bool { return !r.Get(name).IsNull() })
}

// WithColumn sets column name to fn(row), appending the column when it is new.
func (t *Table) WithColumn(name string, fn func(Row) Value) *Table {
	out := t.emptyCopy()
	idx, exists := out.index[name]
	if !exists {
		idx = len(out.columns)
		out.index[name] = idx
		out.columns = append(out.columns, name)
	}
	for i, row := range t.rows {
		values := make([]Value, len(out.columns))
		copy(values, row)
		values[idx] = fn(Row{t: t, i: i})
		out.rows = append(out.rows, values)
	}
	return out
}

// Rename renames columns per mapping. A renamed column replaces an existing column
// of the target name. Unknown source names are ignored.
func (t *Table) Rename(mapping map[string]string) *Table {
	names := slices.Clone(t.columns)
	replaced := make(map[string]bool)
	for i, name := range names {
		if target, ok := mapping[name]; ok && target != name {
			names[i] = target
			replaced[target] = true
		}
	}
	out := &Table{index: make(map[string]int, len(names))}
	var source []int
	for i, name := range names {
		_, renamed := mapping[t.columns[i]]
		if replaced[name] && !renamed {
			continue
		}
		if _, dup := out.index[name]; dup {
			continue
		}
		out.index[name] = len(out.columns)
		out.columns = append(out.columns, name)
		source = append(source, i)
	}
	for _, row := range t.rows {
		values := make([]Value, len(source))
		for j, i := range source {
			values[j] = row[i]
		}
		out.rows = append(out.rows, values)
	}
	return out
}

// Reindex returns a table with exactly names as columns, Null-filled where absent.
func (t *Table) Reindex(names ...string) *Table {
	out := New(names...)
	for _, row := range t.rows {
		values := make([]Value, len(out.columns))
		for i, name := range out.columns {
			if j, ok := t.index[name]; ok {
				values[i] = row[j]
			}
		}
		out.rows = append(out.rows, values)
	}
	return out
}

// FirstBy reduces the table to one row per non-null key, in first-appearance order.
// Each column takes the first non-null value observed for the key.
func (t *Table) FirstBy(key string) (*Table, error) {
	if err := t.Require(key); err != nil {
		return nil, err
	}
	keyIdx := t.index[key]
	out := t.emptyCopy()
	pos := make(map[string]int)
	for _, row := range t.rows {
		k := row[keyIdx]
		if k.IsNull() {
			continue
		}
		at, seen := pos[k.Text()]
		if !seen {
			pos[k.Text()] = len(out.rows)
			out.rows = append(out.rows, slices.Clone(row))
			continue
		}
		merged := out.rows[at]
		for i, v := range row {
			if merged[i].IsNull() && !v.IsNull() {
				merged[i] = v
			}
		}
	}
	return out, nil
}

func (t *Table) emptyCopy() *Table {
	out := &Table{columns: slices.Clone(t.columns), index: make(map[string]int, len(t.columns))}
	for i, name := range out.columns {
		out.index[name] = i
	}
	return out
}
