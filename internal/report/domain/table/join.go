package table

import (
	"strings"

	"github.com/samber/lo"
)

// JoinKind selects which unmatched rows survive a join.
type JoinKind int

const (
	// LeftJoin keeps every left row; unmatched rows get Null right columns.
	LeftJoin JoinKind = iota
	// InnerJoin keeps only matched pairs.
	InnerJoin
)

// DefaultSuffix is appended to right-hand columns whose names clash with left-hand ones.
const DefaultSuffix = "_dup"

const keySep = "\x1f"

// Join combines t (left) with right on equal key columns. A left row matching several right
// rows is repeated once per match, in right-table order. Null key cells never match.
// Non-key right columns whose name already exists on the left are renamed with suffix.
func (t *Table) Join(right *Table, on []string, kind JoinKind, suffix string) (*Table, error) {
	if err := t.Require(on...); err != nil {
		return nil, err
	}
	if err := right.Require(on...); err != nil {
		return nil, err
	}
	if suffix == "" {
		suffix = DefaultSuffix
	}

	rightCols := lo.Filter(right.columns, func(name string, _ int) bool {
		return !lo.Contains(on, name)
	})
	outCols := t.Columns()
	for _, name := range rightCols {
		if lo.Contains(outCols, name) {
			name += suffix
		}
		outCols = append(outCols, name)
	}
	out := New(outCols...)

	rightIdx := make([]int, len(rightCols))
	for i, name := range rightCols {
		rightIdx[i] = right.index[name]
	}

	matches := make(map[string][]int, right.Len())
	for i := range right.rows {
		key, ok := right.key(i, on)
		if !ok {
			continue
		}
		matches[key] = append(matches[key], i)
	}

	width := len(t.columns)
	for i, row := range t.rows {
		key, ok := t.key(i, on)
		var hits []int
		if ok {
			hits = matches[key]
		}
		if len(hits) == 0 {
			if kind == LeftJoin {
				values := make([]Value, len(out.columns))
				copy(values, row)
				out.rows = append(out.rows, values)
			}
			continue
		}
		for _, j := range hits {
			values := make([]Value, len(out.columns))
			copy(values, row)
			for k, idx := range rightIdx {
				values[width+k] = right.rows[j][idx]
			}
			out.rows = append(out.rows, values)
		}
	}
	return out, nil
}

func (t *Table) key(i int, on []string) (string, bool) {
	parts := make([]string, len(on))
	for k, name := range on {
		v := t.rows[i][t.index[name]]
		if v.IsNull() {
			return "", false
		}
		parts[k] = v.Text()
	}
	return strings.Join(parts, keySep), true
}
