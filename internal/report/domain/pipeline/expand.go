package pipeline

import (
	"strings"

	report "energy-report/internal/report/domain"
	"energy-report/internal/report/domain/table"
)

const tupleBoundary = "),("

// ExpandSpec describes a composite list column such as {(cgi,pci),(cgi,pci)}.
type ExpandSpec struct {
	ListCol string
	IDCol   string
	Kind    report.IDKind
	// TupleFields names tuple components after the first, by position. Optional.
	TupleFields []string
}

// Expand emits one row per tuple of ListCol. The first tuple component becomes the canonical IDCol;
// every other column is copied unchanged. Rows with a Null list are dropped and counted.
// Malformed elements produce identifiers that match nothing downstream.
func Expand(src *table.Table, spec ExpandSpec) (*table.Table, int, error) {
	if err := src.Require(spec.ListCol); err != nil {
		return nil, 0, err
	}
	cols := src.Columns()
	extra := append([]string{spec.IDCol}, spec.TupleFields...)
	for _, name := range extra {
		if !src.Has(name) {
			cols = append(cols, name)
		}
	}
	out := table.New(cols...)
	listIdx, idIdx := indexOf(cols, spec.ListCol), indexOf(cols, spec.IDCol)

	dropped := 0
	for _, row := range src.Rows() {
		list := row.Get(spec.ListCol)
		if list.IsNull() {
			dropped++
			continue
		}
		base := make([]table.Value, len(cols))
		copy(base, row.Values())
		for _, elem := range splitTuples(list.Text()) {
			values := make([]table.Value, len(cols))
			copy(values, base)
			values[listIdx] = table.String(elem)
			values[idIdx] = normalizeValue(table.String(tupleHead(elem)), spec.Kind)
			if len(spec.TupleFields) > 0 {
				parts := strings.Split(strings.Trim(elem, "()"), ",")
				for k, name := range spec.TupleFields {
					if k+1 < len(parts) {
						values[indexOf(cols, name)] = table.FromRaw(strings.TrimSpace(parts[k+1]))
					}
				}
			}
			out.Append(values...)
		}
	}
	return out, dropped, nil
}

// splitTuples strips one enclosing brace pair and splits on the tuple boundary.
func splitTuples(field string) []string {
	body := strings.TrimPrefix(field, "{")
	body = strings.TrimSuffix(body, "}")
	return strings.Split(body, tupleBoundary)
}

func tupleHead(elem string) string {
	head, _, _ := strings.Cut(elem, ",")
	return strings.ReplaceAll(head, "(", "")
}

func indexOf(cols []string, name string) int {
	for i, c := range cols {
		if c == name {
			return i
		}
	}
	return -1
}
