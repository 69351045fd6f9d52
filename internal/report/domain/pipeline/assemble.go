package pipeline

import (
	"regexp"
	"strings"

	"github.com/samber/lo"

	report "energy-report/internal/report/domain"
	"energy-report/internal/report/domain/table"
)

var cellIndexSuffixRE = regexp.MustCompile(`-\d+$`)

// JoinAll left-joins every secondary onto primary on keys, in order. Keys present only in
// secondaries never reach the result; the second return value counts each such key once,
// however many secondaries carry it.
func JoinAll(primary *table.Table, keys []string, secondaries ...*table.Table) (*table.Table, int, error) {
	anchor := keySet(primary, keys)
	orphans := make(map[string]bool)
	merged := primary
	for _, sec := range secondaries {
		if sec == nil {
			continue
		}
		for k := range keySet(sec, keys) {
			if !anchor[k] {
				orphans[k] = true
			}
		}
		var err error
		if merged, err = merged.Join(sec, keys, table.LeftJoin, table.DefaultSuffix); err != nil {
			return nil, 0, err
		}
	}
	return merged, len(orphans), nil
}

func keySet(t *table.Table, keys []string) map[string]bool {
	set := make(map[string]bool, t.Len())
	for _, row := range t.Rows() {
		parts := make([]string, len(keys))
		ok := true
		for i, k := range keys {
			v := row.Get(k)
			if v.IsNull() {
				ok = false
				break
			}
			parts[i] = v.Text()
		}
		if ok {
			set[strings.Join(parts, "\x1f")] = true
		}
	}
	return set
}

// ReferenceSpec describes how the static metadata table is keyed and reduced.
type ReferenceSpec struct {
	IDCol string
	// Aliases are reference id columns renamed to IDCol when IDCol is absent, first present wins.
	Aliases []string
	Kind    report.IDKind
	// NameCol, when set, is derived from ColCellName by stripping a trailing -<digits>.
	NameCol string
	Columns []string
}

// PrepareReference keys ref on IDCol, reduces it to one row per entity taking the first non-null
// value of every metadata column, and projects it onto IDCol plus the available Columns.
func PrepareReference(ref *table.Table, spec ReferenceSpec) (*table.Table, error) {
	if !ref.Has(spec.IDCol) {
		for _, alias := range spec.Aliases {
			if alias != spec.IDCol && ref.Has(alias) {
				ref = ref.Rename(map[string]string{alias: spec.IDCol})
				break
			}
		}
	}
	if spec.NameCol != "" && ref.Has(ColCellName) {
		ref = ref.WithColumn(spec.NameCol, func(r table.Row) table.Value {
			name := r.Get(ColCellName)
			if name.IsNull() {
				return table.Null
			}
			return table.String(cellIndexSuffixRE.ReplaceAllString(name.Text(), ""))
		})
	}
	normalized, err := NormalizeColumn(ref, spec.IDCol, spec.Kind)
	if err != nil {
		return nil, err
	}
	cols := lo.Filter(lo.Uniq(spec.Columns), func(c string, _ int) bool {
		return c != spec.IDCol && normalized.Has(c)
	})
	projected, err := normalized.Select(append([]string{spec.IDCol}, cols...)...)
	if err != nil {
		return nil, err
	}
	return projected.FirstBy(spec.IDCol)
}

// AttachReference left-joins prepared reference metadata on the entity id alone.
func AttachReference(merged, ref *table.Table, idCol string) (*table.Table, error) {
	return merged.Join(ref, []string{idCol}, table.LeftJoin, table.DefaultSuffix)
}

// Finalize applies the rename map and reindexes to the declared output columns.
func Finalize(merged *table.Table, rename map[string]string, output []string) *table.Table {
	if len(rename) > 0 {
		merged = merged.Rename(rename)
	}
	return merged.Reindex(output...)
}
