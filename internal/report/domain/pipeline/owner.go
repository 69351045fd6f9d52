package pipeline

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	report "energy-report/internal/report/domain"
	"energy-report/internal/report/domain/table"
)

const dnPrefixSegments = 3

// OwnerSpec describes how radio units are attributed to their network element.
type OwnerSpec struct {
	// OwnerCol is the fixed output column of the owning element id.
	OwnerCol string
	// Candidates are function-table id columns, most qualified first.
	Candidates []string
	Kind       report.IDKind
}

// OwnerSpecFor returns the owner mapping of a technology.
func OwnerSpecFor(tech report.Technology) OwnerSpec {
	if tech == report.Technology5G {
		return OwnerSpec{
			OwnerCol:   "gnb_id",
			Candidates: []string{"gnb_id", "gnodeb_id"},
			Kind:       report.IDKind{Technology: report.Technology5G, Granularity: report.GranularityStation},
		}
	}
	return OwnerSpec{
		OwnerCol:   "enbid",
		Candidates: []string{"enb_id", "enbid"},
		Kind:       report.IDKind{Technology: report.Technology4G, Granularity: report.GranularityStation},
	}
}

// DNPrefix returns the first three segments of dn, the network element part.
func DNPrefix(dn string) string {
	parts := strings.Split(dn, ",")
	if len(parts) > dnPrefixSegments {
		parts = parts[:dnPrefixSegments]
	}
	return strings.Join(parts, ",")
}

// DNLocalKey returns the last segment of dn, the unit-local key.
func DNLocalKey(dn string) string {
	if i := strings.LastIndex(dn, ","); i >= 0 {
		return dn[i+1:]
	}
	return dn
}

// MapToOwner attaches ColDNPrefix, ColRRUKey and spec.OwnerCol to measurement rows by
// left-joining functions on the dn prefix. The second result counts rows left without an owner.
func MapToOwner(measure, functions *table.Table, spec OwnerSpec) (*table.Table, int, error) {
	if err := measure.Require(ColDN); err != nil {
		return nil, 0, err
	}
	if err := functions.Require(ColDN); err != nil {
		return nil, 0, err
	}
	source := ""
	for _, c := range spec.Candidates {
		if functions.Has(c) {
			source = c
			break
		}
	}
	if source == "" {
		return nil, 0, fmt.Errorf("%w: one of %s", report.ErrMissingColumn, strings.Join(spec.Candidates, ", "))
	}

	owners := table.New(ColDNPrefix, spec.OwnerCol)
	seen := make(map[[2]string]bool)
	for _, row := range functions.Rows() {
		prefix := prefixValue(row.Get(ColDN))
		owner := normalizeValue(row.Get(source), spec.Kind)
		if prefix.IsNull() || owner.IsNull() {
			continue
		}
		pair := [2]string{prefix.Text(), owner.Text()}
		if seen[pair] {
			continue
		}
		seen[pair] = true
		owners.Append(prefix, owner)
	}

	keyed := measure.
		WithColumn(ColDNPrefix, func(r table.Row) table.Value { return prefixValue(r.Get(ColDN)) }).
		WithColumn(ColRRUKey, func(r table.Row) table.Value {
			dn := r.Get(ColDN)
			if dn.IsNull() {
				return table.String("")
			}
			return table.String(DNLocalKey(dn.Text()))
		})
	if keyed.Has(spec.OwnerCol) {
		// the mapped owner replaces any id the measurement table already carried
		keyed, _ = keyed.Select(lo.Without(keyed.Columns(), spec.OwnerCol)...)
	}

	mapped, err := keyed.Join(owners, []string{ColDNPrefix}, table.LeftJoin, "")
	if err != nil {
		return nil, 0, err
	}
	unmapped := 0
	for _, row := range mapped.Rows() {
		if row.Get(spec.OwnerCol).IsNull() {
			unmapped++
		}
	}
	return mapped, unmapped, nil
}

// prefixValue is Null for a missing or empty dn so such rows never match each other.
func prefixValue(dn table.Value) table.Value {
	if dn.IsNull() || dn.Text() == "" {
		return table.Null
	}
	return table.String(DNPrefix(dn.Text()))
}
