package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	report "energy-report/internal/report/domain"
	"energy-report/internal/report/domain/table"
)

// SummarySpec describes a per-entity sub-entity summary.
type SummarySpec struct {
	IDCol    string
	KeyCol   string
	ValueCol string
	OutCol   string
	TimeCol  string
}

type summaryGroup struct {
	keys []string
	sums map[string]float64
}

// BuildSummary sums ValueCol per (IDCol, day, KeyCol) and folds the sums of each (IDCol, day)
// into one JSON object column OutCol. Keys keep their first-appearance order within the group.
func BuildSummary(src *table.Table, spec SummarySpec) (*table.Table, error) {
	dated, err := ensureDay(src, spec.TimeCol)
	if err != nil {
		return nil, err
	}
	if err := dated.Require(spec.IDCol, spec.KeyCol, spec.ValueCol); err != nil {
		return nil, err
	}

	var order []groupKey
	groups := make(map[groupKey]*summaryGroup)
	for i, row := range dated.Rows() {
		id, day := row.Get(spec.IDCol), row.Get(ColDay)
		if id.IsNull() || day.IsNull() {
			continue
		}
		key := groupKey{id: id.Text(), day: day.Text()}
		g, ok := groups[key]
		if !ok {
			g = &summaryGroup{sums: make(map[string]float64)}
			groups[key] = g
			order = append(order, key)
		}
		local := row.Get(spec.KeyCol).Text()
		if _, seen := g.sums[local]; !seen {
			g.keys = append(g.keys, local)
			g.sums[local] = 0
		}
		f, present, err := row.Get(spec.ValueCol).Float()
		if err != nil {
			return nil, fmt.Errorf("%w: column %s row %d: %v", report.ErrInvalidMetric, spec.ValueCol, i+1, err)
		}
		if present {
			g.sums[local] += f
		}
	}

	out := table.New(spec.IDCol, ColDay, spec.OutCol)
	for _, key := range order {
		encoded, err := encodeSummary(groups[key])
		if err != nil {
			return nil, err
		}
		out.Append(table.String(key.id), table.String(key.day), table.String(encoded))
	}
	return out, nil
}

// encodeSummary renders {"k": v, "k2": v2} with keys in insertion order and non-ASCII kept as-is.
func encodeSummary(g *summaryGroup) (string, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range g.keys {
		if i > 0 {
			b.WriteString(", ")
		}
		name, err := encodeKey(k)
		if err != nil {
			return "", err
		}
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(table.FormatNumber(g.sums[k]))
	}
	b.WriteByte('}')
	return b.String(), nil
}

func encodeKey(k string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(k); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
