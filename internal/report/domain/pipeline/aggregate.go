package pipeline

import (
	"fmt"

	report "energy-report/internal/report/domain"
	"energy-report/internal/report/domain/table"
)

// AggregateSpec describes a daily sum.
type AggregateSpec struct {
	IDCol   string
	Metrics []string
	// TimeCol is used to derive ColDay when the input does not carry it yet.
	TimeCol string
}

type groupKey struct {
	id  string
	day string
}

// AggregateDaily sums every metric per (IDCol, calendar day). Groups appear in first-seen order.
// Rows with a Null id or day are excluded; Null metric cells contribute nothing.
func AggregateDaily(src *table.Table, spec AggregateSpec) (*table.Table, error) {
	dated, err := ensureDay(src, spec.TimeCol)
	if err != nil {
		return nil, err
	}
	if err := dated.Require(append([]string{spec.IDCol}, spec.Metrics...)...); err != nil {
		return nil, err
	}

	var order []groupKey
	sums := make(map[groupKey][]float64)
	for i, row := range dated.Rows() {
		id, day := row.Get(spec.IDCol), row.Get(ColDay)
		if id.IsNull() || day.IsNull() {
			continue
		}
		key := groupKey{id: id.Text(), day: day.Text()}
		acc, ok := sums[key]
		if !ok {
			acc = make([]float64, len(spec.Metrics))
			sums[key] = acc
			order = append(order, key)
		}
		for m, metric := range spec.Metrics {
			f, present, err := row.Get(metric).Float()
			if err != nil {
				return nil, fmt.Errorf("%w: column %s row %d: %v", report.ErrInvalidMetric, metric, i+1, err)
			}
			if present {
				acc[m] += f
			}
		}
	}

	out := table.New(append([]string{spec.IDCol, ColDay}, spec.Metrics...)...)
	for _, key := range order {
		values := []table.Value{table.String(key.id), table.String(key.day)}
		for _, sum := range sums[key] {
			values = append(values, table.Number(sum))
		}
		out.Append(values...)
	}
	return out, nil
}

func ensureDay(src *table.Table, timeCol string) (*table.Table, error) {
	if src.Has(ColDay) {
		return src, nil
	}
	if timeCol == "" {
		timeCol = ColStartTime
	}
	return AttachDay(src, timeCol)
}
