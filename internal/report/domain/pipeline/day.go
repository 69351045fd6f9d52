package pipeline

import (
	"fmt"
	"strings"
	"time"

	report "energy-report/internal/report/domain"
	"energy-report/internal/report/domain/table"
)

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	"2006/1/2 15:04:05",
	"2006/1/2 15:04",
	report.DayLayout,
	"2006/01/02",
	"2006/1/2",
}

// DayOf returns the calendar day key of a timestamp, in the timestamp's own offset.
func DayOf(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(report.DayLayout), nil
		}
	}
	return "", fmt.Errorf("%w: %q", report.ErrInvalidTimestamp, raw)
}

// AttachDay adds the ColDay column derived from timeCol. Null timestamps yield a Null day.
func AttachDay(src *table.Table, timeCol string) (*table.Table, error) {
	if err := src.Require(timeCol); err != nil {
		return nil, err
	}
	days := make([]table.Value, src.Len())
	for i, row := range src.Rows() {
		ts := row.Get(timeCol)
		if ts.IsNull() {
			continue
		}
		day, err := DayOf(ts.Text())
		if err != nil {
			return nil, fmt.Errorf("column %s row %d: %w", timeCol, i+1, err)
		}
		days[i] = table.String(day)
	}
	return src.WithColumn(ColDay, func(r table.Row) table.Value { return days[r.Index()] }), nil
}

// FilterDay keeps rows whose ColDay equals day.
func FilterDay(src *table.Table, day string) *table.Table {
	return src.Filter(func(r table.Row) bool {
		v := r.Get(ColDay)
		return !v.IsNull() && v.Text() == day
	})
}

// dailySlice projects src onto cols (all columns when cols is empty), then keeps the job's day.
func dailySlice(pc Context, src *table.Table, cols []string) (*table.Table, error) {
	if len(cols) > 0 {
		var err error
		if src, err = src.Select(cols...); err != nil {
			return nil, err
		}
	}
	dated, err := AttachDay(src, ColStartTime)
	if err != nil {
		return nil, err
	}
	return FilterDay(dated, pc.Day()), nil
}

// NormalizeColumn canonicalizes every identifier of col. This is the single entry point at which
// an identifier column is canonicalized; stages downstream compare the values as-is.
func NormalizeColumn(src *table.Table, col string, kind report.IDKind) (*table.Table, error) {
	if err := src.Require(col); err != nil {
		return nil, err
	}
	return src.WithColumn(col, func(r table.Row) table.Value {
		return normalizeValue(r.Get(col), kind)
	}), nil
}

func normalizeValue(v table.Value, kind report.IDKind) table.Value {
	if v.IsNull() {
		return table.Null
	}
	id := report.CanonicalID(v.Text(), kind)
	if id == "" {
		return table.Null
	}
	return table.String(id)
}
