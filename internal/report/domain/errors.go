package report

import (
	"errors"
	"fmt"

	"energy-report/internal/report/domain/table"
)

var (
	// ErrEmptyJobName is returned when a job has no name.
	ErrEmptyJobName = errors.New("report: empty job name")
	// ErrEmptyIDColumn is returned when a job does not declare id_col.
	ErrEmptyIDColumn = errors.New("report: empty id_col")
	// ErrEmptyOutputColumns is returned when a job does not declare output_cols_order.
	ErrEmptyOutputColumns = errors.New("report: empty output_cols_order")
	// ErrDuplicateOutputColumn is returned when output_cols_order names a column twice.
	ErrDuplicateOutputColumn = errors.New("report: duplicate column in output_cols_order")
	// ErrInvalidDateFilter is returned when date_filter cannot be parsed.
	ErrInvalidDateFilter = errors.New("report: invalid date_filter")
	// ErrMissingColumn is returned when a configured column is absent from a source table.
	ErrMissingColumn = table.ErrMissingColumn
	// ErrInvalidTimestamp is returned when a timestamp cell cannot be parsed.
	ErrInvalidTimestamp = errors.New("report: invalid timestamp")
	// ErrInvalidMetric is returned when a metric cell is not numeric.
	ErrInvalidMetric = errors.New("report: invalid metric value")
)

// MissingSourceError reports an input table reference that does not resolve to readable data.
type MissingSourceError struct {
	Key string
	Ref string
	Err error
}

func (e *MissingSourceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("report: source %q (%s) unavailable: %v", e.Key, e.Ref, e.Err)
	}
	return fmt.Sprintf("report: source %q (%s) unavailable", e.Key, e.Ref)
}

func (e *MissingSourceError) Unwrap() error { return e.Err }

// UnknownJobTypeError reports a job type outside the supported technology/granularity set.
type UnknownJobTypeError struct {
	Type string
}

func (e *UnknownJobTypeError) Error() string {
	return fmt.Sprintf("report: unknown job type %q", e.Type)
}
