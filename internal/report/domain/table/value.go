package table

import (
	"strconv"
	"strings"
)

// Value is a nullable text cell.
type Value struct {
	text  string
	valid bool
}

// Null is the absent value.
var Null = Value{}

// String returns a non-null cell holding s.
func String(s string) Value {
	return Value{text: s, valid: true}
}

// Number returns a non-null cell holding f in its shortest round-trip form.
func Number(f float64) Value {
	return String(FormatNumber(f))
}

// FromRaw maps an empty source field to Null, as CSV readers treat blanks as missing.
func FromRaw(s string) Value {
	if s == "" {
		return Null
	}
	return String(s)
}

// IsNull reports whether the cell is absent.
func (v Value) IsNull() bool { return !v.valid }

// Text returns the cell text, empty for Null.
func (v Value) Text() string { return v.text }

// Float parses the cell as a number. ok is false for Null; err is set for non-numeric text.
func (v Value) Float() (f float64, ok bool, err error) {
	if !v.valid {
		return 0, false, nil
	}
	s := strings.TrimSpace(v.text)
	if s == "" {
		return 0, false, nil
	}
	f, err = strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, err
	}
	return f, true, nil
}

// FormatNumber renders f without trailing zeros.
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
