package source

import (
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"energy-report/internal/report/domain/table"
)

const timestampLayout = "2006-01-02 15:04:05"

// builtin number formats that render a date or time
var dateNumFmts = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 18: true, 19: true, 20: true, 21: true, 22: true,
	27: true, 28: true, 29: true, 30: true, 31: true, 32: true, 33: true, 34: true, 35: true, 36: true,
	45: true, 46: true, 47: true,
	50: true, 51: true, 52: true, 53: true, 54: true, 55: true, 56: true, 57: true, 58: true,
}

// ReadXLSX reads the first sheet of a workbook; the first row is the header.
// Date-formatted cells are rendered as "2006-01-02 15:04:05", other cells keep their raw value.
func ReadXLSX(r io.Reader) (*table.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("xlsx: no sheets")
	}
	sheet := sheets[0]
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("xlsx: empty sheet")
	}
	dates := &dateCells{f: f, sheet: sheet, styles: make(map[int]bool)}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		dates.date1904 = *props.Date1904
	}

	cols := make([]string, len(rows[0]))
	for i, name := range rows[0] {
		cols[i] = header(name)
	}
	t := table.New(cols...)
	for r, row := range rows[1:] {
		values := make([]table.Value, len(row))
		for c, cell := range row {
			if cell != "" {
				cell, err = dates.render(c+1, r+2, cell)
				if err != nil {
					return nil, err
				}
			}
			values[c] = table.FromRaw(cell)
		}
		t.Append(values...)
	}
	return t, nil
}

type dateCells struct {
	f        *excelize.File
	sheet    string
	date1904 bool
	styles   map[int]bool
}

// render converts a date serial to text when the cell's style is a date format.
func (d *dateCells) render(col, row int, raw string) (string, error) {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return "", err
	}
	styleID, err := d.f.GetCellStyle(d.sheet, name)
	if err != nil {
		return "", err
	}
	if !d.isDate(styleID) {
		return raw, nil
	}
	serial, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		// text stored in a date-styled cell
		return raw, nil
	}
	ts, err := excelize.ExcelDateToTime(serial, d.date1904)
	if err != nil {
		return "", err
	}
	return ts.Round(time.Second).Format(timestampLayout), nil
}

func (d *dateCells) isDate(styleID int) bool {
	if styleID == 0 {
		return false
	}
	if known, ok := d.styles[styleID]; ok {
		return known
	}
	isDate := false
	if style, err := d.f.GetStyle(styleID); err == nil {
		isDate = dateNumFmts[style.NumFmt]
		if style.CustomNumFmt != nil {
			isDate = isDateFormat(*style.CustomNumFmt)
		}
	}
	d.styles[styleID] = isDate
	return isDate
}

// isDateFormat reports whether a custom number format shows a date or a clock time.
func isDateFormat(format string) bool {
	var plain strings.Builder
	quoted := false
	for i := 0; i < len(format); i++ {
		switch ch := format[i]; {
		case ch == '"':
			quoted = !quoted
		case quoted:
		case ch == '\\':
			i++
		case ch == '[':
			end := strings.IndexByte(format[i:], ']')
			if end < 0 {
				return false
			}
			i += end
		default:
			plain.WriteByte(ch)
		}
	}
	return strings.ContainsAny(strings.ToLower(plain.String()), "ydhs")
}
