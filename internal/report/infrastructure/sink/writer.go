// Package sink writes finished reports to disk.
package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"energy-report/internal/report/domain/table"
)

const sheetName = "report"

// FileWriter writes reports as CSV or XLSX files.
type FileWriter struct{}

// NewFileWriter constructs a FileWriter.
func NewFileWriter() *FileWriter { return &FileWriter{} }

// Write stores t at path, creating parent directories. The file appears atomically.
// An empty format is inferred from the path extension and defaults to CSV.
func (w *FileWriter) Write(ctx context.Context, path, format string, t *table.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if path == "" {
		return fmt.Errorf("sink: empty output path")
	}
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	switch format {
	case "xlsx":
		err = WriteXLSX(tmp, t)
	default:
		err = WriteCSV(tmp, t)
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// WriteCSV renders t as UTF-8 CSV with a header row. Null cells are empty.
func WriteCSV(out io.Writer, t *table.Table) error {
	w := csv.NewWriter(out)
	if err := w.Write(t.Columns()); err != nil {
		return err
	}
	for _, row := range t.Rows() {
		values := row.Values()
		record := make([]string, len(values))
		for i, v := range values {
			record[i] = v.Text()
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// WriteXLSX renders t as a single-sheet workbook.
func WriteXLSX(out io.Writer, t *table.Table) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}
	for c, name := range t.Columns() {
		cell, _ := excelize.CoordinatesToCellName(c+1, 1)
		if err := f.SetCellStr(sheetName, cell, name); err != nil {
			return err
		}
	}
	for r, row := range t.Rows() {
		for c, v := range row.Values() {
			if v.IsNull() {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellStr(sheetName, cell, v.Text()); err != nil {
				return err
			}
		}
	}
	_, err := f.WriteTo(out)
	return err
}
