package source

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/simplifiedchinese"

	report "energy-report/internal/report/domain"
	"energy-report/internal/report/domain/pipeline"
	"energy-report/internal/report/domain/table"
)

func column(t *table.Table, name string) []string {
	out := make([]string, 0, t.Len())
	for _, r := range t.Rows() {
		v := r.Get(name)
		if v.IsNull() {
			out = append(out, "<null>")
			continue
		}
		out = append(out, v.Text())
	}
	return out
}

func TestReadCSVUTF8WithBOM(t *testing.T) {
	in := "\xEF\xBB\xBFCGI, Cell_Name ,Energy\n460-00-1,小区一,1.5\n460-00-2,,\n"
	tbl, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{"cgi", "cell_name", "energy"}, tbl.Columns())
	assert.Equal(t, []string{"小区一", "<null>"}, column(tbl, "cell_name"))
	assert.Equal(t, []string{"1.5", "<null>"}, column(tbl, "energy"))
}

func TestReadCSVFallsBackToGBK(t *testing.T) {
	encoded, err := simplifiedchinese.GBK.NewEncoder().String("cgi,city_name\n1,武汉\n")
	require.NoError(t, err)

	tbl, err := ReadCSV(strings.NewReader(encoded))
	require.NoError(t, err)
	assert.Equal(t, []string{"武汉"}, column(tbl, "city_name"))
}

func TestReadCSVEmpty(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	require.Error(t, err)
}

func TestReadXLSX(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetCellStr("Sheet1", "A1", "GNB_ID"))
	require.NoError(t, f.SetCellStr("Sheet1", "B1", "cell_name"))
	require.NoError(t, f.SetCellStr("Sheet1", "A2", "7001"))
	require.NoError(t, f.SetCellStr("Sheet1", "B2", "DU-A-1"))
	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)

	tbl, err := ReadXLSX(&buf)
	require.NoError(t, err)
	assert.Equal(t, []string{"gnb_id", "cell_name"}, tbl.Columns())
	assert.Equal(t, []string{"DU-A-1"}, column(tbl, "cell_name"))
}

func TestReadXLSXDateCells(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetCellStr("Sheet1", "A1", "starttime"))
	require.NoError(t, f.SetCellStr("Sheet1", "B1", "ee_nemeanpower"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", time.Date(2025, 8, 19, 0, 15, 0, 0, time.UTC)))
	require.NoError(t, f.SetCellFloat("Sheet1", "B2", 12.345, -1, 64))
	twoDecimals, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle("Sheet1", "B2", "B2", twoDecimals))
	var buf bytes.Buffer
	_, err = f.WriteTo(&buf)
	require.NoError(t, err)

	tbl, err := ReadXLSX(&buf)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-08-19 00:15:00"}, column(tbl, "starttime"))
	assert.Equal(t, []string{"12.345"}, column(tbl, "ee_nemeanpower"))

	withDay, err := pipeline.AttachDay(tbl, "starttime")
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-08-19"}, column(withDay, pipeline.ColDay))
}

func TestJobSourceMissingFile(t *testing.T) {
	src := NewFactory(nil, zerolog.Nop()).Open(report.JobConfig{
		Name:   "cell_4g",
		Inputs: map[string]string{"pm_cell": filepath.Join(t.TempDir(), "absent.csv")},
	})

	require.True(t, src.Declared("pm_cell"))
	require.False(t, src.Declared("pm_rru"))

	_, err := src.Table(context.Background(), "pm_cell")
	var missing *report.MissingSourceError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "pm_cell", missing.Key)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = src.Table(context.Background(), "pm_rru")
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "pm_rru", missing.Key)
}

func TestJobSourceLocalCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pm_ne.csv")
	require.NoError(t, os.WriteFile(path, []byte("starttime,enbid\n2025-08-19 00:00:00,460-00-42\n"), 0o600))

	src := NewFactory(nil, zerolog.Nop()).Open(report.JobConfig{Inputs: map[string]string{"pm_ne": path}})
	tbl, err := src.Table(context.Background(), "pm_ne")
	require.NoError(t, err)
	assert.Equal(t, []string{"460-00-42"}, column(tbl, "enbid"))

	again, err := src.Table(context.Background(), "pm_ne")
	require.NoError(t, err)
	assert.Same(t, tbl, again)
}

func TestLoadSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cells.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE cell_info (CGI TEXT, cell_name TEXT, city_name TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO cell_info VALUES ('460-00-1', 'Site-1', NULL), ('460-00-2', 'Site-2', 'wuhan')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	tbl, err := NewFactory(nil, zerolog.Nop()).Load(context.Background(), "sqlite://"+path+"?table=cell_info")
	require.NoError(t, err)
	assert.Equal(t, []string{"cgi", "cell_name", "city_name"}, tbl.Columns())
	assert.Equal(t, []string{"<null>", "wuhan"}, column(tbl, "city_name"))
}

func TestParseSQLiteRefRejectsInjection(t *testing.T) {
	_, _, err := parseSQLiteRef(`sqlite://cells.db?table=x";DROP TABLE y`)
	require.Error(t, err)
	_, _, err = parseSQLiteRef("sqlite://cells.db")
	require.Error(t, err)
}

type fakeObjects struct {
	objects map[string]string
	calls   []string
}

func (f *fakeObjects) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	key := *in.Bucket + "/" + *in.Key
	f.calls = append(f.calls, key)
	body, ok := f.objects[key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestLoadS3(t *testing.T) {
	objects := &fakeObjects{objects: map[string]string{
		"pm-bucket/2025/08/pm_rru.csv": "dn,starttime\n\"a,b,c,1\",2025-08-19 00:00:00\n",
	}}
	factory := NewFactory(objects, zerolog.Nop())

	tbl, err := factory.Load(context.Background(), "s3://pm-bucket/2025/08/pm_rru.csv")
	require.NoError(t, err)
	assert.Equal(t, []string{"pm-bucket/2025/08/pm_rru.csv"}, objects.calls)
	assert.Equal(t, 1, tbl.Len())

	_, err = factory.Load(context.Background(), "s3://pm-bucket/absent.csv")
	require.Error(t, err)

	_, err = NewFactory(nil, zerolog.Nop()).Load(context.Background(), "s3://pm-bucket/2025/08/pm_rru.csv")
	require.Error(t, err)
}
