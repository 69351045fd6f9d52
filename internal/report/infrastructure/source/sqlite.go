package source

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	// registers the "sqlite3" database/sql driver
	_ "github.com/mattn/go-sqlite3"

	"energy-report/internal/report/domain/table"
)

var tableNameRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// loadSQLite reads a whole table of a read-only SQLite database, ref being sqlite://<path>?table=<name>.
func loadSQLite(ctx context.Context, ref string) (*table.Table, error) {
	path, name, err := parseSQLiteRef(ref)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, fmt.Sprintf(`SELECT * FROM "%s"`, name))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	cols := make([]string, len(names))
	for i, n := range names {
		cols[i] = header(n)
	}
	t := table.New(cols...)
	cells := make([]sql.NullString, len(cols))
	dest := make([]any, len(cols))
	for i := range cells {
		dest[i] = &cells[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		values := make([]table.Value, len(cells))
		for i, c := range cells {
			if c.Valid {
				values[i] = table.FromRaw(c.String)
			}
		}
		t.Append(values...)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

func parseSQLiteRef(ref string) (string, string, error) {
	rest := strings.TrimPrefix(ref, schemeSQLite+"://")
	path, query, _ := strings.Cut(rest, "?")
	params, err := url.ParseQuery(query)
	if err != nil {
		return "", "", err
	}
	name := params.Get("table")
	if path == "" || !tableNameRE.MatchString(name) {
		return "", "", fmt.Errorf("invalid sqlite reference %q", ref)
	}
	return path, name, nil
}
