package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	segerr "github.com/segmenta-io/segmenta/internal/errors"
)

// variableTable is the fixed table name in the SQLite catalog source.
const variableTable = "variables"

// columnMapping maps catalog schema columns to rawRow fields. Columns not
// listed here are ignored.
var knownColumns = []string{
	"code", "name", "description", "category", "theme",
	"product", "domain", "data_type", "operators",
}

// loadSQLite reads all variable rows from a SQLite catalog database.
// The database is opened read-only; the schema is discovered via
// table_info so optional columns may be absent.
func loadSQLite(ctx context.Context, path string) ([]*rawRow, error) {
	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return nil, segerr.CatalogError("open catalog database", err)
	}
	defer db.Close()

	present, err := tableColumns(ctx, db, variableTable)
	if err != nil {
		return nil, segerr.CatalogError("read catalog schema", err)
	}
	for _, col := range requiredColumns {
		if _, ok := present[col]; !ok {
			return nil, segerr.CatalogError(
				fmt.Sprintf("catalog missing required column %q", col), nil)
		}
	}

	selected := make([]string, 0, len(knownColumns))
	for _, col := range knownColumns {
		if _, ok := present[col]; ok {
			selected = append(selected, col)
		}
	}

	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(selected, ", "), variableTable)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, segerr.CatalogError("query catalog rows", err)
	}
	defer rows.Close()

	var out []*rawRow
	for rows.Next() {
		values := make([]sql.NullString, len(selected))
		dest := make([]any, len(selected))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, segerr.CatalogError("scan catalog row", err)
		}

		r := &rawRow{}
		for i, col := range selected {
			assignColumn(r, col, values[i].String)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, segerr.CatalogError("iterate catalog rows", err)
	}

	return out, nil
}

// tableColumns returns the set of column names for a table.
func tableColumns(ctx context.Context, db *sql.DB, table string) (map[string]struct{}, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := make(map[string]struct{})
	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     sql.NullString
			notnull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return nil, err
		}
		cols[strings.ToLower(name)] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %q not found", table)
	}
	return cols, nil
}

// assignColumn writes a source column value into the schema-mapped row.
func assignColumn(r *rawRow, col, value string) {
	switch col {
	case "code":
		r.code = value
	case "name":
		r.name = value
	case "description":
		r.description = value
	case "category":
		r.category = value
	case "theme":
		r.theme = value
	case "product":
		r.product = value
	case "domain":
		r.domain = value
	case "data_type":
		r.dataType = value
	case "operators":
		r.operators = value
	}
}
