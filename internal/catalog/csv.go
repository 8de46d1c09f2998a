package catalog

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strings"

	segerr "github.com/segmenta-io/segmenta/internal/errors"
)

// loadCSV reads the delimited-text fallback catalog format: comma-separated
// with a header row. Quoted fields may contain commas and newlines.
func loadCSV(ctx context.Context, path string) ([]*rawRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, segerr.CatalogError("open catalog file", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // tolerate ragged rows; missing cells become empty

	header, err := reader.Read()
	if err != nil {
		return nil, segerr.CatalogError("read catalog header", err)
	}

	colIndex := make(map[string]int, len(header))
	for i, name := range header {
		colIndex[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := colIndex[col]; !ok {
			return nil, segerr.CatalogError("catalog missing required column \""+col+"\"", nil)
		}
	}

	var out []*rawRow
	for i := 0; ; i++ {
		// The file read budget is enforced via context; check between rows.
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, segerr.Wrap(segerr.ErrCodeTimeout, err)
			}
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, segerr.CatalogError("read catalog row", err)
		}

		cell := func(col string) string {
			idx, ok := colIndex[col]
			if !ok || idx >= len(record) {
				return ""
			}
			return record[idx]
		}

		out = append(out, &rawRow{
			code:        cell("code"),
			name:        cell("name"),
			description: cell("description"),
			category:    cell("category"),
			theme:       cell("theme"),
			product:     cell("product"),
			domain:      cell("domain"),
			dataType:    cell("data_type"),
			operators:   cell("operators"),
		})
	}

	return out, nil
}
