// Package ingest loads the flat catalog export and indexes it for similarity search.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/catalog"
)

// ErrMissingColumn is returned when the CSV lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

var requiredColumns = []string{"product_variant_name"}

// ReadCatalogCSV parses a catalog export. Columns are matched by header name,
// case-insensitively; a UTF-8 BOM on the first header is ignored and optional
// columns may be absent.
func ReadCatalogCSV(r io.Reader) ([]catalog.CatalogRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("read header: empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		columns[strings.ToLower(strings.TrimSpace(h))] = i
	}

	for _, col := range requiredColumns {
		if _, ok := columns[col]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, col)
		}
	}

	var rows []catalog.CatalogRow
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}

		rows = append(rows, catalog.RowFromFields(func(column string) string {
			idx, ok := columns[column]
			if !ok || idx >= len(record) {
				return ""
			}
			return cleanCell(record[idx])
		}))
	}

	return rows, nil
}

// cleanCell trims a cell and treats pandas-style missing markers as empty.
func cleanCell(s string) string {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "nan", "null", "none":
		return ""
	}
	return s
}
