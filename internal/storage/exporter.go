package storage

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/catalog"
	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/observability"
)

// exportQuery yields one row per variant detail. %s is the attribute
// aggregate, which differs between drivers.
const exportQuery = `
	SELECT
		p.id,
		p.name,
		t.name,
		pv.id,
		pv.name,
		pv.status,
		pvd.id,
		pv.name || ' - ' || c.name || ' - ' || m.name,
		pvd.price,
		pvd.quantity,
		pvd.sale,
		c.name,
		m.name,
		(%s)
	FROM products p
	LEFT JOIN trademarks t ON p.trademark_id = t.id
	LEFT JOIN products_variants pv ON pv.product_id = p.id
	LEFT JOIN product_variant_details pvd ON pvd.product_variant_id = pv.id
	LEFT JOIN colors c ON pvd.color_id = c.id
	LEFT JOIN memories m ON pvd.memory_id = m.id
	ORDER BY p.id, pv.id, pvd.id
`

var attributeAggregates = map[string]string{
	DriverSQLite: `SELECT GROUP_CONCAT(a.name || ': ' || av.value, '; ' ORDER BY a.id, av.id)
			FROM attribute_values av
			JOIN attributes a ON av.attribute_id = a.id
			WHERE av.product_variant_id = pv.id`,
	DriverPostgres: `SELECT STRING_AGG(a.name || ': ' || av.value, '; ' ORDER BY a.id, av.id)
			FROM attribute_values av
			JOIN attributes a ON av.attribute_id = a.id
			WHERE av.product_variant_id = pv.id`,
}

// Exporter flattens the relational catalog into CatalogRows.
type Exporter struct {
	db     DB
	query  string
	logger *observability.Logger
}

// NewExporter creates an Exporter for the given driver.
func NewExporter(db DB, driver string, logger *observability.Logger) (*Exporter, error) {
	agg, ok := attributeAggregates[driver]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Exporter{
		db:     db,
		query:  fmt.Sprintf(exportQuery, agg),
		logger: logger,
	}, nil
}

// Rows returns every variant detail row, ordered by product, variant and detail id.
func (e *Exporter) Rows(ctx context.Context) ([]catalog.CatalogRow, error) {
	rows, err := e.db.QueryContext(ctx, e.query)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	defer rows.Close()

	var out []catalog.CatalogRow
	for rows.Next() {
		var (
			productID, variantID, detailID    sql.NullInt64
			price, quantity, sale             sql.NullInt64
			productName, trademark            sql.NullString
			variantName, variantStatus        sql.NullString
			detailName, colorName, memoryName sql.NullString
			attributes                        sql.NullString
		)
		if err := rows.Scan(
			&productID, &productName, &trademark,
			&variantID, &variantName, &variantStatus,
			&detailID, &detailName,
			&price, &quantity, &sale,
			&colorName, &memoryName, &attributes,
		); err != nil {
			return nil, fmt.Errorf("scan catalog row: %w", err)
		}

		out = append(out, catalog.CatalogRow{
			ProductID:                intString(productID),
			ProductName:              productName.String,
			TrademarkName:            trademark.String,
			ProductVariantID:         intString(variantID),
			ProductVariantName:       variantName.String,
			ProductVariantStatus:     variantStatus.String,
			ProductVariantDetailID:   intString(detailID),
			ProductVariantDetailName: detailName.String,
			Price:                    intString(price),
			Quantity:                 intString(quantity),
			Sale:                     intString(sale),
			ColorName:                colorName.String,
			MemoryName:               memoryName.String,
			Attributes:               attributes.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog rows: %w", err)
	}
	return out, nil
}

// Export writes the catalog as CSV to w and returns the number of data rows.
func (e *Exporter) Export(ctx context.Context, w io.Writer) (int, error) {
	start := time.Now()

	rows, err := e.Rows(ctx)
	if err != nil {
		return 0, err
	}
	if err := WriteCatalogCSV(w, rows); err != nil {
		return 0, err
	}

	e.logger.WithContext(ctx).WithOperation("catalog_export").Info().
		Int("rows", len(rows)).
		Dur("duration", time.Since(start)).
		Msg("Catalog exported")

	return len(rows), nil
}

// WriteCatalogCSV writes rows under the standard export header.
func WriteCatalogCSV(w io.Writer, rows []catalog.CatalogRow) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(catalog.CSVHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write(row.Record()); err != nil {
			return fmt.Errorf("write row %s: %w", row.ProductVariantDetailID, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func intString(v sql.NullInt64) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatInt(v.Int64, 10)
}
