package storage

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/catalog"
	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/ingest"
)

var seedStatements = []string{
	`INSERT INTO trademarks (id, name) VALUES (1, 'Samsung'), (2, 'Apple')`,
	`INSERT INTO products (id, name, trademark_id) VALUES (1, 'Galaxy S', 1), (2, 'iPhone', 2), (3, 'Sắp ra mắt', NULL)`,
	`INSERT INTO usage_categories (id, name, status) VALUES (1, 'Flagship', 'ACTIVE')`,
	`INSERT INTO products_variants (id, product_id, usage_category_id, name, status) VALUES
		(10, 1, 1, 'Galaxy S24', 'AVAILABLE'),
		(20, 2, 1, 'iPhone 15', 'OUT_OF_STOCK')`,
	`INSERT INTO colors (id, name) VALUES (1, 'Tím'), (2, 'Đen')`,
	`INSERT INTO memories (id, name) VALUES (1, '8GB'), (2, '6GB')`,
	`INSERT INTO product_variant_details (id, product_variant_id, color_id, memory_id, price, quantity, sale, status) VALUES
		(101, 10, 1, 1, 22990000, 5, 0, 'AVAILABLE'),
		(102, 10, 2, 1, 21990000, 2, 5, 'AVAILABLE'),
		(201, 20, 2, 2, 19990000, 0, 0, 'OUT_OF_STOCK')`,
	`INSERT INTO attributes (id, name) VALUES (1, 'Màn hình'), (2, 'Chip')`,
	`INSERT INTO attribute_values (id, product_variant_id, attribute_id, value) VALUES
		(1, 10, 2, 'Exynos 2400'),
		(2, 10, 1, 'AMOLED 6.2 inch'),
		(3, 20, 2, 'A16 Bionic')`,
}

func seedCatalog(t *testing.T, db *sql.DB) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, Migrate(ctx, db))
	for _, stmt := range seedStatements {
		_, err := db.ExecContext(ctx, stmt)
		require.NoError(t, err, stmt)
	}
}

func assertSeededRows(t *testing.T, rows []catalog.CatalogRow) {
	t.Helper()
	require.Len(t, rows, 4)

	first := rows[0]
	assert.Equal(t, "1", first.ProductID)
	assert.Equal(t, "Samsung", first.TrademarkName)
	assert.Equal(t, "Galaxy S24", first.ProductVariantName)
	assert.Equal(t, "101", first.ProductVariantDetailID)
	assert.Equal(t, "Galaxy S24 - Tím - 8GB", first.ProductVariantDetailName)
	assert.Equal(t, "22990000", first.Price)
	assert.Equal(t, "Tím", first.ColorName)
	assert.Equal(t, "8GB", first.MemoryName)
	assert.Equal(t, "Màn hình: AMOLED 6.2 inch; Chip: Exynos 2400", first.Attributes)

	assert.Equal(t, "5", rows[1].Sale)
	assert.Equal(t, "OUT_OF_STOCK", rows[2].ProductVariantStatus)
	assert.Equal(t, "Chip: A16 Bionic", rows[2].Attributes)

	// A product without variants still appears, with empty variant columns.
	assert.Equal(t, "3", rows[3].ProductID)
	assert.Empty(t, rows[3].ProductVariantName)
	assert.Empty(t, rows[3].Price)
}

func TestExporter_SQLite(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, DriverSQLite, filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	defer db.Close()

	seedCatalog(t, db)

	exporter, err := NewExporter(db, DriverSQLite, nil)
	require.NoError(t, err)

	rows, err := exporter.Rows(ctx)
	require.NoError(t, err)
	assertSeededRows(t, rows)
}

func TestExporter_ExportWritesReadableCSV(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, DriverSQLite, "sqlite::memory:")
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(1)

	seedCatalog(t, db)

	exporter, err := NewExporter(db, DriverSQLite, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := exporter.Export(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	rows, err := ingest.ReadCatalogCSV(&buf)
	require.NoError(t, err)
	assertSeededRows(t, rows)
}

func TestNewExporter_UnsupportedDriver(t *testing.T) {
	_, err := NewExporter(nil, "mssql", nil)
	assert.ErrorIs(t, err, ErrUnsupportedDriver)

	_, err = Open(context.Background(), "mssql", "")
	assert.ErrorIs(t, err, ErrUnsupportedDriver)
}

func TestDriverFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"postgres://u:p@localhost/shop", DriverPostgres},
		{"postgresql://localhost/shop", DriverPostgres},
		{"sqlite:/tmp/catalog.db", DriverSQLite},
		{"/tmp/catalog.db", DriverSQLite},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, DriverFromURL(tt.url))
		})
	}
}

func TestExporter_PostgresIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	if !isDockerAvailable() {
		t.Skip("Docker not available")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("shop_catalog_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate postgres container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://test:test@%s:%s/shop_catalog_test?sslmode=disable", host, port.Port())
	db, err := Open(ctx, DriverFromURL(dsn), dsn)
	require.NoError(t, err)
	defer db.Close()

	seedCatalog(t, db)

	exporter, err := NewExporter(db, DriverPostgres, nil)
	require.NoError(t, err)

	rows, err := exporter.Rows(ctx)
	require.NoError(t, err)
	assertSeededRows(t, rows)
}

func isDockerAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := testcontainers.NewDockerProvider()
	if err != nil {
		return false
	}
	defer provider.Close()

	_, err = provider.Client().Ping(ctx)
	return err == nil
}
