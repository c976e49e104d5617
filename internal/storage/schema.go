// Package storage reads the relational product catalog and exports it as a flat table.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/lib/pq"           // postgres driver
	_ "github.com/mattn/go-sqlite3" // sqlite driver
)

// Supported catalog drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ErrUnsupportedDriver is returned for drivers other than sqlite and postgres.
var ErrUnsupportedDriver = errors.New("unsupported catalog driver")

// DB represents a database connection interface.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Open connects to the catalog database. A sqlite DSN may be a plain file path.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	var sqlDriver string
	switch driver {
	case DriverSQLite:
		sqlDriver = "sqlite3"
		dsn = strings.TrimPrefix(dsn, "sqlite://")
		dsn = strings.TrimPrefix(dsn, "sqlite:")
	case DriverPostgres:
		sqlDriver = "postgres"
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}

	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s catalog: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s catalog: %w", driver, err)
	}
	return db, nil
}

// DriverFromURL infers the catalog driver from a DATABASE_URL style string.
func DriverFromURL(url string) string {
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return DriverPostgres
	}
	return DriverSQLite
}

// schema is valid for both sqlite and postgres.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS trademarks (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		trademark_id INTEGER REFERENCES trademarks(id)
	)`,
	`CREATE TABLE IF NOT EXISTS usage_categories (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		status TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS products_variants (
		id INTEGER PRIMARY KEY,
		product_id INTEGER NOT NULL REFERENCES products(id),
		usage_category_id INTEGER REFERENCES usage_categories(id),
		name TEXT NOT NULL,
		description TEXT,
		status TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS colors (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS memories (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS product_variant_details (
		id INTEGER PRIMARY KEY,
		product_variant_id INTEGER NOT NULL REFERENCES products_variants(id),
		color_id INTEGER REFERENCES colors(id),
		memory_id INTEGER REFERENCES memories(id),
		price BIGINT,
		quantity INTEGER,
		sale INTEGER,
		status TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS attributes (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS attribute_values (
		id INTEGER PRIMARY KEY,
		product_variant_id INTEGER NOT NULL REFERENCES products_variants(id),
		attribute_id INTEGER NOT NULL REFERENCES attributes(id),
		value TEXT NOT NULL
	)`,
}

// Migrate creates the catalog schema if it does not exist.
func Migrate(ctx context.Context, db DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate catalog schema: %w", err)
		}
	}
	return nil
}
