package retrieval

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const vectorSchema = `
CREATE TABLE IF NOT EXISTS vector_entries (
	id              TEXT PRIMARY KEY,
	source_key      TEXT NOT NULL,
	embedding_model TEXT NOT NULL,
	dimension       INTEGER NOT NULL,
	vector          BLOB NOT NULL,
	metadata        TEXT NOT NULL,
	seq             INTEGER NOT NULL,
	updated_at      TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_vector_entries_model ON vector_entries(embedding_model);
`

// SQLiteAdapter persists vectors in a SQLite file and serves searches from an
// in-memory index loaded at open. Writes go to both.
type SQLiteAdapter struct {
	db    *sql.DB
	index *MemoryAdapter
}

// SQLiteConfig holds SQLite adapter configuration.
type SQLiteConfig struct {
	Path      string
	Dimension int
}

// NewSQLiteAdapter opens (or creates) the vector store at cfg.Path.
func NewSQLiteAdapter(ctx context.Context, cfg SQLiteConfig) (*SQLiteAdapter, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	dsn := cfg.Path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, vectorSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create vector schema: %w", err)
	}

	a := &SQLiteAdapter{
		db:    db,
		index: NewMemoryAdapter(MemoryConfig{Dimension: cfg.Dimension}),
	}

	if err := a.load(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return a, nil
}

func (a *SQLiteAdapter) load(ctx context.Context) error {
	rows, err := a.db.QueryContext(ctx,
		`SELECT id, source_key, embedding_model, vector, metadata FROM vector_entries ORDER BY seq`)
	if err != nil {
		return fmt.Errorf("load vectors: %w", err)
	}
	defer rows.Close()

	var entries []VectorEntry
	for rows.Next() {
		var (
			id, sourceKey, model, metaJSON string
			blob                           []byte
		)
		if err := rows.Scan(&id, &sourceKey, &model, &blob, &metaJSON); err != nil {
			return fmt.Errorf("scan vector: %w", err)
		}

		parsedID, err := uuid.Parse(id)
		if err != nil {
			return fmt.Errorf("parse vector id %q: %w", id, err)
		}

		var meta map[string]interface{}
		if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
			return fmt.Errorf("decode metadata for %s: %w", id, err)
		}

		entries = append(entries, VectorEntry{
			ID:             parsedID,
			SourceKey:      sourceKey,
			EmbeddingModel: model,
			Vector:         decodeVector(blob),
			Metadata:       meta,
		})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate vectors: %w", err)
	}

	return a.index.Insert(ctx, entries)
}

// ModelCounts delegates to the in-memory index, which mirrors the table.
func (a *SQLiteAdapter) ModelCounts(ctx context.Context) (map[string]int64, error) {
	return a.index.ModelCounts(ctx)
}

// Search delegates to the in-memory index.
func (a *SQLiteAdapter) Search(ctx context.Context, query []float32, k int, filters VectorFilters) ([]VectorResult, error) {
	return a.index.Search(ctx, query, k, filters)
}

// Insert upserts vectors into the store and the in-memory index.
func (a *SQLiteAdapter) Insert(ctx context.Context, vectors []VectorEntry) error {
	if len(vectors) == 0 {
		return nil
	}

	// A bad batch must never reach disk.
	a.index.mu.RLock()
	dim := a.index.requiredDimension()
	a.index.mu.RUnlock()
	for _, v := range vectors {
		if len(v.Vector) == 0 {
			continue
		}
		if dim == 0 {
			dim = len(v.Vector)
		}
		if len(v.Vector) != dim {
			return fmt.Errorf("%w: expected %d, got %d for id %s", ErrVectorDimensionMismatch, dim, len(v.Vector), v.ID)
		}
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vector_entries (id, source_key, embedding_model, dimension, vector, metadata, seq, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, COALESCE((SELECT MAX(seq) FROM vector_entries), 0) + 1, ?)
		ON CONFLICT(id) DO UPDATE SET
			source_key = excluded.source_key,
			embedding_model = excluded.embedding_model,
			dimension = excluded.dimension,
			vector = excluded.vector,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, v := range vectors {
		if len(v.Vector) == 0 {
			continue
		}
		meta, err := json.Marshal(v.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata for %s: %w", v.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			v.ID.String(), v.SourceKey, v.EmbeddingModel, len(v.Vector), encodeVector(v.Vector), string(meta), now,
		); err != nil {
			return fmt.Errorf("insert vector %s: %w", v.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit vectors: %w", err)
	}

	return a.index.Insert(ctx, vectors)
}

// Delete removes vectors from the store and the in-memory index.
func (a *SQLiteAdapter) Delete(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM vector_entries WHERE id = ?`, id.String()); err != nil {
			return fmt.Errorf("delete vector %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}

	return a.index.Delete(ctx, ids)
}

// Reset removes every stored vector.
func (a *SQLiteAdapter) Reset(ctx context.Context) error {
	if _, err := a.db.ExecContext(ctx, `DELETE FROM vector_entries`); err != nil {
		return fmt.Errorf("reset vectors: %w", err)
	}
	return a.index.Reset(ctx)
}

// Count returns the number of vectors in the index.
func (a *SQLiteAdapter) Count(ctx context.Context) (int64, error) {
	return a.index.Count(ctx)
}

// Ping checks the underlying database.
func (a *SQLiteAdapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// Close closes the database.
func (a *SQLiteAdapter) Close() error {
	return a.db.Close()
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v
}

var (
	_ VectorAdapter = (*MemoryAdapter)(nil)
	_ VectorAdapter = (*SQLiteAdapter)(nil)
)
