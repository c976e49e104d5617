package retrieval

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(key string, vec []float32, name string) VectorEntry {
	return VectorEntry{
		ID:             EntryID(key),
		SourceKey:      key,
		EmbeddingModel: "test-model",
		Vector:         vec,
		Metadata:       map[string]interface{}{"ProductName": name},
	}
}

func TestMemoryAdapter_SearchOrdersByCosine(t *testing.T) {
	ctx := context.Background()
	a := NewMemoryAdapter(MemoryConfig{})

	require.NoError(t, a.Insert(ctx, []VectorEntry{
		entry("1", []float32{1, 0, 0}, "exact"),
		entry("2", []float32{0.7, 0.7, 0}, "close"),
		entry("3", []float32{0, 0, 1}, "far"),
	}))

	results, err := a.Search(ctx, []float32{2, 0, 0}, 2, VectorFilters{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "exact", results[0].Metadata["ProductName"])
	assert.Equal(t, "close", results[1].Metadata["ProductName"])
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.InDelta(t, 0.0, results[0].Distance, 1e-6)
}

func TestMemoryAdapter_TiesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	a := NewMemoryAdapter(MemoryConfig{})

	var entries []VectorEntry
	for i, name := range []string{"a", "b", "c", "d", "e"} {
		entries = append(entries, entry(string(rune('0'+i)), []float32{1, 1}, name))
	}
	require.NoError(t, a.Insert(ctx, entries))

	results, err := a.Search(ctx, []float32{1, 1}, 10, VectorFilters{})
	require.NoError(t, err)

	var got []string
	for _, r := range results {
		got = append(got, r.Metadata["ProductName"].(string))
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, got)
}

func TestMemoryAdapter_UpsertKeepsPosition(t *testing.T) {
	ctx := context.Background()
	a := NewMemoryAdapter(MemoryConfig{})

	require.NoError(t, a.Insert(ctx, []VectorEntry{entry("1", []float32{1, 0}, "first"), entry("2", []float32{1, 0}, "second")}))
	require.NoError(t, a.Insert(ctx, []VectorEntry{entry("1", []float32{1, 0}, "first-updated")}))

	n, err := a.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	results, err := a.Search(ctx, []float32{1, 0}, 2, VectorFilters{})
	require.NoError(t, err)
	assert.Equal(t, "first-updated", results[0].Metadata["ProductName"])
}

func TestMemoryAdapter_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	a := NewMemoryAdapter(MemoryConfig{})

	require.NoError(t, a.Insert(ctx, []VectorEntry{entry("1", []float32{1, 0, 0}, "x")}))
	err := a.Insert(ctx, []VectorEntry{entry("2", []float32{1, 0}, "y")})
	assert.ErrorIs(t, err, ErrVectorDimensionMismatch)

	_, err = a.Search(ctx, []float32{1, 0}, 1, VectorFilters{})
	assert.ErrorIs(t, err, ErrVectorDimensionMismatch)
}

func TestMemoryAdapter_ConfiguredDimensionIsEnforced(t *testing.T) {
	ctx := context.Background()
	a := NewMemoryAdapter(MemoryConfig{Dimension: 3})

	err := a.Insert(ctx, []VectorEntry{entry("1", []float32{1, 0}, "x")})
	require.ErrorIs(t, err, ErrVectorDimensionMismatch)
	assert.Equal(t, 3, a.Dimension())

	require.NoError(t, a.Insert(ctx, []VectorEntry{entry("1", []float32{1, 0, 0}, "x")}))
	require.NoError(t, a.Reset(ctx))
	require.ErrorIs(t, a.Insert(ctx, []VectorEntry{entry("2", []float32{0, 1}, "y")}), ErrVectorDimensionMismatch)
}

func TestMemoryAdapter_UnconfiguredDimensionFollowsFirstInsertAfterReset(t *testing.T) {
	ctx := context.Background()
	a := NewMemoryAdapter(MemoryConfig{})

	require.NoError(t, a.Insert(ctx, []VectorEntry{entry("1", []float32{1, 0, 0}, "x")}))
	require.NoError(t, a.Reset(ctx))
	require.NoError(t, a.Insert(ctx, []VectorEntry{entry("2", []float32{0, 1}, "y")}))
	assert.Equal(t, 2, a.Dimension())
}

func TestMemoryAdapter_FiltersByEmbeddingModel(t *testing.T) {
	ctx := context.Background()
	a := NewMemoryAdapter(MemoryConfig{})

	other := entry("2", []float32{1, 0}, "other-model")
	other.EmbeddingModel = "old-model"
	require.NoError(t, a.Insert(ctx, []VectorEntry{entry("1", []float32{1, 0}, "current"), other}))

	model := "test-model"
	results, err := a.Search(ctx, []float32{1, 0}, 10, VectorFilters{EmbeddingModel: &model})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "current", results[0].Metadata["ProductName"])
}

func TestMemoryAdapter_DeleteAndReset(t *testing.T) {
	ctx := context.Background()
	a := NewMemoryAdapter(MemoryConfig{})

	require.NoError(t, a.Insert(ctx, []VectorEntry{entry("1", []float32{1, 0}, "a"), entry("2", []float32{0, 1}, "b")}))
	require.NoError(t, a.Delete(ctx, []uuid.UUID{EntryID("1")}))
	n, _ := a.Count(ctx)
	assert.Equal(t, int64(1), n)

	require.NoError(t, a.Reset(ctx))
	n, _ = a.Count(ctx)
	assert.Zero(t, n)

	results, err := a.Search(ctx, []float32{1, 0}, 5, VectorFilters{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSQLiteAdapter_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectors.db")

	a, err := NewSQLiteAdapter(ctx, SQLiteConfig{Path: path})
	require.NoError(t, err)

	first := entry("1", []float32{1, 0, 0}, "Galaxy S24")
	first.Metadata["Price"] = "22990000"
	require.NoError(t, a.Insert(ctx, []VectorEntry{
		first,
		entry("2", []float32{0, 1, 0}, "iPhone 15"),
		entry("3", []float32{0, 0, 1}, "Redmi Note 13"),
	}))
	require.NoError(t, a.Delete(ctx, []uuid.UUID{EntryID("3")}))
	require.ErrorIs(t, a.Insert(ctx, []VectorEntry{entry("4", []float32{1, 0}, "bad")}), ErrVectorDimensionMismatch)
	require.NoError(t, a.Close())

	reopened, err := NewSQLiteAdapter(ctx, SQLiteConfig{Path: path})
	require.NoError(t, err)
	defer reopened.Close()

	n, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	results, err := reopened.Search(ctx, []float32{1, 0.1, 0}, 1, VectorFilters{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Galaxy S24", results[0].Metadata["ProductName"])
	assert.Equal(t, "22990000", results[0].Metadata["Price"])

	require.NoError(t, reopened.Reset(ctx))
	n, _ = reopened.Count(ctx)
	assert.Zero(t, n)
}

func TestSQLiteAdapter_ConfiguredDimensionGuardsEmptyStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectors.db")

	a, err := NewSQLiteAdapter(ctx, SQLiteConfig{Path: path, Dimension: 3})
	require.NoError(t, err)
	require.ErrorIs(t, a.Insert(ctx, []VectorEntry{entry("1", []float32{1, 0}, "x")}), ErrVectorDimensionMismatch)
	require.NoError(t, a.Close())

	reopened, err := NewSQLiteAdapter(ctx, SQLiteConfig{Path: path, Dimension: 3})
	require.NoError(t, err)
	defer reopened.Close()
	n, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLiteAdapter_RequiresPath(t *testing.T) {
	_, err := NewSQLiteAdapter(context.Background(), SQLiteConfig{})
	assert.Error(t, err)
}

func TestVectorCodecRoundTrip(t *testing.T) {
	v := []float32{0.25, -1.5, 3.0e-7}
	assert.Equal(t, v, decodeVector(encodeVector(v)))
}
