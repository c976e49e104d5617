// Package retrieval provides similarity search over the product vector index and
// the filtered-context pipeline built on top of it.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// VectorAdapter defines the interface for vector similarity search.
type VectorAdapter interface {
	// Search finds the k nearest neighbors to the query vector, best first.
	Search(ctx context.Context, query []float32, k int, filters VectorFilters) ([]VectorResult, error)

	// Insert adds or replaces vectors in the index.
	Insert(ctx context.Context, vectors []VectorEntry) error

	// Delete removes vectors from the index.
	Delete(ctx context.Context, ids []uuid.UUID) error

	// Reset removes every vector from the index.
	Reset(ctx context.Context) error

	// Count returns the number of vectors in the index.
	Count(ctx context.Context) (int64, error)

	// ModelCounts returns the number of vectors per embedding model.
	ModelCounts(ctx context.Context) (map[string]int64, error)

	// Close releases resources.
	Close() error
}

// VectorFilters restricts which entries a search considers.
type VectorFilters struct {
	// EmbeddingModel keeps vectors produced by other models out of the comparison.
	EmbeddingModel *string
}

// VectorEntry represents a vector to be indexed.
type VectorEntry struct {
	ID             uuid.UUID
	SourceKey      string // product_variant_detail_id of the catalog row
	EmbeddingModel string
	Vector         []float32
	Metadata       map[string]interface{}
}

// VectorResult represents a search result.
type VectorResult struct {
	ID       uuid.UUID
	Distance float32
	Score    float32 // 1 - distance for cosine
	Metadata map[string]interface{}
}

// ErrVectorDimensionMismatch indicates a dimension mismatch.
var ErrVectorDimensionMismatch = errors.New("vector dimension mismatch")

// EntryID derives a stable vector ID from a catalog row key so re-syncing the
// same row replaces its vector instead of duplicating it.
func EntryID(sourceKey string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("shop-assistant:"+sourceKey))
}

// MemoryAdapter implements VectorAdapter with an in-process cosine index.
type MemoryAdapter struct {
	mu        sync.RWMutex
	dimension int
	// configured is true when MemoryConfig.Dimension pinned the dimension.
	configured bool
	seq        uint64
	vectors    map[uuid.UUID]indexedVector
}

type indexedVector struct {
	entry  VectorEntry
	vector []float32
	seq    uint64
}

// MemoryConfig holds memory adapter configuration.
type MemoryConfig struct {
	Dimension int
}

// NewMemoryAdapter creates a new in-memory adapter. A configured dimension is
// enforced for the adapter's lifetime. Otherwise the first vector inserted into
// an empty index fixes it.
func NewMemoryAdapter(cfg MemoryConfig) *MemoryAdapter {
	return &MemoryAdapter{
		dimension:  cfg.Dimension,
		configured: cfg.Dimension > 0,
		vectors:    make(map[uuid.UUID]indexedVector),
	}
}

// Search finds the k nearest neighbors using cosine similarity. Ties keep
// insertion order so rankings are reproducible.
func (a *MemoryAdapter) Search(ctx context.Context, query []float32, k int, filters VectorFilters) ([]VectorResult, error) {
	if k <= 0 || len(query) == 0 {
		return []VectorResult{}, nil
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.dimension > 0 && len(query) != a.dimension {
		return nil, fmt.Errorf("%w: index has %d, query has %d", ErrVectorDimensionMismatch, a.dimension, len(query))
	}

	q := normalizeVector(query)

	type scored struct {
		id       uuid.UUID
		distance float32
		seq      uint64
		metadata map[string]interface{}
	}

	results := make([]scored, 0, len(a.vectors))
	for id, iv := range a.vectors {
		if !matchesFilters(iv.entry, filters) {
			continue
		}
		results = append(results, scored{
			id:       id,
			distance: cosineDistance(q, iv.vector),
			seq:      iv.seq,
			metadata: iv.entry.Metadata,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].distance != results[j].distance {
			return results[i].distance < results[j].distance
		}
		return results[i].seq < results[j].seq
	})

	if k > len(results) {
		k = len(results)
	}

	output := make([]VectorResult, k)
	for i := 0; i < k; i++ {
		output[i] = VectorResult{
			ID:       results[i].id,
			Distance: results[i].distance,
			Score:    1 - results[i].distance,
			Metadata: results[i].metadata,
		}
	}

	return output, nil
}

// Insert adds vectors to the index. Entries with empty vectors are skipped.
func (a *MemoryAdapter) Insert(ctx context.Context, vectors []VectorEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, v := range vectors {
		if len(v.Vector) == 0 {
			continue
		}

		if a.requiredDimension() == 0 {
			a.dimension = len(v.Vector)
		}
		if len(v.Vector) != a.dimension {
			return fmt.Errorf("%w: expected %d, got %d for id %s",
				ErrVectorDimensionMismatch, a.dimension, len(v.Vector), v.ID)
		}

		seq := a.seq
		if existing, ok := a.vectors[v.ID]; ok {
			seq = existing.seq
		} else {
			a.seq++
		}

		a.vectors[v.ID] = indexedVector{
			entry:  v,
			vector: normalizeVector(v.Vector),
			seq:    seq,
		}
	}

	return nil
}

// Delete removes vectors from the index.
func (a *MemoryAdapter) Delete(ctx context.Context, ids []uuid.UUID) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, id := range ids {
		delete(a.vectors, id)
	}

	return nil
}

// Reset removes every vector.
func (a *MemoryAdapter) Reset(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.vectors = make(map[uuid.UUID]indexedVector)
	a.seq = 0
	return nil
}

// Count returns the number of vectors in the index.
func (a *MemoryAdapter) Count(ctx context.Context) (int64, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return int64(len(a.vectors)), nil
}

// ModelCounts returns the number of vectors per embedding model.
func (a *MemoryAdapter) ModelCounts(ctx context.Context) (map[string]int64, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	counts := make(map[string]int64)
	for _, iv := range a.vectors {
		counts[iv.entry.EmbeddingModel]++
	}
	return counts, nil
}

// requiredDimension is the length every inserted vector must have, or 0 while
// an unconfigured index is empty. Callers hold a.mu.
func (a *MemoryAdapter) requiredDimension() int {
	if a.configured || len(a.vectors) > 0 {
		return a.dimension
	}
	return 0
}

// Dimension returns the index dimension, or 0 before the first insert.
func (a *MemoryAdapter) Dimension() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.dimension
}

// Close releases resources.
func (a *MemoryAdapter) Close() error {
	return nil
}

func matchesFilters(entry VectorEntry, filters VectorFilters) bool {
	if filters.EmbeddingModel != nil && entry.EmbeddingModel != *filters.EmbeddingModel {
		return false
	}
	return true
}

// cosineDistance computes cosine distance between two normalized vectors.
// For normalized vectors: distance = 1 - dot(a, b)
func cosineDistance(a, b []float32) float32 {
	if len(a) != len(b) {
		return 1.0
	}

	var dot float32
	for i := range a {
		dot += a[i] * b[i]
	}

	// Clamp to [-1, 1] range due to floating point errors
	if dot > 1 {
		dot = 1
	} else if dot < -1 {
		dot = -1
	}

	return 1 - dot
}

// normalizeVector returns a unit vector.
func normalizeVector(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)

	normalized := make([]float32, len(v))
	if norm == 0 {
		copy(normalized, v)
		return normalized
	}

	for i, x := range v {
		normalized[i] = float32(float64(x) / norm)
	}

	return normalized
}
