package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/catalog"
	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/embedding"
	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/observability"
)

// ErrEmbedderNotConfigured is returned when a Retriever has no embedder or index.
var ErrEmbedderNotConfigured = errors.New("embedder not configured")

// Retriever embeds a query and searches the product vector index.
type Retriever struct {
	embedder embedding.Embedder
	adapter  VectorAdapter
	logger   *observability.Logger
}

// NewRetriever creates a Retriever.
func NewRetriever(embedder embedding.Embedder, adapter VectorAdapter, logger *observability.Logger) *Retriever {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Retriever{
		embedder: embedder,
		adapter:  adapter,
		logger:   logger,
	}
}

// SimilaritySearch returns up to k candidates in best-first order. Only
// vectors produced by the current embedding model are compared.
func (r *Retriever) SimilaritySearch(ctx context.Context, query string, k int) ([]catalog.ProductCandidate, error) {
	if r.embedder == nil || r.adapter == nil {
		return nil, ErrEmbedderNotConfigured
	}
	start := time.Now()

	vec, err := r.embedder.EmbedSingle(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	model := r.embedder.Model()
	results, err := r.adapter.Search(ctx, vec, k, VectorFilters{EmbeddingModel: &model})
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	candidates := make([]catalog.ProductCandidate, 0, len(results))
	for _, res := range results {
		c := catalog.CandidateFromMetadata(res.Metadata)
		c.Score = res.Score
		candidates = append(candidates, c)
	}

	r.logger.WithContext(ctx).Debug().
		Int("k", k).
		Int("results", len(candidates)).
		Dur("latency", time.Since(start)).
		Msg("Similarity search")

	return candidates, nil
}
