// Package monitoring provides embedding model guardrails for the vector index.
package monitoring

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/observability"
)

// ModelCounter reports how many indexed vectors each embedding model produced.
type ModelCounter interface {
	ModelCounts(ctx context.Context) (map[string]int64, error)
}

// EmbeddingGuard detects vectors written by a different embedding model than
// the one currently configured. Searches filter on the current model, so
// stale vectors are invisible until the catalog is re-synced.
type EmbeddingGuard struct {
	logger       *observability.Logger
	counter      ModelCounter
	currentModel string
}

// EmbeddingReport summarizes the index by embedding model.
type EmbeddingReport struct {
	CurrentModel string    `json:"current_model"`
	Total        int64     `json:"total"`
	Current      int64     `json:"current"`
	Stale        int64     `json:"stale"`
	StaleModels  []string  `json:"stale_models,omitempty"`
	CheckedAt    time.Time `json:"checked_at"`
}

// HasStale reports whether any vector was produced by another model.
func (r *EmbeddingReport) HasStale() bool {
	return r.Stale > 0
}

// NewEmbeddingGuard creates a new embedding guard.
func NewEmbeddingGuard(logger *observability.Logger, counter ModelCounter, currentModel string) *EmbeddingGuard {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &EmbeddingGuard{
		logger:       logger,
		counter:      counter,
		currentModel: currentModel,
	}
}

// Check counts current and stale vectors.
func (g *EmbeddingGuard) Check(ctx context.Context) (*EmbeddingReport, error) {
	counts, err := g.counter.ModelCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("count vectors by model: %w", err)
	}

	report := &EmbeddingReport{
		CurrentModel: g.currentModel,
		CheckedAt:    time.Now(),
	}
	for model, n := range counts {
		report.Total += n
		if model == g.currentModel {
			report.Current += n
			continue
		}
		report.Stale += n
		report.StaleModels = append(report.StaleModels, model)
	}
	sort.Strings(report.StaleModels)

	if report.HasStale() {
		g.logger.Warn().
			Str("current_model", g.currentModel).
			Strs("stale_models", report.StaleModels).
			Int64("stale_vectors", report.Stale).
			Msg("Vector index holds embeddings from another model; re-sync with reset")
	} else {
		g.logger.Debug().
			Str("current_model", g.currentModel).
			Int64("vectors", report.Total).
			Msg("Embedding model check passed")
	}

	return report, nil
}
