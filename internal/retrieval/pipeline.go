package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/catalog"
	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/observability"
)

// Outcome classifies how a query resolved.
type Outcome string

const (
	// OutcomeOK means at least one candidate survived filtering.
	OutcomeOK Outcome = "ok"
	// OutcomeNoResults means similarity search returned nothing.
	OutcomeNoResults Outcome = "no_results"
	// OutcomeNoMatch means candidates were retrieved but none passed the filter.
	OutcomeNoMatch Outcome = "no_match"
)

// ErrRetrievalFailed wraps failures of the similarity search.
var ErrRetrievalFailed = errors.New("retrieval failed")

// FilterExtractor derives filters from a query. It must not fail; ok is
// false when the filters are a fallback rather than the model's reading of
// the query.
type FilterExtractor interface {
	Extract(ctx context.Context, query string) (spec catalog.FilterSpec, ok bool)
}

// SimilaritySearcher returns ranked candidates for a query.
type SimilaritySearcher interface {
	SimilaritySearch(ctx context.Context, query string, k int) ([]catalog.ProductCandidate, error)
}

// Result is the outcome of one pipeline run.
type Result struct {
	Outcome    Outcome                    `json:"outcome"`
	Context    string                     `json:"context"`
	Filters    catalog.FilterSpec         `json:"filters"`
	Candidates []catalog.ProductCandidate `json:"candidates"`
	Retrieved  int                        `json:"retrieved"`
	Latency    time.Duration              `json:"latency"`

	// FiltersDegraded is set when extraction fell back to the identity filter.
	FiltersDegraded bool `json:"filters_degraded,omitempty"`
}

// PipelineConfig configures a Pipeline.
type PipelineConfig struct {
	TopK int
}

// Pipeline runs extract, retrieve, filter and format for one query.
type Pipeline struct {
	extractor FilterExtractor
	searcher  SimilaritySearcher
	cache     *ContextCache
	logger    *observability.Logger
	config    PipelineConfig
}

// NewPipeline creates a Pipeline. contextCache may be nil.
func NewPipeline(extractor FilterExtractor, searcher SimilaritySearcher, contextCache *ContextCache, logger *observability.Logger, cfg PipelineConfig) *Pipeline {
	if cfg.TopK <= 0 {
		cfg.TopK = 10
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Pipeline{
		extractor: extractor,
		searcher:  searcher,
		cache:     contextCache,
		logger:    logger,
		config:    cfg,
	}
}

// Search runs the pipeline. Filter extraction and similarity search run
// concurrently; filtering waits for both. A similarity search failure is
// returned as an error. Extraction failures never are.
func (p *Pipeline) Search(ctx context.Context, query string) (*Result, error) {
	start := time.Now()
	log := p.logger.WithContext(ctx).WithOperation("search_product_context")

	query = strings.TrimSpace(query)
	if query == "" {
		return &Result{
			Outcome:    OutcomeNoResults,
			Context:    catalog.NoResultsMessage,
			Filters:    catalog.IdentityFilter(),
			Candidates: []catalog.ProductCandidate{},
			Latency:    time.Since(start),
		}, nil
	}

	if p.cache != nil {
		if cached, ok := p.cache.Get(ctx, query, p.config.TopK); ok {
			return cached, nil
		}
	}

	var (
		filters   catalog.FilterSpec
		filtersOK bool
		retrieved []catalog.ProductCandidate
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		filters, filtersOK = p.extractor.Extract(gctx, query)
		return nil
	})
	g.Go(func() error {
		var err error
		retrieved, err = p.searcher.SimilaritySearch(gctx, query, p.config.TopK)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRetrievalFailed, err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Dur("latency", time.Since(start)).Msg("Pipeline failed")
		return nil, err
	}

	result := p.assemble(filters, retrieved)
	result.FiltersDegraded = !filtersOK
	result.Latency = time.Since(start)

	log.Info().
		Str("outcome", string(result.Outcome)).
		Strs("filters", result.Filters.Summary()).
		Int("retrieved", result.Retrieved).
		Int("survivors", len(result.Candidates)).
		Bool("filters_degraded", result.FiltersDegraded).
		Dur("latency", result.Latency).
		Msg("Product context assembled")

	// A degraded result would pin the unfiltered context for the whole TTL.
	if p.cache != nil && !result.FiltersDegraded {
		_ = p.cache.Set(ctx, query, p.config.TopK, result)
	}

	return result, nil
}

// SearchProductContext returns the formatted context block, or one of the
// two fixed messages when nothing was retrieved or nothing matched.
func (p *Pipeline) SearchProductContext(ctx context.Context, query string) (string, error) {
	result, err := p.Search(ctx, query)
	if err != nil {
		return "", err
	}
	return result.Context, nil
}

func (p *Pipeline) assemble(filters catalog.FilterSpec, retrieved []catalog.ProductCandidate) *Result {
	filters = filters.Normalize()
	result := &Result{
		Filters:    filters,
		Retrieved:  len(retrieved),
		Candidates: []catalog.ProductCandidate{},
	}

	if len(retrieved) == 0 {
		result.Outcome = OutcomeNoResults
		result.Context = catalog.NoResultsMessage
		return result
	}

	survivors := catalog.FilterCandidates(retrieved, filters)
	if len(survivors) == 0 {
		result.Outcome = OutcomeNoMatch
		result.Context = catalog.NoMatchMessage
		return result
	}

	result.Outcome = OutcomeOK
	result.Candidates = survivors
	result.Context = catalog.FormatContext(survivors)
	return result
}
