package ingest

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/cache"
	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/catalog"
	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/embedding"
	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/observability"
	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/retrieval"
)

// SyncConfig holds syncer configuration.
type SyncConfig struct {
	BatchSize int
	Workers   int
	// Reset clears the index before indexing.
	Reset bool
}

// SyncResult summarizes one sync run.
type SyncResult struct {
	Rows     int
	Indexed  int
	Skipped  int
	Duration time.Duration
}

// ProgressFunc is called after each batch is indexed with the number of
// documents indexed so far and the total to index.
type ProgressFunc func(done, total int)

// Syncer embeds catalog rows and writes them to the vector index.
type Syncer struct {
	embedder embedding.Embedder
	adapter  retrieval.VectorAdapter
	notifier cache.Notifier
	logger   *observability.Logger
	config   SyncConfig
}

// NewSyncer creates a Syncer. notifier may be nil.
func NewSyncer(embedder embedding.Embedder, adapter retrieval.VectorAdapter, notifier cache.Notifier, logger *observability.Logger, cfg SyncConfig) *Syncer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Syncer{
		embedder: embedder,
		adapter:  adapter,
		notifier: notifier,
		logger:   logger,
		config:   cfg,
	}
}

// Sync indexes rows. Rows without a product name are skipped, as are
// repeated rows for the same variant detail. Entries are keyed by the
// variant detail, so re-syncing an export updates entries in place.
func (s *Syncer) Sync(ctx context.Context, rows []catalog.CatalogRow, progress ProgressFunc) (*SyncResult, error) {
	start := time.Now()
	log := s.logger.WithContext(ctx).WithOperation("catalog_sync")

	result := &SyncResult{Rows: len(rows)}

	docs := make([]Document, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		if strings.TrimSpace(row.ProductVariantName) == "" {
			result.Skipped++
			continue
		}
		doc := BuildDocument(row)
		if _, dup := seen[doc.SourceKey]; dup {
			result.Skipped++
			continue
		}
		seen[doc.SourceKey] = struct{}{}
		docs = append(docs, doc)
	}

	if s.config.Reset {
		if err := s.adapter.Reset(ctx); err != nil {
			return nil, fmt.Errorf("reset index: %w", err)
		}
	}

	log.Info().
		Int("rows", result.Rows).
		Int("documents", len(docs)).
		Int("skipped", result.Skipped).
		Int("workers", s.config.Workers).
		Msg("Starting catalog sync")

	indexed, err := s.indexDocuments(ctx, docs, progress)
	result.Indexed = indexed
	result.Duration = time.Since(start)
	if err != nil {
		log.Error().Err(err).Int("indexed", indexed).Msg("Catalog sync failed")
		return result, err
	}

	if s.notifier != nil {
		payload := []byte(strconv.Itoa(result.Indexed))
		if err := s.notifier.Publish(ctx, cache.ChannelCatalogSynced, payload); err != nil {
			log.Warn().Err(err).Msg("Failed to publish catalog sync notification")
		}
	}

	log.Info().
		Int("indexed", result.Indexed).
		Int("skipped", result.Skipped).
		Dur("duration", result.Duration).
		Msg("Catalog sync completed")

	return result, nil
}

func (s *Syncer) indexDocuments(ctx context.Context, docs []Document, progress ProgressFunc) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	pool, err := ants.NewPool(s.config.Workers)
	if err != nil {
		return 0, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	batches := splitBatches(docs, s.config.BatchSize)
	errCh := make(chan error, len(batches))
	model := s.embedder.Model()

	var (
		wg         sync.WaitGroup
		indexed    atomic.Int64
		progressMu sync.Mutex
	)

	for _, batch := range batches {
		batch := batch
		wg.Add(1)
		task := func() {
			defer wg.Done()
			if ctx.Err() != nil {
				errCh <- ctx.Err()
				return
			}
			if err := s.indexBatch(ctx, model, batch); err != nil {
				errCh <- err
				return
			}
			done := indexed.Add(int64(len(batch)))
			if progress != nil {
				progressMu.Lock()
				progress(int(done), len(docs))
				progressMu.Unlock()
			}
		}
		if err := pool.Submit(task); err != nil {
			wg.Done()
			errCh <- fmt.Errorf("submit batch: %w", err)
		}
	}

	wg.Wait()
	close(errCh)

	if err := <-errCh; err != nil {
		return int(indexed.Load()), err
	}
	return int(indexed.Load()), nil
}

func (s *Syncer) indexBatch(ctx context.Context, model string, batch []Document) error {
	texts := make([]string, len(batch))
	for i, doc := range batch {
		texts[i] = doc.Text
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed batch: %w", err)
	}
	if len(vectors) != len(batch) {
		return fmt.Errorf("embed batch: got %d vectors for %d documents", len(vectors), len(batch))
	}

	entries := make([]retrieval.VectorEntry, len(batch))
	for i, doc := range batch {
		entries[i] = retrieval.VectorEntry{
			ID:             retrieval.EntryID(doc.SourceKey),
			SourceKey:      doc.SourceKey,
			EmbeddingModel: model,
			Vector:         vectors[i],
			Metadata:       doc.Metadata,
		}
	}

	if err := s.adapter.Insert(ctx, entries); err != nil {
		return fmt.Errorf("insert vectors: %w", err)
	}
	return nil
}

func splitBatches(docs []Document, size int) [][]Document {
	var batches [][]Document
	for i := 0; i < len(docs); i += size {
		end := i + size
		if end > len(docs) {
			end = len(docs)
		}
		batches = append(batches, docs[i:end])
	}
	return batches
}
