// Package embedding turns chunked documents into persisted vectors in rate
// paced batches.
package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/docdex/internal/domain"
	"github.com/kailas-cloud/docdex/internal/repository/vector"
)

// Config holds generator settings. Validated eagerly at construction so a
// misconfigured provider fails at startup, not on the first document.
type Config struct {
	APIKey     string
	Provider   string
	Model      string
	BatchSize  int
	BatchDelay time.Duration
	// Threshold is the similarity cutoff the deployment retrieves with,
	// stamped onto every stored embedding.
	Threshold float64
}

func (c Config) validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("embedding API key is required")
	}
	if c.Model == "" {
		return fmt.Errorf("embedding model is required")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	return nil
}

// Generator embeds chunks batch by batch with per-chunk failure isolation:
// one failed chunk never discards the work already done for its batch.
type Generator struct {
	embedder  Embedder
	vectors   VectorWriter
	limiter   *rate.Limiter
	batchSize int
	provider  string
	model     string
	threshold float64
	logger    *zap.Logger
}

// New creates a generator. The rate limiter paces batch starts, not
// individual chunks.
func New(cfg Config, embedder Embedder, vectors VectorWriter, logger *zap.Logger) (*Generator, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid embedding config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.BatchDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.BatchDelay), 1)
	}

	return &Generator{
		embedder:  embedder,
		vectors:   vectors,
		limiter:   limiter,
		batchSize: cfg.BatchSize,
		provider:  cfg.Provider,
		model:     cfg.Model,
		threshold: cfg.Threshold,
		logger:    logger,
	}, nil
}

// EmbedChunks embeds every chunk of a document and persists each batch as it
// completes. Blank chunks are skipped, failed chunks are logged and skipped.
// Persistence is per batch, not per item: cancellation mid-batch drops the
// successes already embedded for that batch. progress, when non-nil, receives
// the percent of chunks processed after each persisted batch.
// Returns the number of chunks successfully embedded and persisted; only a
// storage failure or cancellation aborts the run.
func (g *Generator) EmbedChunks(
	ctx context.Context, doc *domain.Document, chunks []domain.Chunk, progress func(pct int),
) (int, error) {
	embedded := 0

	for batchStart := 0; batchStart < len(chunks); batchStart += g.batchSize {
		batchIndex := batchStart / g.batchSize
		if batchStart > 0 {
			if err := g.limiter.Wait(ctx); err != nil {
				return embedded, fmt.Errorf("batch pacing: %w", err)
			}
		}

		batchEnd := min(batchStart+g.batchSize, len(chunks))
		recs := make([]vector.Record, 0, batchEnd-batchStart)

		for _, c := range chunks[batchStart:batchEnd] {
			if strings.TrimSpace(c.Content) == "" {
				g.logger.Warn("skipping blank chunk",
					zap.String("doc_id", doc.ID),
					zap.Int("chunk_index", c.Index),
				)
				continue
			}

			result, err := g.embedder.Embed(ctx, c.Content)
			if err != nil {
				if ctx.Err() != nil {
					return embedded, fmt.Errorf("embedding canceled at chunk %d: %w", c.Index, ctx.Err())
				}
				g.logger.Warn("chunk embedding failed",
					zap.String("doc_id", doc.ID),
					zap.Int("chunk_index", c.Index),
					zap.Error(err),
				)
				continue
			}

			recs = append(recs, vector.Record{
				Embedding: domain.Embedding{
					ChunkID:    c.ID,
					DocumentID: doc.ID,
					Provider:   g.provider,
					Model:      g.model,
					Vector:     result.Embedding,
					Threshold:  g.threshold,
					BatchIndex: batchIndex,
					BatchPos:   len(recs),
				},
				DocumentTitle: doc.Title,
				DocumentURL:   doc.SourceURL,
				ChunkIndex:    c.Index,
				Content:       c.Content,
			})
		}

		if err := g.vectors.Upsert(ctx, recs); err != nil {
			return embedded, fmt.Errorf("persist batch at chunk %d: %w", batchStart, err)
		}
		embedded += len(recs)
		if progress != nil {
			progress(batchEnd * 100 / len(chunks))
		}
	}

	g.logger.Info("document embedded",
		zap.String("doc_id", doc.ID),
		zap.Int("chunks", len(chunks)),
		zap.Int("embedded", embedded),
	)
	return embedded, nil
}
