// Package ingest drives a document through the fetch, extract, chunk, and
// embed pipeline and tracks its lifecycle state.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docdex/internal/domain"
	"github.com/kailas-cloud/docdex/internal/metrics"
)

// Request describes one document to ingest. Progress, when set, receives
// coarse percent-complete updates (0..100) as pipeline stages finish;
// it is fire-and-forget and may be nil.
type Request struct {
	ID        string
	Title     string
	SourceURL string
	MimeType  string
	Progress  func(pct int)
}

// Result pairs a batch item with its outcome.
type Result struct {
	Document domain.Document
	Err      error
}

// Progress is invoked after each batch item completes.
type Progress func(index int, total int, res Result)

// Service runs the ingestion pipeline.
type Service struct {
	docs              DocumentRepo
	chunks            ChunkRepo
	vectors           VectorStore
	fetcher           Fetcher
	extractor         Extractor
	splitter          Splitter
	generator         Generator
	extractionTimeout time.Duration
	logger            *zap.Logger
}

// New creates an ingestion service.
func New(
	docs DocumentRepo,
	chunks ChunkRepo,
	vectors VectorStore,
	fetcher Fetcher,
	extractor Extractor,
	splitter Splitter,
	generator Generator,
	extractionTimeout time.Duration,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if extractionTimeout <= 0 {
		extractionTimeout = time.Minute
	}
	return &Service{
		docs:              docs,
		chunks:            chunks,
		vectors:           vectors,
		fetcher:           fetcher,
		extractor:         extractor,
		splitter:          splitter,
		generator:         generator,
		extractionTimeout: extractionTimeout,
		logger:            logger,
	}
}

// Process ingests one document. Re-running a completed document whose chunks
// and embeddings are still present is a no-op returning the stored record.
// Pipeline failures mark the document failed with the reason recorded; the
// failed record is returned alongside the error.
func (s *Service) Process(ctx context.Context, req Request) (domain.Document, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	report := func(pct int) {
		if req.Progress != nil {
			req.Progress(pct)
		}
	}

	if doc, done, err := s.alreadyIngested(ctx, req.ID); err != nil {
		return domain.Document{}, err
	} else if done {
		s.logger.Info("document already ingested", zap.String("doc_id", req.ID))
		metrics.IngestDocumentsTotal.WithLabelValues("skipped").Inc()
		report(100)
		return doc, nil
	}

	doc := domain.Document{
		ID:        req.ID,
		Title:     req.Title,
		SourceURL: req.SourceURL,
		MimeType:  req.MimeType,
		Status:    domain.StatusPending,
	}
	if err := s.docs.Create(ctx, &doc); err != nil {
		return domain.Document{}, fmt.Errorf("register document: %w", err)
	}
	if err := s.docs.SetStatus(ctx, doc.ID, domain.StatusProcessing, ""); err != nil {
		return domain.Document{}, fmt.Errorf("mark processing: %w", err)
	}
	doc.Status = domain.StatusProcessing

	data, err := s.fetcher.Fetch(ctx, req.SourceURL)
	if err != nil {
		return s.fail(ctx, doc, fmt.Errorf("fetch source: %w", err))
	}
	report(10)

	extractCtx, cancel := context.WithTimeout(ctx, s.extractionTimeout)
	result := s.extractor.ExtractWithProgress(extractCtx, data, func(pct int) {
		report(10 + pct*30/100)
	})
	cancel()
	if !result.Success {
		return s.fail(ctx, doc, fmt.Errorf("extract text: %w", result.Err))
	}

	pieces := s.splitter.ChunkDetailed(result.Text)
	if len(pieces) == 0 {
		return s.fail(ctx, doc, domain.ErrNoChunks)
	}

	// A re-run may leave stale chunks or vectors behind when the new
	// chunking yields fewer pieces.
	if err := s.chunks.DeleteByDocument(ctx, doc.ID); err != nil {
		return s.fail(ctx, doc, fmt.Errorf("clear stale chunks: %w", err))
	}
	if err := s.vectors.DeleteByDocument(ctx, doc.ID); err != nil {
		return s.fail(ctx, doc, fmt.Errorf("clear stale embeddings: %w", err))
	}

	cfg := s.splitter.Config()
	chunks := make([]domain.Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = domain.Chunk{
			ID:         uuid.NewString(),
			DocumentID: doc.ID,
			Index:      p.Index,
			Content:    p.Content,
			Start:      p.Start,
			End:        p.End,
			Strategy:   string(p.Strategy),
			Size:       cfg.Size,
			Overlap:    cfg.Overlap,
		}
	}
	if err := s.chunks.PutChunks(ctx, chunks); err != nil {
		return s.fail(ctx, doc, fmt.Errorf("store chunks: %w", err))
	}
	report(50)

	embedded, err := s.generator.EmbedChunks(ctx, &doc, chunks, func(pct int) {
		report(50 + pct*45/100)
	})
	if err != nil {
		return s.fail(ctx, doc, fmt.Errorf("embed chunks: %w", err))
	}
	if embedded == 0 {
		return s.fail(ctx, doc, domain.ErrNoEmbeddings)
	}

	if err := s.docs.MarkCompleted(ctx, doc.ID, len(chunks)); err != nil {
		return domain.Document{}, fmt.Errorf("mark completed: %w", err)
	}
	report(100)

	doc.Status = domain.StatusCompleted
	doc.ChunkCount = len(chunks)
	doc.ProcessedAt = time.Now().UTC()

	metrics.IngestDocumentsTotal.WithLabelValues("completed").Inc()
	s.logger.Info("document ingested",
		zap.String("doc_id", doc.ID),
		zap.String("title", doc.Title),
		zap.Int("pages", result.PageCount),
		zap.Int("chunks", len(chunks)),
		zap.Int("embedded", embedded),
	)
	return doc, nil
}

// ProcessBatch ingests documents sequentially with per-item isolation: one
// failed document never stops the rest. progress may be nil.
func (s *Service) ProcessBatch(ctx context.Context, reqs []Request, progress Progress) []Result {
	results := make([]Result, len(reqs))
	for i, req := range reqs {
		doc, err := s.Process(ctx, req)
		results[i] = Result{Document: doc, Err: err}
		if progress != nil {
			progress(i, len(reqs), results[i])
		}
		if ctx.Err() != nil {
			for j := i + 1; j < len(reqs); j++ {
				results[j] = Result{Err: ctx.Err()}
			}
			break
		}
	}
	return results
}

// Delete removes a document and everything derived from it: embeddings first,
// then chunks, then the record, so a partial failure never orphans vectors.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.docs.Get(ctx, id); err != nil {
		return fmt.Errorf("check document: %w", err)
	}

	if err := s.vectors.DeleteByDocument(ctx, id); err != nil {
		return fmt.Errorf("delete embeddings: %w", err)
	}
	if err := s.chunks.DeleteByDocument(ctx, id); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if err := s.docs.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	s.logger.Info("document deleted", zap.String("doc_id", id))
	return nil
}

// alreadyIngested reports whether the document is completed with both its
// chunks and embeddings intact.
func (s *Service) alreadyIngested(ctx context.Context, id string) (domain.Document, bool, error) {
	doc, err := s.docs.Get(ctx, id)
	if errors.Is(err, domain.ErrDocumentNotFound) {
		return domain.Document{}, false, nil
	}
	if err != nil {
		return domain.Document{}, false, fmt.Errorf("check document: %w", err)
	}
	if doc.Status != domain.StatusCompleted {
		return domain.Document{}, false, nil
	}

	nChunks, err := s.chunks.CountByDocument(ctx, id)
	if err != nil {
		return domain.Document{}, false, fmt.Errorf("count chunks: %w", err)
	}
	nVectors, err := s.vectors.CountByDocument(ctx, id)
	if err != nil {
		return domain.Document{}, false, fmt.Errorf("count embeddings: %w", err)
	}

	return doc, nChunks > 0 && nVectors > 0, nil
}

// fail records the terminal failure reason on the document and reports it.
func (s *Service) fail(ctx context.Context, doc domain.Document, cause error) (domain.Document, error) {
	doc.Status = domain.StatusFailed
	doc.Error = cause.Error()

	if err := s.docs.SetStatus(ctx, doc.ID, domain.StatusFailed, doc.Error); err != nil {
		s.logger.Error("failed to record failure",
			zap.String("doc_id", doc.ID),
			zap.Error(err),
		)
	}

	metrics.IngestDocumentsTotal.WithLabelValues("failed").Inc()
	s.logger.Warn("document ingestion failed",
		zap.String("doc_id", doc.ID),
		zap.String("reason", doc.Error),
	)
	return doc, cause
}
