package ingest

import (
	"context"

	"github.com/kailas-cloud/docdex/internal/chunker"
	"github.com/kailas-cloud/docdex/internal/domain"
)

// Fetcher loads raw document bytes from a source URL or path.
type Fetcher interface {
	Fetch(ctx context.Context, source string) ([]byte, error)
}

// Extractor recovers text from raw document bytes, reporting percent
// progress as strategies complete.
type Extractor interface {
	ExtractWithProgress(ctx context.Context, data []byte, progress func(pct int)) domain.ExtractionResult
}

// Splitter cuts extracted text into offset-carrying pieces.
type Splitter interface {
	ChunkDetailed(text string) []chunker.Piece
	Config() chunker.Config
}

// DocumentRepo defines the storage contract for document records.
type DocumentRepo interface {
	Create(ctx context.Context, doc *domain.Document) error
	Get(ctx context.Context, id string) (domain.Document, error)
	SetStatus(ctx context.Context, id string, status domain.Status, reason string) error
	MarkCompleted(ctx context.Context, id string, chunkCount int) error
	Delete(ctx context.Context, id string) error
}

// ChunkRepo defines the storage contract for chunks.
type ChunkRepo interface {
	PutChunks(ctx context.Context, chunks []domain.Chunk) error
	CountByDocument(ctx context.Context, docID string) (int, error)
	DeleteByDocument(ctx context.Context, docID string) error
}

// VectorStore counts and removes a document's stored embeddings.
type VectorStore interface {
	CountByDocument(ctx context.Context, docID string) (int, error)
	DeleteByDocument(ctx context.Context, docID string) error
}

// Generator embeds and persists a document's chunks, reporting percent
// progress as batches are persisted.
type Generator interface {
	EmbedChunks(ctx context.Context, doc *domain.Document, chunks []domain.Chunk, progress func(pct int)) (int, error)
}
