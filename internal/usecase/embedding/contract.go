package embedding

import (
	"context"

	"github.com/kailas-cloud/docdex/internal/domain"
	"github.com/kailas-cloud/docdex/internal/repository/vector"
)

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// VectorWriter persists embedding records.
type VectorWriter interface {
	Upsert(ctx context.Context, recs []vector.Record) error
}
