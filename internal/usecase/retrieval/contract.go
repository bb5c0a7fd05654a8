package retrieval

import (
	"context"

	"github.com/kailas-cloud/docdex/internal/domain"
	"github.com/kailas-cloud/docdex/internal/repository/chunk"
)

// Embedder vectorizes the question text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// VectorSearcher runs threshold-bounded similarity search.
type VectorSearcher interface {
	SearchWithThreshold(ctx context.Context, vector []float32, threshold float64, limit int) ([]domain.SearchResult, error)
}

// ChunkReader serves chunks for title short-circuits and keyword fallback.
type ChunkReader interface {
	GetByDocument(ctx context.Context, docID string) ([]domain.Chunk, error)
	Search(ctx context.Context, words []string, limit int) ([]chunk.ScoredChunk, error)
}

// Completer produces the final answer text from a prompt. External black box;
// the engine never depends on which model sits behind it.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
