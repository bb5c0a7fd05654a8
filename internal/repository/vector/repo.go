// Package vector persists chunk embeddings and serves KNN similarity search
// through the Redis vector index.
package vector

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/docdex/internal/domain"
	"github.com/kailas-cloud/docdex/internal/store/redis"
)

// store is the consumer interface for vectors (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []redis.HashItem) error
	Del(ctx context.Context, keys ...string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	EnsureIndex(ctx context.Context, idx redis.VectorIndex) error
	SearchKNN(ctx context.Context, index string, vector []float32, k int, returnFields []string) ([]redis.SearchEntry, error)
}

// Record is one embedding with the chunk context needed to serve search
// results without extra lookups.
type Record struct {
	domain.Embedding
	DocumentTitle string
	DocumentURL   string
	ChunkIndex    int
	Content       string
}

// Repo implements the vector repository over the Redis vector index.
type Repo struct {
	store      store
	prefix     string
	indexName  string
	dimensions int
}

// New creates a vector repository. dimensions is enforced on every upsert.
func New(s store, prefix string, dimensions int) *Repo {
	return &Repo{
		store:      s,
		prefix:     prefix,
		indexName:  prefix + "vectors",
		dimensions: dimensions,
	}
}

// EnsureIndex creates the HNSW index over embedding hashes if missing.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	return r.store.EnsureIndex(ctx, redis.VectorIndex{
		Name:       r.indexName,
		Prefix:     r.prefix + "emb:",
		Dimensions: r.dimensions,
		M:          16,
	})
}

// Upsert stores embedding records. Every vector must match the configured
// dimensionality; a mismatch rejects the whole batch before any write.
func (r *Repo) Upsert(ctx context.Context, recs []Record) error {
	if len(recs) == 0 {
		return nil
	}

	items := make([]redis.HashItem, len(recs))
	for i, rec := range recs {
		if len(rec.Vector) != r.dimensions {
			return fmt.Errorf("%w: chunk %s has %d dimensions, index expects %d",
				domain.ErrVectorDimMismatch, rec.ChunkID, len(rec.Vector), r.dimensions)
		}
		items[i] = redis.HashItem{
			Key:    r.embKey(rec),
			Fields: buildEmbFields(&rec),
		}
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("upsert embeddings: %w", err)
	}
	return nil
}

var returnFields = []string{"doc_id", "doc_title", "doc_url", "chunk_index", "content"}

// Search runs a KNN query and returns results in descending similarity.
// Threshold filtering belongs to the caller.
func (r *Repo) Search(ctx context.Context, vector []float32, k int) ([]domain.SearchResult, error) {
	entries, err := r.store.SearchKNN(ctx, r.indexName, vector, k, returnFields)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(entries))
	for _, e := range entries {
		res := domain.SearchResult{
			DocumentID:    e.Fields["doc_id"],
			DocumentTitle: e.Fields["doc_title"],
			DocumentURL:   e.Fields["doc_url"],
			Content:       e.Fields["content"],
			Similarity:    e.Score,
		}
		res.ChunkIndex, _ = strconv.Atoi(e.Fields["chunk_index"])
		results = append(results, res)
	}
	return results, nil
}

// SearchWithThreshold runs a KNN query and keeps only results at or above
// the similarity threshold.
func (r *Repo) SearchWithThreshold(
	ctx context.Context, vector []float32, threshold float64, limit int,
) ([]domain.SearchResult, error) {
	results, err := r.Search(ctx, vector, limit)
	if err != nil {
		return nil, err
	}
	kept := results[:0]
	for _, res := range results {
		if res.Similarity >= threshold {
			kept = append(kept, res)
		}
	}
	return kept, nil
}

// CountByDocument returns the number of stored embeddings for a document.
func (r *Repo) CountByDocument(ctx context.Context, docID string) (int, error) {
	keys, err := r.store.Scan(ctx, r.prefix+"emb:"+docID+":*")
	if err != nil {
		return 0, fmt.Errorf("scan embeddings %s: %w", docID, err)
	}
	return len(keys), nil
}

// DeleteByDocument removes all embeddings of a document.
func (r *Repo) DeleteByDocument(ctx context.Context, docID string) error {
	keys, err := r.store.Scan(ctx, r.prefix+"emb:"+docID+":*")
	if err != nil {
		return fmt.Errorf("scan embeddings %s: %w", docID, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.store.Del(ctx, keys...); err != nil {
		return fmt.Errorf("delete embeddings %s: %w", docID, err)
	}
	return nil
}

// embKey is scoped by document so CountByDocument and DeleteByDocument scan
// with a prefix pattern, and unique per (chunk, provider, model) so
// re-embedding under a different model never overwrites an existing row.
func (r *Repo) embKey(rec Record) string {
	return r.prefix + "emb:" + rec.DocumentID + ":" + rec.ChunkID + ":" + rec.Provider + ":" + rec.Model
}
