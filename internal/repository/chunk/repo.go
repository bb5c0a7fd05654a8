// Package chunk persists document chunks as Redis hashes and supports a
// keyword scan used as the retrieval fallback.
package chunk

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/kailas-cloud/docdex/internal/domain"
	"github.com/kailas-cloud/docdex/internal/store/redis"
)

// store is the consumer interface for chunks (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []redis.HashItem) error
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, keys ...string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repo implements the chunk repository over Redis hashes.
type Repo struct {
	store  store
	prefix string
}

// New creates a chunk repository.
func New(s store, prefix string) *Repo {
	return &Repo{store: s, prefix: prefix}
}

// PutChunks stores all chunks of a document in one round-trip.
func (r *Repo) PutChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	items := make([]redis.HashItem, len(chunks))
	for i, c := range chunks {
		items[i] = redis.HashItem{
			Key:    r.chunkKey(c.DocumentID, c.Index),
			Fields: buildChunkFields(&c),
		}
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("put chunks: %w", err)
	}
	return nil
}

// GetByDocument returns a document's chunks in document order.
func (r *Repo) GetByDocument(ctx context.Context, docID string) ([]domain.Chunk, error) {
	keys, err := r.store.Scan(ctx, r.prefix+"chunk:"+docID+":*")
	if err != nil {
		return nil, fmt.Errorf("scan chunks %s: %w", docID, err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	maps, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("load chunks %s: %w", docID, err)
	}

	chunks := make([]domain.Chunk, 0, len(maps))
	for _, m := range maps {
		if len(m) == 0 {
			continue
		}
		chunks = append(chunks, parseChunkFields(m))
	}

	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Index < chunks[j].Index })
	return chunks, nil
}

// CountByDocument returns the number of stored chunks for a document.
func (r *Repo) CountByDocument(ctx context.Context, docID string) (int, error) {
	keys, err := r.store.Scan(ctx, r.prefix+"chunk:"+docID+":*")
	if err != nil {
		return 0, fmt.Errorf("scan chunks %s: %w", docID, err)
	}
	return len(keys), nil
}

// DeleteByDocument removes all chunks of a document.
func (r *Repo) DeleteByDocument(ctx context.Context, docID string) error {
	keys, err := r.store.Scan(ctx, r.prefix+"chunk:"+docID+":*")
	if err != nil {
		return fmt.Errorf("scan chunks %s: %w", docID, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.store.Del(ctx, keys...); err != nil {
		return fmt.Errorf("delete chunks %s: %w", docID, err)
	}
	return nil
}

// ScoredChunk is a keyword-scan hit.
type ScoredChunk struct {
	Chunk domain.Chunk
	Hits  int
}

const scanBatchSize = 100

// Search scans every stored chunk and scores it by the number of query words
// it contains, case-insensitive. Chunks with zero hits are dropped; the rest
// come back ordered by hits, then by document order.
func (r *Repo) Search(ctx context.Context, words []string, limit int) ([]ScoredChunk, error) {
	if len(words) == 0 || limit <= 0 {
		return nil, nil
	}

	keys, err := r.store.Scan(ctx, r.prefix+"chunk:*")
	if err != nil {
		return nil, fmt.Errorf("scan chunks: %w", err)
	}

	lowered := make([]string, len(words))
	for i, w := range words {
		lowered[i] = strings.ToLower(w)
	}

	var hits []ScoredChunk
	for start := 0; start < len(keys); start += scanBatchSize {
		end := min(start+scanBatchSize, len(keys))
		maps, err := r.store.HGetAllMulti(ctx, keys[start:end])
		if err != nil {
			return nil, fmt.Errorf("load chunks: %w", err)
		}
		for _, m := range maps {
			if len(m) == 0 {
				continue
			}
			c := parseChunkFields(m)
			if n := countHits(c.Content, lowered); n > 0 {
				hits = append(hits, ScoredChunk{Chunk: c, Hits: n})
			}
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Hits != hits[j].Hits {
			return hits[i].Hits > hits[j].Hits
		}
		if hits[i].Chunk.DocumentID != hits[j].Chunk.DocumentID {
			return hits[i].Chunk.DocumentID < hits[j].Chunk.DocumentID
		}
		return hits[i].Chunk.Index < hits[j].Chunk.Index
	})

	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func countHits(content string, lowered []string) int {
	lc := strings.ToLower(content)
	n := 0
	for _, w := range lowered {
		if strings.Contains(lc, w) {
			n++
		}
	}
	return n
}

func (r *Repo) chunkKey(docID string, index int) string {
	return r.prefix + "chunk:" + docID + ":" + strconv.Itoa(index)
}
