// Package document persists document records as Redis hashes.
package document

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kailas-cloud/docdex/internal/domain"
)

// store is the consumer interface for documents (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Repo implements the document repository over Redis hashes.
type Repo struct {
	store  store
	prefix string
}

// New creates a document repository. prefix is the global key prefix
// (e.g. "docdex:").
func New(s store, prefix string) *Repo {
	return &Repo{store: s, prefix: prefix}
}

// Create registers a document record.
func (r *Repo) Create(ctx context.Context, doc *domain.Document) error {
	if err := r.store.HSet(ctx, r.docKey(doc.ID), buildDocFields(doc)); err != nil {
		return fmt.Errorf("create document %s: %w", doc.ID, err)
	}
	return nil
}

// Get returns a document by ID.
func (r *Repo) Get(ctx context.Context, id string) (domain.Document, error) {
	m, err := r.store.HGetAll(ctx, r.docKey(id))
	if err != nil {
		return domain.Document{}, fmt.Errorf("get document %s: %w", id, err)
	}
	if len(m) == 0 {
		return domain.Document{}, domain.ErrDocumentNotFound
	}
	return parseDocFields(id, m), nil
}

// List returns all registered documents ordered by title.
func (r *Repo) List(ctx context.Context) ([]domain.Document, error) {
	keys, err := r.store.Scan(ctx, r.prefix+"doc:*")
	if err != nil {
		return nil, fmt.Errorf("scan documents: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	maps, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}

	docs := make([]domain.Document, 0, len(maps))
	for i, m := range maps {
		if len(m) == 0 {
			continue
		}
		docs = append(docs, parseDocFields(strings.TrimPrefix(keys[i], r.prefix+"doc:"), m))
	}

	sort.Slice(docs, func(i, j int) bool {
		if docs[i].Title != docs[j].Title {
			return docs[i].Title < docs[j].Title
		}
		return docs[i].ID < docs[j].ID
	})
	return docs, nil
}

// SetStatus transitions a document's lifecycle state. reason is stored for
// failed transitions and cleared otherwise.
func (r *Repo) SetStatus(ctx context.Context, id string, status domain.Status, reason string) error {
	fields := map[string]string{
		"status": string(status),
		"error":  reason,
	}
	if err := r.store.HSet(ctx, r.docKey(id), fields); err != nil {
		return fmt.Errorf("set status %s=%s: %w", id, status, err)
	}
	return nil
}

// MarkCompleted finalizes a successful ingestion.
func (r *Repo) MarkCompleted(ctx context.Context, id string, chunkCount int) error {
	if err := r.store.HSet(ctx, r.docKey(id), completedFields(chunkCount)); err != nil {
		return fmt.Errorf("mark completed %s: %w", id, err)
	}
	return nil
}

// Exists reports whether a document record is present.
func (r *Repo) Exists(ctx context.Context, id string) (bool, error) {
	ok, err := r.store.Exists(ctx, r.docKey(id))
	if err != nil {
		return false, fmt.Errorf("check document %s: %w", id, err)
	}
	return ok, nil
}

// Delete removes a document record.
func (r *Repo) Delete(ctx context.Context, id string) error {
	ok, err := r.store.Exists(ctx, r.docKey(id))
	if err != nil {
		return fmt.Errorf("check document %s: %w", id, err)
	}
	if !ok {
		return domain.ErrDocumentNotFound
	}
	if err := r.store.Del(ctx, r.docKey(id)); err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	return nil
}

func (r *Repo) docKey(id string) string {
	return r.prefix + "doc:" + id
}
