package document

import (
	"strconv"
	"time"

	"github.com/kailas-cloud/docdex/internal/domain"
)

// buildDocFields converts a domain Document into a flat map for HSET.
func buildDocFields(doc *domain.Document) map[string]string {
	m := map[string]string{
		"title":       doc.Title,
		"source_url":  doc.SourceURL,
		"mime_type":   doc.MimeType,
		"status":      string(doc.Status),
		"error":       doc.Error,
		"chunk_count": strconv.Itoa(doc.ChunkCount),
	}
	if !doc.ProcessedAt.IsZero() {
		m["processed_at"] = strconv.FormatInt(doc.ProcessedAt.Unix(), 10)
	}
	return m
}

// parseDocFields converts a flat hash map back into a domain Document.
func parseDocFields(id string, m map[string]string) domain.Document {
	doc := domain.Document{
		ID:        id,
		Title:     m["title"],
		SourceURL: m["source_url"],
		MimeType:  m["mime_type"],
		Status:    domain.Status(m["status"]),
		Error:     m["error"],
	}
	if n, err := strconv.Atoi(m["chunk_count"]); err == nil {
		doc.ChunkCount = n
	}
	if ts, err := strconv.ParseInt(m["processed_at"], 10, 64); err == nil {
		doc.ProcessedAt = time.Unix(ts, 0).UTC()
	}
	return doc
}

func completedFields(chunkCount int) map[string]string {
	return map[string]string{
		"status":       string(domain.StatusCompleted),
		"error":        "",
		"chunk_count":  strconv.Itoa(chunkCount),
		"processed_at": strconv.FormatInt(time.Now().Unix(), 10),
	}
}
