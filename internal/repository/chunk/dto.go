package chunk

import (
	"strconv"

	"github.com/kailas-cloud/docdex/internal/domain"
)

// buildChunkFields converts a domain Chunk into a flat map for HSET.
func buildChunkFields(c *domain.Chunk) map[string]string {
	return map[string]string{
		"id":       c.ID,
		"doc_id":   c.DocumentID,
		"index":    strconv.Itoa(c.Index),
		"content":  c.Content,
		"start":    strconv.Itoa(c.Start),
		"end":      strconv.Itoa(c.End),
		"strategy": c.Strategy,
		"size":     strconv.Itoa(c.Size),
		"overlap":  strconv.Itoa(c.Overlap),
	}
}

// parseChunkFields converts a flat hash map back into a domain Chunk.
func parseChunkFields(m map[string]string) domain.Chunk {
	c := domain.Chunk{
		ID:         m["id"],
		DocumentID: m["doc_id"],
		Content:    m["content"],
		Strategy:   m["strategy"],
	}
	c.Index, _ = strconv.Atoi(m["index"])
	c.Start, _ = strconv.Atoi(m["start"])
	c.End, _ = strconv.Atoi(m["end"])
	c.Size, _ = strconv.Atoi(m["size"])
	c.Overlap, _ = strconv.Atoi(m["overlap"])
	return c
}
