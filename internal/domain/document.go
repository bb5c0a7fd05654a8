package domain

import "time"

// Status is the ingestion lifecycle state of a document.
type Status string

// Document lifecycle states.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Document is a registered source document. Created on ingestion request,
// mutated only by the ingestion pipeline.
type Document struct {
	ID          string
	Title       string
	SourceURL   string
	MimeType    string
	Status      Status
	Error       string
	ChunkCount  int
	ProcessedAt time.Time
}

// Chunk is a bounded substring of a document's extracted text, the atomic
// unit of retrieval. Index establishes document order; offsets point into
// the cleaned extracted text.
type Chunk struct {
	ID         string
	DocumentID string
	Index      int
	Content    string
	Start      int
	End        int
	Strategy   string
	Size       int
	Overlap    int
}

// Embedding is a stored vector for one chunk. A chunk may carry multiple
// embeddings distinguished by (Provider, Model).
type Embedding struct {
	ChunkID    string
	DocumentID string
	Provider   string
	Model      string
	Vector     []float32
	Threshold  float64
	BatchIndex int
	BatchPos   int
}

// ExtractionResult is the ephemeral outcome of one extraction attempt.
// Err wraps the failure sentinel (ErrInvalidFormat, ErrNoTextExtracted,
// ErrExtractionTimeout) so callers can classify with errors.Is.
type ExtractionResult struct {
	Success   bool
	Text      string
	PageCount int
	Err       error
}

// SearchResult is one retrieved chunk with its source document and score.
// Ordering is not stable across equal similarities.
type SearchResult struct {
	DocumentID    string
	DocumentTitle string
	Content       string
	ChunkIndex    int
	Similarity    float64
	DocumentURL   string
}
