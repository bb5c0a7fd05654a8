package domain

import "errors"

var (
	// ErrInvalidFormat signals input that is not a recognizable PDF document.
	ErrInvalidFormat = errors.New("invalid document format")
	// ErrNoTextExtracted signals that every extraction strategy scored below threshold.
	ErrNoTextExtracted = errors.New("no text could be extracted")
	// ErrExtractionTimeout signals that extraction exceeded its deadline.
	ErrExtractionTimeout = errors.New("extraction timed out")
	// ErrDocumentNotFound signals a missing document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrNoChunks signals that chunking produced nothing for a document.
	ErrNoChunks = errors.New("no chunks produced")
	// ErrNoEmbeddings signals that no chunk of a document could be embedded.
	ErrNoEmbeddings = errors.New("no embeddings produced")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrCompletionProviderError signals a completion provider failure.
	ErrCompletionProviderError = errors.New("completion provider error")
	// ErrRateLimited signals a provider rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrVectorDimMismatch signals a vector dimension mismatch on upsert.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrBlobNotFound signals a missing or inaccessible source blob.
	ErrBlobNotFound = errors.New("blob not found or access denied")
	// ErrBlobFetchTimeout signals a blob fetch that exceeded its deadline.
	ErrBlobFetchTimeout = errors.New("blob fetch timed out")
)
