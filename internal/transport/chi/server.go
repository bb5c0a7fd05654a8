// Package chi implements the HTTP API: document ingestion, listing, and
// question answering. The transport stays thin; all pipeline and retrieval
// logic lives in the usecases.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docdex/internal/domain"
	"github.com/kailas-cloud/docdex/internal/usecase/ingest"
	"github.com/kailas-cloud/docdex/internal/usecase/retrieval"
)

const maxBatchSize = 50

// Ingestor runs the ingestion pipeline.
type Ingestor interface {
	Process(ctx context.Context, req ingest.Request) (domain.Document, error)
	ProcessBatch(ctx context.Context, reqs []ingest.Request, progress ingest.Progress) []ingest.Result
	Delete(ctx context.Context, id string) error
}

// DocumentLister serves the document registry.
type DocumentLister interface {
	List(ctx context.Context) ([]domain.Document, error)
}

// Retriever resolves a question to a context and supporting chunks.
type Retriever interface {
	Retrieve(ctx context.Context, question string, docs []domain.Document) (string, []domain.SearchResult, error)
}

// Composer produces the final answer from the retrieved context.
type Composer interface {
	Compose(ctx context.Context, question, contextText string, results []domain.SearchResult) (retrieval.Answer, error)
}

// Pinger reports storage liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server implements the HTTP API handlers.
type Server struct {
	ingestor      Ingestor
	documents     DocumentLister
	retriever     Retriever
	composer      Composer
	store         Pinger
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	ingestor Ingestor,
	documents DocumentLister,
	retriever Retriever,
	composer Composer,
	store Pinger,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		ingestor:  ingestor,
		documents: documents,
		retriever: retriever,
		composer:  composer,
		store:     store,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrDocumentNotFound, http.StatusNotFound, "document_not_found"),
		sentinelHandler(domain.ErrBlobNotFound, http.StatusUnprocessableEntity, "blob_not_found"),
		sentinelHandler(domain.ErrBlobFetchTimeout, http.StatusUnprocessableEntity, "blob_fetch_timeout"),
		sentinelHandler(domain.ErrNoTextExtracted, http.StatusUnprocessableEntity, "no_text_extracted"),
		sentinelHandler(domain.ErrInvalidFormat, http.StatusUnprocessableEntity, "invalid_format"),
		sentinelHandler(domain.ErrExtractionTimeout, http.StatusUnprocessableEntity, "extraction_timeout"),
		sentinelHandler(domain.ErrNoChunks, http.StatusUnprocessableEntity, "no_chunks"),
		sentinelHandler(domain.ErrNoEmbeddings, http.StatusUnprocessableEntity, "no_embeddings"),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, "embedding_provider_error"),
		sentinelHandler(domain.ErrCompletionProviderError, http.StatusBadGateway, "completion_provider_error"),
	}
	return s
}

// Mount registers all API routes on the router.
func (s *Server) Mount(r chi.Router) {
	r.Post("/documents", s.createDocument)
	r.Post("/documents/batch", s.createDocumentsBatch)
	r.Get("/documents", s.listDocuments)
	r.Delete("/documents/{id}", s.deleteDocument)
	r.Post("/ask", s.ask)
	r.Get("/healthz", s.healthz)
	r.Get("/metrics", s.metricsHandler)
}

type documentRequest struct {
	ID        string `json:"id,omitempty"`
	Title     string `json:"title"`
	SourceURL string `json:"source_url"`
	MimeType  string `json:"mime_type,omitempty"`
}

type documentResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	SourceURL   string `json:"source_url,omitempty"`
	MimeType    string `json:"mime_type,omitempty"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
	ChunkCount  int    `json:"chunk_count"`
	ProcessedAt string `json:"processed_at,omitempty"`
}

// createDocument handles POST /documents: register and run the full pipeline.
func (s *Server) createDocument(w http.ResponseWriter, r *http.Request) {
	var req documentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}
	if req.SourceURL == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "source_url is required")
		return
	}

	doc, err := s.ingestor.Process(r.Context(), ingest.Request{
		ID:        req.ID,
		Title:     req.Title,
		SourceURL: req.SourceURL,
		MimeType:  req.MimeType,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, documentToResponse(doc))
}

type batchRequest struct {
	Documents []documentRequest `json:"documents"`
}

type batchItemResult struct {
	Document documentResponse `json:"document"`
	Error    string           `json:"error,omitempty"`
}

type batchResponse struct {
	Items     []batchItemResult `json:"items"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
}

// createDocumentsBatch handles POST /documents/batch with per-item isolation.
func (s *Server) createDocumentsBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}
	if len(req.Documents) == 0 || len(req.Documents) > maxBatchSize {
		writeError(w, http.StatusBadRequest, "validation_failed",
			fmt.Sprintf("documents count must be between 1 and %d", maxBatchSize))
		return
	}

	reqs := make([]ingest.Request, len(req.Documents))
	for i, d := range req.Documents {
		reqs[i] = ingest.Request{ID: d.ID, Title: d.Title, SourceURL: d.SourceURL, MimeType: d.MimeType}
	}

	results := s.ingestor.ProcessBatch(r.Context(), reqs, nil)

	resp := batchResponse{Items: make([]batchItemResult, len(results))}
	for i, res := range results {
		resp.Items[i] = batchItemResult{Document: documentToResponse(res.Document)}
		if res.Err != nil {
			resp.Items[i].Error = res.Err.Error()
			resp.Failed++
		} else {
			resp.Succeeded++
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

type documentListResponse struct {
	Items []documentResponse `json:"items"`
	Total int                `json:"total"`
}

// listDocuments handles GET /documents.
func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.documents.List(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp := documentListResponse{Items: make([]documentResponse, len(docs)), Total: len(docs)}
	for i, d := range docs {
		resp.Items[i] = documentToResponse(d)
	}
	writeJSON(w, http.StatusOK, resp)
}

// deleteDocument handles DELETE /documents/{id}: cascade removal of the
// document, its chunks, and its embeddings.
func (s *Server) deleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.ingestor.Delete(r.Context(), id); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Answer     string                `json:"answer"`
	References []retrieval.Reference `json:"references"`
	Sources    int                   `json:"sources"`
}

// ask handles POST /ask: classify, retrieve, compose.
func (s *Server) ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "question is required")
		return
	}

	docs, err := s.documents.List(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	contextText, results, err := s.retriever.Retrieve(r.Context(), req.Question, docs)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	answer, err := s.composer.Compose(r.Context(), req.Question, contextText, results)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	if answer.References == nil {
		answer.References = []retrieval.Reference{}
	}
	writeJSON(w, http.StatusOK, askResponse{
		Answer:     answer.Text,
		References: answer.References,
		Sources:    len(results),
	})
}

// healthz handles GET /healthz. Storage must answer; degraded dependencies
// flip the status to 503.
func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"database": "ok"}
	status := http.StatusOK
	overall := "healthy"

	if err := s.store.Ping(r.Context()); err != nil {
		checks["database"] = "unreachable"
		status = http.StatusServiceUnavailable
		overall = "unhealthy"
		s.logger.Warn("health check failed", zap.Error(err))
	}

	writeJSON(w, status, map[string]any{
		"status": overall,
		"checks": checks,
	})
}

// metricsHandler handles GET /metrics.
func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func documentToResponse(d domain.Document) documentResponse {
	resp := documentResponse{
		ID:         d.ID,
		Title:      d.Title,
		SourceURL:  d.SourceURL,
		MimeType:   d.MimeType,
		Status:     string(d.Status),
		Error:      d.Error,
		ChunkCount: d.ChunkCount,
	}
	if !d.ProcessedAt.IsZero() {
		resp.ProcessedAt = d.ProcessedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrDocumentNotFound,
		domain.ErrBlobNotFound,
		domain.ErrBlobFetchTimeout,
		domain.ErrNoTextExtracted,
		domain.ErrInvalidFormat,
		domain.ErrExtractionTimeout,
		domain.ErrNoChunks,
		domain.ErrNoEmbeddings,
		domain.ErrRateLimited,
		domain.ErrEmbeddingProviderError,
		domain.ErrCompletionProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}
