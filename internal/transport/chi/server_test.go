package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/kailas-cloud/docdex/internal/domain"
	"github.com/kailas-cloud/docdex/internal/usecase/ingest"
	"github.com/kailas-cloud/docdex/internal/usecase/retrieval"
)

type mockIngestor struct {
	processFn func(ctx context.Context, req ingest.Request) (domain.Document, error)
	batchFn   func(ctx context.Context, reqs []ingest.Request) []ingest.Result
	deleteFn  func(ctx context.Context, id string) error
	deletedID string
}

func (m *mockIngestor) Process(ctx context.Context, req ingest.Request) (domain.Document, error) {
	if m.processFn != nil {
		return m.processFn(ctx, req)
	}
	return domain.Document{ID: "doc-1", Title: req.Title, Status: domain.StatusCompleted, ChunkCount: 3}, nil
}

func (m *mockIngestor) ProcessBatch(
	ctx context.Context, reqs []ingest.Request, _ ingest.Progress,
) []ingest.Result {
	if m.batchFn != nil {
		return m.batchFn(ctx, reqs)
	}
	results := make([]ingest.Result, len(reqs))
	for i := range reqs {
		results[i] = ingest.Result{Document: domain.Document{ID: reqs[i].ID, Status: domain.StatusCompleted}}
	}
	return results
}

func (m *mockIngestor) Delete(ctx context.Context, id string) error {
	m.deletedID = id
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

type mockLister struct {
	docs []domain.Document
	err  error
}

func (m *mockLister) List(_ context.Context) ([]domain.Document, error) {
	return m.docs, m.err
}

type mockRetriever struct {
	contextText string
	results     []domain.SearchResult
	err         error
	question    string
}

func (m *mockRetriever) Retrieve(
	_ context.Context, question string, _ []domain.Document,
) (string, []domain.SearchResult, error) {
	m.question = question
	return m.contextText, m.results, m.err
}

type mockComposer struct {
	answer retrieval.Answer
	err    error
}

func (m *mockComposer) Compose(
	_ context.Context, _, _ string, _ []domain.SearchResult,
) (retrieval.Answer, error) {
	return m.answer, m.err
}

type mockPinger struct{ err error }

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

type serverFixture struct {
	ingestor  *mockIngestor
	lister    *mockLister
	retriever *mockRetriever
	composer  *mockComposer
	pinger    *mockPinger
	router    *chi.Mux
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	f := &serverFixture{
		ingestor:  &mockIngestor{},
		lister:    &mockLister{},
		retriever: &mockRetriever{contextText: "ctx"},
		composer:  &mockComposer{answer: retrieval.Answer{Text: "the answer"}},
		pinger:    &mockPinger{},
	}
	srv := NewServer(f.ingestor, f.lister, f.retriever, f.composer, f.pinger, nil)
	f.router = chi.NewRouter()
	srv.Mount(f.router)
	return f
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestCreateDocument(t *testing.T) {
	f := newServerFixture(t)

	rr := doJSON(t, f.router, "POST", "/documents", documentRequest{
		Title: "Annual Report", SourceURL: "https://example.com/report.pdf",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rr.Code, rr.Body.String())
	}

	var resp documentResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID != "doc-1" || resp.Status != "completed" || resp.ChunkCount != 3 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestCreateDocument_MissingSourceURL(t *testing.T) {
	f := newServerFixture(t)

	rr := doJSON(t, f.router, "POST", "/documents", documentRequest{Title: "No Source"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestCreateDocument_PipelineErrorMapsToStatus(t *testing.T) {
	f := newServerFixture(t)
	f.ingestor.processFn = func(_ context.Context, _ ingest.Request) (domain.Document, error) {
		return domain.Document{}, domain.ErrBlobNotFound
	}

	rr := doJSON(t, f.router, "POST", "/documents", documentRequest{SourceURL: "x"})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rr.Code)
	}

	var errResp errorResponse
	if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if errResp.Code != "blob_not_found" {
		t.Errorf("error code = %q, want blob_not_found", errResp.Code)
	}
}

func TestCreateDocument_ExtractionFailuresMapTo422(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"no text", fmt.Errorf("extract text: %w", domain.ErrNoTextExtracted), "no_text_extracted"},
		{"bad format", fmt.Errorf("extract text: %w", domain.ErrInvalidFormat), "invalid_format"},
		{"timed out", fmt.Errorf("extract text: %w", domain.ErrExtractionTimeout), "extraction_timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServerFixture(t)
			f.ingestor.processFn = func(_ context.Context, _ ingest.Request) (domain.Document, error) {
				return domain.Document{Status: domain.StatusFailed}, tt.err
			}

			rr := doJSON(t, f.router, "POST", "/documents", documentRequest{SourceURL: "x"})
			if rr.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d, want 422: %s", rr.Code, rr.Body.String())
			}

			var errResp errorResponse
			if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if errResp.Code != tt.wantCode {
				t.Errorf("error code = %q, want %q", errResp.Code, tt.wantCode)
			}
		})
	}
}

func TestCreateDocumentsBatch(t *testing.T) {
	f := newServerFixture(t)
	f.ingestor.batchFn = func(_ context.Context, reqs []ingest.Request) []ingest.Result {
		return []ingest.Result{
			{Document: domain.Document{ID: "a", Status: domain.StatusCompleted}},
			{Document: domain.Document{ID: "b", Status: domain.StatusFailed}, Err: errors.New("boom")},
		}
	}

	rr := doJSON(t, f.router, "POST", "/documents/batch", batchRequest{
		Documents: []documentRequest{{SourceURL: "one"}, {SourceURL: "two"}},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}

	var resp batchResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Succeeded != 1 || resp.Failed != 1 {
		t.Errorf("succeeded/failed = %d/%d, want 1/1", resp.Succeeded, resp.Failed)
	}
	if resp.Items[1].Error == "" {
		t.Error("failed item should carry its error")
	}
}

func TestCreateDocumentsBatch_EmptyRejected(t *testing.T) {
	f := newServerFixture(t)

	rr := doJSON(t, f.router, "POST", "/documents/batch", batchRequest{})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestListDocuments(t *testing.T) {
	f := newServerFixture(t)
	f.lister.docs = []domain.Document{
		{ID: "doc-1", Title: "A", Status: domain.StatusCompleted},
		{ID: "doc-2", Title: "B", Status: domain.StatusFailed, Error: "no text"},
	}

	rr := doJSON(t, f.router, "GET", "/documents", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	var resp documentListResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 2 || len(resp.Items) != 2 {
		t.Fatalf("unexpected list: %+v", resp)
	}
	if resp.Items[1].Error != "no text" {
		t.Errorf("failure reason lost in listing: %+v", resp.Items[1])
	}
}

func TestDeleteDocument(t *testing.T) {
	f := newServerFixture(t)

	rr := doJSON(t, f.router, "DELETE", "/documents/doc-1", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rr.Code)
	}
	if f.ingestor.deletedID != "doc-1" {
		t.Errorf("deleted %q, want doc-1", f.ingestor.deletedID)
	}
}

func TestDeleteDocument_NotFound(t *testing.T) {
	f := newServerFixture(t)
	f.ingestor.deleteFn = func(_ context.Context, _ string) error {
		return domain.ErrDocumentNotFound
	}

	rr := doJSON(t, f.router, "DELETE", "/documents/nope", nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestAsk(t *testing.T) {
	f := newServerFixture(t)
	f.retriever.results = []domain.SearchResult{{DocumentID: "doc-1"}}
	f.composer.answer = retrieval.Answer{
		Text:       "42",
		References: []retrieval.Reference{{DocumentID: "doc-1", Title: "Guide"}},
	}

	rr := doJSON(t, f.router, "POST", "/ask", askRequest{Question: "what is the answer?"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}

	var resp askResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Answer != "42" || resp.Sources != 1 {
		t.Errorf("unexpected response: %+v", resp)
	}
	if len(resp.References) != 1 || resp.References[0].Title != "Guide" {
		t.Errorf("references lost: %+v", resp.References)
	}
	if f.retriever.question != "what is the answer?" {
		t.Errorf("question not forwarded: %q", f.retriever.question)
	}
}

func TestAsk_EmptyQuestionRejected(t *testing.T) {
	f := newServerFixture(t)

	rr := doJSON(t, f.router, "POST", "/ask", askRequest{})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestAsk_CompletionFailureMapsTo502(t *testing.T) {
	f := newServerFixture(t)
	f.composer.err = domain.ErrCompletionProviderError

	rr := doJSON(t, f.router, "POST", "/ask", askRequest{Question: "q?"})
	if rr.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rr.Code)
	}
}

func TestHealthz(t *testing.T) {
	f := newServerFixture(t)

	rr := doJSON(t, f.router, "GET", "/healthz", nil)
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}

	f.pinger.err = errors.New("connection refused")
	rr = doJSON(t, f.router, "GET", "/healthz", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 when database is down", rr.Code)
	}
}
