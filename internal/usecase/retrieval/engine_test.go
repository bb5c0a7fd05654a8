package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/docdex/internal/domain"
	"github.com/kailas-cloud/docdex/internal/repository/chunk"
)

type mockEmbedder struct {
	calls int
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.calls++
	return domain.EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}}, nil
}

type mockVectorSearcher struct {
	searchFn   func(threshold float64, limit int) []domain.SearchResult
	thresholds []float64
	calls      int
}

func (m *mockVectorSearcher) SearchWithThreshold(
	_ context.Context, _ []float32, threshold float64, limit int,
) ([]domain.SearchResult, error) {
	m.calls++
	m.thresholds = append(m.thresholds, threshold)
	if m.searchFn != nil {
		return m.searchFn(threshold, limit), nil
	}
	return nil, nil
}

type mockChunkReader struct {
	byDoc    map[string][]domain.Chunk
	searchFn func(words []string, limit int) []chunk.ScoredChunk
	words    []string
}

func (m *mockChunkReader) GetByDocument(_ context.Context, docID string) ([]domain.Chunk, error) {
	return m.byDoc[docID], nil
}

func (m *mockChunkReader) Search(_ context.Context, words []string, limit int) ([]chunk.ScoredChunk, error) {
	m.words = words
	if m.searchFn != nil {
		return m.searchFn(words, limit), nil
	}
	return nil, nil
}

type engineFixture struct {
	embedder *mockEmbedder
	vectors  *mockVectorSearcher
	chunks   *mockChunkReader
	engine   *Engine
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	f := &engineFixture{
		embedder: &mockEmbedder{},
		vectors:  &mockVectorSearcher{},
		chunks:   &mockChunkReader{byDoc: map[string][]domain.Chunk{}},
	}
	f.engine = NewEngine(f.embedder, f.vectors, f.chunks, nil)
	return f
}

func someDocs() []domain.Document {
	return []domain.Document{
		{ID: "doc-1", Title: "Annual Report 2024", ChunkCount: 12},
		{ID: "doc-2", Title: "Security Policy", ChunkCount: 4},
		{ID: "doc-3", Title: "Onboarding Guide", ChunkCount: 7},
	}
}

func TestRetrieve_ListingNeverTouchesVectorStore(t *testing.T) {
	f := newEngineFixture(t)

	contextText, results, err := f.engine.Retrieve(
		context.Background(), "What documents do you have?", someDocs())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.embedder.calls != 0 {
		t.Error("listing query must not embed")
	}
	if f.vectors.calls != 0 {
		t.Error("listing query must not hit the vector index")
	}
	if len(results) != 0 {
		t.Errorf("expected no chunk results, got %d", len(results))
	}
	for _, title := range []string{"Annual Report 2024", "Security Policy", "Onboarding Guide"} {
		if !strings.Contains(contextText, title) {
			t.Errorf("listing context missing %q:\n%s", title, contextText)
		}
	}
	if !strings.Contains(contextText, "12 chunks") {
		t.Errorf("listing context missing chunk counts:\n%s", contextText)
	}
}

func TestRetrieve_TitleMatchSkipsEmbedding(t *testing.T) {
	f := newEngineFixture(t)
	f.chunks.byDoc["doc-1"] = []domain.Chunk{
		{DocumentID: "doc-1", Index: 0, Content: "intro"},
		{DocumentID: "doc-1", Index: 1, Content: "scope"},
		{DocumentID: "doc-1", Index: 2, Content: "findings"},
		{DocumentID: "doc-1", Index: 3, Content: "appendix"},
		{DocumentID: "doc-1", Index: 4, Content: "index"},
	}

	_, results, err := f.engine.Retrieve(
		context.Background(), "Tell me about the annual report", someDocs())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.embedder.calls != 0 {
		t.Error("title short-circuit must not embed the question")
	}
	if f.vectors.calls != 0 {
		t.Error("title short-circuit must not hit the vector index")
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 leading chunks, got %d", len(results))
	}
	for i, r := range results {
		if r.ChunkIndex != i {
			t.Errorf("result %d has chunk index %d, expected document order", i, r.ChunkIndex)
		}
		if r.Similarity != 1.0 {
			t.Errorf("title match similarity = %v, expected 1.0", r.Similarity)
		}
		if r.DocumentTitle != "Annual Report 2024" {
			t.Errorf("result %d from %q, expected the matched document", i, r.DocumentTitle)
		}
	}
}

func TestRetrieve_ThresholdEscalationStopsAtFirstHit(t *testing.T) {
	f := newEngineFixture(t)
	f.vectors.searchFn = func(threshold float64, _ int) []domain.SearchResult {
		if threshold > 0.3 {
			return nil
		}
		return []domain.SearchResult{
			{DocumentID: "doc-9", DocumentTitle: "Q3 Figures", Content: "revenue was 4.2M", ChunkIndex: 7, Similarity: 0.34},
		}
	}

	_, results, err := f.engine.Retrieve(
		context.Background(), "What was the total revenue?", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []float64{0.5, 0.4, 0.3}
	if len(f.vectors.thresholds) != len(want) {
		t.Fatalf("searched thresholds %v, expected %v", f.vectors.thresholds, want)
	}
	for i, th := range want {
		if f.vectors.thresholds[i] != th {
			t.Fatalf("searched thresholds %v, expected %v", f.vectors.thresholds, want)
		}
	}
	if f.embedder.calls != 1 {
		t.Errorf("question embedded %d times, expected once", f.embedder.calls)
	}
	if len(results) != 1 || results[0].DocumentID != "doc-9" {
		t.Errorf("unexpected results: %+v", results)
	}
}

func TestRetrieve_FactualSamplingWeightsDocumentEnd(t *testing.T) {
	f := newEngineFixture(t)
	candidates := make([]domain.SearchResult, 12)
	for i := range candidates {
		candidates[i] = domain.SearchResult{
			DocumentID: "doc-1",
			ChunkIndex: i,
			Content:    "chunk",
			Similarity: 0.6,
		}
	}
	f.vectors.searchFn = func(_ float64, _ int) []domain.SearchResult {
		return candidates
	}

	_, results, err := f.engine.Retrieve(
		context.Background(), "When does the contract expire?", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Factual profile caps a single document at 6 chunks with an end-weighted
	// positional split.
	if len(results) != 6 {
		t.Fatalf("selected %d chunks, expected 6", len(results))
	}
	var fromEnd int
	for _, r := range results {
		if r.ChunkIndex >= 8 {
			fromEnd++
		}
	}
	if fromEnd < 3 {
		t.Errorf("only %d chunks from the final third, expected end-weighted selection", fromEnd)
	}
}

func TestRetrieve_DiversificationCapsPerDocument(t *testing.T) {
	f := newEngineFixture(t)
	var candidates []domain.SearchResult
	for doc, sim := range map[string]float64{"doc-a": 0.9, "doc-b": 0.8, "doc-c": 0.7} {
		for i := 0; i < 10; i++ {
			candidates = append(candidates, domain.SearchResult{
				DocumentID: doc,
				ChunkIndex: i,
				Similarity: sim,
			})
		}
	}
	f.vectors.searchFn = func(_ float64, _ int) []domain.SearchResult {
		return candidates
	}

	// Standard profile: per-doc cap 3, total cap 8.
	_, results, err := f.engine.Retrieve(context.Background(), "tell me something", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(results) != 8 {
		t.Fatalf("selected %d chunks, expected total cap of 8", len(results))
	}
	perDoc := map[string]int{}
	for _, r := range results {
		perDoc[r.DocumentID]++
	}
	for doc, n := range perDoc {
		if n > 3 {
			t.Errorf("document %s contributed %d chunks, cap is 3", doc, n)
		}
	}
	if len(perDoc) < 3 {
		t.Errorf("results cover %d documents, expected all 3", len(perDoc))
	}
}

func TestRetrieve_KeywordFallbackWhenVectorsEmpty(t *testing.T) {
	f := newEngineFixture(t)
	f.chunks.searchFn = func(words []string, _ int) []chunk.ScoredChunk {
		return []chunk.ScoredChunk{
			{Chunk: domain.Chunk{DocumentID: "doc-2", Index: 1, Content: "password rotation policy"}, Hits: 2},
		}
	}

	contextText, results, err := f.engine.Retrieve(
		context.Background(), "penguin password rotation?", someDocs())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.vectors.calls == 0 {
		t.Error("vector search should run before falling back to keywords")
	}
	for _, w := range f.chunks.words {
		if len(w) <= 3 {
			t.Errorf("short word %q leaked into keyword search", w)
		}
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 keyword result, got %d", len(results))
	}
	if results[0].DocumentTitle != "Security Policy" {
		t.Errorf("keyword result title = %q, expected resolution against the registry", results[0].DocumentTitle)
	}
	if !strings.Contains(contextText, "password rotation policy") {
		t.Errorf("context missing matched chunk:\n%s", contextText)
	}
}

func TestRetrieve_NoMatchStillListsDocuments(t *testing.T) {
	f := newEngineFixture(t)

	contextText, results, err := f.engine.Retrieve(
		context.Background(), "quantum flux capacitors?", someDocs())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
	if contextText == "" {
		t.Fatal("no-match context must never be empty")
	}
	if !strings.Contains(contextText, "Onboarding Guide") {
		t.Errorf("no-match context should list available documents:\n%s", contextText)
	}
}

func TestRetrieve_EmbedErrorSurfaces(t *testing.T) {
	f := newEngineFixture(t)
	boom := errors.New("provider down")
	embedder := &failingEmbedder{err: boom}
	engine := NewEngine(embedder, f.vectors, f.chunks, nil)

	_, _, err := engine.Retrieve(context.Background(), "what happened?", nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected embed error to surface, got %v", err)
	}
}

type failingEmbedder struct{ err error }

func (f *failingEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, f.err
}
