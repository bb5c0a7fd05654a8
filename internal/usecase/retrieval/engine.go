// Package retrieval answers questions over ingested documents: it classifies
// the query, short-circuits on listing and title matches, escalates similarity
// thresholds, diversifies results across documents, and falls back to keyword
// search before ever returning an empty context.
package retrieval

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docdex/internal/domain"
	"github.com/kailas-cloud/docdex/internal/metrics"
)

// Engine implements the adaptive retrieval flow.
type Engine struct {
	embedder Embedder
	vectors  VectorSearcher
	chunks   ChunkReader
	profiles map[domain.QueryKind]domain.RetrievalProfile
	logger   *zap.Logger
}

// NewEngine creates a retrieval engine with the default profile table.
func NewEngine(embedder Embedder, vectors VectorSearcher, chunks ChunkReader, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		embedder: embedder,
		vectors:  vectors,
		chunks:   chunks,
		profiles: domain.DefaultProfiles(),
		logger:   logger,
	}
}

// Retrieve resolves a question to a context string and the chunks behind it.
// "No results" is never an error: the worst case is an informative context
// listing what is available. Errors are reserved for infrastructure failures.
func (e *Engine) Retrieve(
	ctx context.Context, question string, docs []domain.Document,
) (string, []domain.SearchResult, error) {
	cls := Classify(question)
	profile := domain.ProfileFor(e.profiles, cls)

	if isListingQuery(question) {
		metrics.RetrievalPathTotal.WithLabelValues("listing").Inc()
		return listingContext(docs), nil, nil
	}

	if results, err := e.titleShortCircuit(ctx, question, docs, profile); err != nil {
		return "", nil, err
	} else if len(results) > 0 {
		metrics.RetrievalPathTotal.WithLabelValues("title").Inc()
		return buildContext(results), results, nil
	}

	results, err := e.searchEscalating(ctx, question, profile)
	if err != nil {
		return "", nil, err
	}
	if len(results) > 0 {
		selected := diversify(results, profile)
		metrics.RetrievalPathTotal.WithLabelValues("vector").Inc()
		return buildContext(selected), selected, nil
	}

	results, err = e.keywordFallback(ctx, question, docs, profile)
	if err != nil {
		return "", nil, err
	}
	if len(results) > 0 {
		metrics.RetrievalPathTotal.WithLabelValues("keyword").Inc()
		return buildContext(results), results, nil
	}

	metrics.RetrievalPathTotal.WithLabelValues("none").Inc()
	return noMatchContext(docs), nil, nil
}

// --- Step 2: title short-circuit ---

var titleSplitRegex = regexp.MustCompile(`[\s\-_.]+`)

// titleShortCircuit returns leading chunks of every title-matched document,
// or nil when no title matches. No embedding call happens on this path.
func (e *Engine) titleShortCircuit(
	ctx context.Context, question string, docs []domain.Document, profile domain.RetrievalProfile,
) ([]domain.SearchResult, error) {
	cleaned := cleanQuestion(question)
	qTokens := questionTokens(cleaned)
	if cleaned == "" || len(qTokens) == 0 {
		return nil, nil
	}

	var results []domain.SearchResult
	for _, doc := range docs {
		if !titleMatches(doc.Title, qTokens, cleaned) {
			continue
		}
		chunks, err := e.chunks.GetByDocument(ctx, doc.ID)
		if err != nil {
			return nil, fmt.Errorf("load chunks for %s: %w", doc.ID, err)
		}
		n := min(profile.TitleChunks, len(chunks))
		for _, c := range chunks[:n] {
			results = append(results, domain.SearchResult{
				DocumentID:    doc.ID,
				DocumentTitle: doc.Title,
				DocumentURL:   doc.SourceURL,
				Content:       c.Content,
				ChunkIndex:    c.Index,
				Similarity:    1.0,
			})
		}
		e.logger.Debug("title match",
			zap.String("doc_id", doc.ID),
			zap.String("title", doc.Title),
			zap.Int("chunks", n),
		)
	}
	return results, nil
}

// titleMatches tests token containment, 4-char prefix equality, and full
// cleaned-question substring containment.
func titleMatches(title string, qTokens []string, cleaned string) bool {
	lower := strings.ToLower(title)
	if strings.Contains(lower, cleaned) {
		return true
	}
	for _, tTok := range titleSplitRegex.Split(lower, -1) {
		if len(tTok) < 3 {
			continue
		}
		for _, qTok := range qTokens {
			if strings.Contains(tTok, qTok) || strings.Contains(qTok, tTok) {
				return true
			}
			if len(tTok) >= 4 && len(qTok) >= 4 && tTok[:4] == qTok[:4] {
				return true
			}
		}
	}
	return false
}

// fillerWords are stripped before title matching so "summarize the annual
// report" reduces to the words that could actually name a document.
var fillerWords = map[string]bool{
	"the": true, "this": true, "that": true, "a": true, "an": true, "of": true,
	"in": true, "on": true, "for": true, "and": true, "please": true,
	"give": true, "me": true, "can": true, "you": true, "document": true,
	"file": true, "pdf": true, "about": true, "from": true, "what": true,
	"does": true, "say": true, "tell": true,
}

func cleanQuestion(question string) string {
	q := strings.ToLower(question)
	q = strings.NewReplacer("?", " ", "!", " ", ",", " ", ".", " ", ":", " ").Replace(q)

	var kept []string
	for _, w := range strings.Fields(q) {
		if fillerWords[w] || containsAny(w, summaryKeywords) || containsAny(w, extensiveKeywords) {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

func questionTokens(cleaned string) []string {
	var tokens []string
	for _, w := range strings.Fields(cleaned) {
		if len(w) > 2 {
			tokens = append(tokens, w)
		}
	}
	return tokens
}

// --- Step 3: threshold escalation ---

// searchEscalating walks the profile's threshold ladder from strict to loose
// and stops at the first threshold that yields anything.
func (e *Engine) searchEscalating(
	ctx context.Context, question string, profile domain.RetrievalProfile,
) ([]domain.SearchResult, error) {
	embedded, err := e.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	for _, threshold := range profile.Thresholds {
		results, err := e.vectors.SearchWithThreshold(ctx, embedded.Embedding, threshold, profile.MatchCount)
		if err != nil {
			return nil, fmt.Errorf("similarity search at %.2f: %w", threshold, err)
		}
		if len(results) > 0 {
			e.logger.Debug("threshold matched",
				zap.Float64("threshold", threshold),
				zap.Int("results", len(results)),
			)
			return results, nil
		}
	}
	return nil, nil
}

// --- Step 4: diversification ---

// diversify groups candidates by document, ranks documents by best or average
// similarity, and draws from each up to the per-document cap until the total
// cap fills. No document monopolizes the context.
func diversify(results []domain.SearchResult, profile domain.RetrievalProfile) []domain.SearchResult {
	byDoc := make(map[string][]domain.SearchResult)
	var order []string
	for _, r := range results {
		if _, seen := byDoc[r.DocumentID]; !seen {
			order = append(order, r.DocumentID)
		}
		byDoc[r.DocumentID] = append(byDoc[r.DocumentID], r)
	}

	sort.SliceStable(order, func(i, j int) bool {
		return docScore(byDoc[order[i]], profile.Rank) > docScore(byDoc[order[j]], profile.Rank)
	})

	var selected []domain.SearchResult
	for _, docID := range order {
		if len(selected) >= profile.TotalCap {
			break
		}
		room := min(profile.PerDocCap, profile.TotalCap-len(selected))
		selected = append(selected, pickFromDocument(byDoc[docID], room, profile)...)
	}
	return selected
}

func docScore(chunks []domain.SearchResult, mode domain.RankMode) float64 {
	if len(chunks) == 0 {
		return 0
	}
	if mode == domain.RankAverage {
		sum := 0.0
		for _, c := range chunks {
			sum += c.Similarity
		}
		return sum / float64(len(chunks))
	}
	best := chunks[0].Similarity
	for _, c := range chunks[1:] {
		if c.Similarity > best {
			best = c.Similarity
		}
	}
	return best
}

// pickFromDocument selects up to limit chunks. With positional shares set
// (factual profile) it samples across the beginning, middle, and end of the
// document's chunk-index range instead of taking pure similarity order.
func pickFromDocument(cands []domain.SearchResult, limit int, profile domain.RetrievalProfile) []domain.SearchResult {
	if limit <= 0 {
		return nil
	}
	if len(cands) <= limit {
		return cands
	}
	if profile.EndShare == 0 {
		bySim := make([]domain.SearchResult, len(cands))
		copy(bySim, cands)
		sort.SliceStable(bySim, func(i, j int) bool { return bySim[i].Similarity > bySim[j].Similarity })
		return bySim[:limit]
	}
	return sampleRegions(cands, limit, profile)
}

// sampleRegions splits candidates into index-order thirds and draws the
// configured share from each, end-weighted. Shortfalls in one region are
// backfilled from the leftover pool by similarity.
func sampleRegions(cands []domain.SearchResult, limit int, profile domain.RetrievalProfile) []domain.SearchResult {
	byIndex := make([]domain.SearchResult, len(cands))
	copy(byIndex, cands)
	sort.SliceStable(byIndex, func(i, j int) bool { return byIndex[i].ChunkIndex < byIndex[j].ChunkIndex })

	third := len(byIndex) / 3
	regions := [][]domain.SearchResult{
		byIndex[:third],
		byIndex[third : 2*third],
		byIndex[2*third:],
	}
	wants := []int{
		int(float64(limit) * profile.StartShare),
		int(float64(limit) * profile.MiddleShare),
		0,
	}
	wants[2] = limit - wants[0] - wants[1] // end takes the remainder

	taken := make(map[int]bool, limit)
	var selected []domain.SearchResult
	for ri, region := range regions {
		bySim := make([]domain.SearchResult, len(region))
		copy(bySim, region)
		sort.SliceStable(bySim, func(i, j int) bool { return bySim[i].Similarity > bySim[j].Similarity })
		for i := 0; i < len(bySim) && i < wants[ri]; i++ {
			selected = append(selected, bySim[i])
			taken[bySim[i].ChunkIndex] = true
		}
	}

	if len(selected) < limit {
		rest := make([]domain.SearchResult, 0, len(cands))
		for _, c := range cands {
			if !taken[c.ChunkIndex] {
				rest = append(rest, c)
			}
		}
		sort.SliceStable(rest, func(i, j int) bool { return rest[i].Similarity > rest[j].Similarity })
		for _, c := range rest {
			if len(selected) >= limit {
				break
			}
			selected = append(selected, c)
		}
	}

	sort.SliceStable(selected, func(i, j int) bool { return selected[i].ChunkIndex < selected[j].ChunkIndex })
	return selected
}

// --- Step 5: keyword fallback ---

var stopwords = map[string]bool{
	"the": true, "and": true, "that": true, "this": true, "with": true,
	"from": true, "what": true, "when": true, "where": true, "which": true,
	"have": true, "does": true, "about": true, "were": true, "been": true,
	"will": true, "your": true, "their": true, "them": true, "than": true,
	"som": true, "och": true, "det": true, "den": true, "för": true,
	"vad": true, "när": true, "var": true, "hur": true,
}

func (e *Engine) keywordFallback(
	ctx context.Context, question string, docs []domain.Document, profile domain.RetrievalProfile,
) ([]domain.SearchResult, error) {
	words := keywordTerms(question)
	if len(words) == 0 {
		return nil, nil
	}

	hits, err := e.chunks.Search(ctx, words, profile.TotalCap)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	titles := make(map[string]domain.Document, len(docs))
	for _, d := range docs {
		titles[d.ID] = d
	}

	results := make([]domain.SearchResult, 0, len(hits))
	for _, h := range hits {
		doc := titles[h.Chunk.DocumentID]
		results = append(results, domain.SearchResult{
			DocumentID:    h.Chunk.DocumentID,
			DocumentTitle: doc.Title,
			DocumentURL:   doc.SourceURL,
			Content:       h.Chunk.Content,
			ChunkIndex:    h.Chunk.Index,
		})
	}
	return results, nil
}

// keywordTerms keeps words longer than 3 characters that are not stopwords.
func keywordTerms(question string) []string {
	q := strings.ToLower(question)
	q = strings.NewReplacer("?", " ", "!", " ", ",", " ", ".", " ").Replace(q)

	var words []string
	for _, w := range strings.Fields(q) {
		if len(w) > 3 && !stopwords[w] {
			words = append(words, w)
		}
	}
	return words
}

// --- Context rendering ---

func listingContext(docs []domain.Document) string {
	var b strings.Builder
	b.WriteString("Available documents:\n")
	for i, d := range docs {
		fmt.Fprintf(&b, "%d. %s (%d chunks)\n", i+1, d.Title, d.ChunkCount)
	}
	if len(docs) == 0 {
		b.WriteString("(none)\n")
	}
	return b.String()
}

func noMatchContext(docs []domain.Document) string {
	var b strings.Builder
	b.WriteString("No content matched the question. The following documents are available:\n")
	for i, d := range docs {
		fmt.Fprintf(&b, "%d. %s (%d chunks)\n", i+1, d.Title, d.ChunkCount)
	}
	if len(docs) == 0 {
		b.WriteString("(none)\n")
	}
	return b.String()
}

func buildContext(results []domain.SearchResult) string {
	var b strings.Builder
	for _, r := range results {
		fmt.Fprintf(&b, "[%s, section %d]\n%s\n\n", r.DocumentTitle, r.ChunkIndex+1, r.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}
