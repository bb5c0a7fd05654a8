package retrieval

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docdex/internal/domain"
)

// Reference identifies one source document cited by an answer.
type Reference struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	URL        string `json:"url,omitempty"`
}

// Answer is the composed response for a question.
type Answer struct {
	Text       string      `json:"answer"`
	References []Reference `json:"references"`
}

// Composer turns a retrieved context into a final answer via a completion
// model.
type Composer struct {
	completer Completer
	logger    *zap.Logger
}

// NewComposer creates a composer.
func NewComposer(completer Completer, logger *zap.Logger) *Composer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{completer: completer, logger: logger}
}

// Compose builds the prompt from the retrieved context and asks the completion
// model for the answer. References deduplicate to one entry per document, in
// retrieval order.
func (c *Composer) Compose(
	ctx context.Context, question string, contextText string, results []domain.SearchResult,
) (Answer, error) {
	prompt := buildPrompt(question, contextText)

	text, err := c.completer.Complete(ctx, prompt)
	if err != nil {
		return Answer{}, fmt.Errorf("complete answer: %w", err)
	}

	c.logger.Debug("answer composed",
		zap.Int("context_bytes", len(contextText)),
		zap.Int("sources", len(results)),
	)
	return Answer{
		Text:       strings.TrimSpace(text),
		References: collectReferences(results),
	}, nil
}

func buildPrompt(question string, contextText string) string {
	var b strings.Builder
	b.WriteString("Answer the question using only the context below. ")
	b.WriteString("If the context does not contain the answer, say so.\n\n")
	b.WriteString("Context:\n")
	b.WriteString(contextText)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	return b.String()
}

func collectReferences(results []domain.SearchResult) []Reference {
	seen := make(map[string]bool, len(results))
	var refs []Reference
	for _, r := range results {
		if seen[r.DocumentID] {
			continue
		}
		seen[r.DocumentID] = true
		refs = append(refs, Reference{
			DocumentID: r.DocumentID,
			Title:      r.DocumentTitle,
			URL:        r.DocumentURL,
		})
	}
	return refs
}
