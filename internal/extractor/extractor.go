// Package extractor recovers plain text from PDF byte streams whose internal
// structure is frequently malformed, encrypted, or encoded inconsistently.
// Several independent heuristics each produce a scored candidate; the best
// candidate wins.
package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docdex/internal/domain"
	"github.com/kailas-cloud/docdex/internal/metrics"
)

// DefaultMinLength is the minimum cleaned-text length a winning candidate
// must reach for extraction to count as a success.
const DefaultMinLength = 100

var pdfSignature = []byte("%PDF-")

// strategy is one extraction heuristic. Score is the cleaned-text length
// multiplied by boost.
type strategy struct {
	name  string
	boost float64
	run   func(data []byte) string
}

// Extractor runs all strategies over a document and picks the best result.
type Extractor struct {
	minLength  int
	strategies []strategy
	logger     *zap.Logger
}

// New creates an extractor. minLength <= 0 selects DefaultMinLength.
func New(minLength int, logger *zap.Logger) *Extractor {
	if minLength <= 0 {
		minLength = DefaultMinLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		minLength: minLength,
		logger:    logger,
		strategies: []strategy{
			{name: "text_object", boost: 1.0, run: extractTextObjects},
			{name: "raw_stream", boost: 1.0, run: extractRawStreams},
			{name: "parenthetical", boost: 1.0, run: extractParentheticals},
			// Multi-byte encodings decode cleaner than stream scraping, so
			// the sweep gets a score boost.
			{name: "encoding_sweep", boost: 1.2, run: extractByEncoding},
		},
	}
}

// Extract recovers text from raw PDF bytes. Failures are reported in the
// result, not raised: format mismatch and extraction exhaustion are terminal
// for the document, and retries belong to the caller that supplied the bytes.
// The caller's context deadline bounds the whole run.
func (e *Extractor) Extract(ctx context.Context, data []byte) domain.ExtractionResult {
	return e.ExtractWithProgress(ctx, data, nil)
}

// ExtractWithProgress is Extract with an optional percent-complete callback,
// fired as each strategy finishes. progress may be nil.
func (e *Extractor) ExtractWithProgress(
	ctx context.Context, data []byte, progress func(pct int),
) domain.ExtractionResult {
	if !bytes.HasPrefix(data, pdfSignature) {
		return domain.ExtractionResult{
			Err: fmt.Errorf("%w: missing %%PDF signature", domain.ErrInvalidFormat),
		}
	}

	var bestText string
	var bestScore float64
	var bestStrategy string

	for i, s := range e.strategies {
		if err := ctx.Err(); err != nil {
			return timeoutResult(err)
		}

		raw := s.run(data)
		cleaned := normalizeText(raw)
		if progress != nil {
			progress((i + 1) * 100 / len(e.strategies))
		}
		if cleaned == "" {
			metrics.ExtractionAttemptsTotal.WithLabelValues(s.name, "empty").Inc()
			continue
		}
		metrics.ExtractionAttemptsTotal.WithLabelValues(s.name, "candidate").Inc()

		score := float64(len(cleaned)) * s.boost
		e.logger.Debug("extraction candidate",
			zap.String("strategy", s.name),
			zap.Int("length", len(cleaned)),
			zap.Float64("score", score),
		)
		if score > bestScore {
			bestScore = score
			bestText = cleaned
			bestStrategy = s.name
		}
	}

	if err := ctx.Err(); err != nil {
		return timeoutResult(err)
	}

	if len(bestText) < e.minLength {
		return domain.ExtractionResult{Err: domain.ErrNoTextExtracted}
	}

	metrics.ExtractionAttemptsTotal.WithLabelValues(bestStrategy, "winner").Inc()
	e.logger.Info("text extracted",
		zap.String("strategy", bestStrategy),
		zap.Int("length", len(bestText)),
	)

	return domain.ExtractionResult{
		Success:   true,
		Text:      bestText,
		PageCount: countPages(data),
	}
}

func timeoutResult(err error) domain.ExtractionResult {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ExtractionResult{Err: domain.ErrExtractionTimeout}
	}
	return domain.ExtractionResult{Err: fmt.Errorf("extraction canceled: %w", err)}
}

var pageTypeRegex = regexp.MustCompile(`/Type\s*/Page[\s/>\]]`)

// countPages is best effort: pdfcpu first, object-marker count as fallback.
// Page count is informational only and never fails an extraction.
func countPages(data []byte) int {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if n, err := api.PageCount(bytes.NewReader(data), conf); err == nil && n > 0 {
		return n
	}

	if n := len(pageTypeRegex.FindAll(data, -1)); n > 0 {
		return n
	}
	return 1
}
