// Package chunker splits extracted text into retrievable segments using a
// configurable strategy.
package chunker

import (
	"fmt"
	"regexp"
	"strings"
)

// Strategy selects the splitting algorithm.
type Strategy string

// Chunking strategies.
const (
	StrategyFixedSize Strategy = "fixed_size"
	StrategySentence  Strategy = "sentence"
	StrategyParagraph Strategy = "paragraph"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultSize         = 1000
	DefaultOverlap      = 200
	DefaultMinChunkSize = 50

	// boundarySearchWindow is how far past a window end we look for a
	// sentence terminator when preserving boundaries.
	boundarySearchWindow = 200
	// boundaryStretchFactor caps how much a snapped boundary may inflate
	// a chunk beyond the configured size.
	boundaryStretchFactor = 1.2
)

// Config holds every recognized chunking option. Validated eagerly at
// construction, never patched at call sites.
type Config struct {
	Strategy                   Strategy
	Size                       int
	Overlap                    int
	MinChunkSize               int
	PreserveSentenceBoundaries bool
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Strategy == "" {
		c.Strategy = StrategyFixedSize
	}
	if c.Size <= 0 {
		c.Size = DefaultSize
	}
	if c.Overlap < 0 {
		c.Overlap = DefaultOverlap
	}
	if c.MinChunkSize <= 0 {
		c.MinChunkSize = DefaultMinChunkSize
	}
}

// Validate checks the configuration for correctness.
func (c Config) Validate() error {
	switch c.Strategy {
	case StrategyFixedSize, StrategySentence, StrategyParagraph:
	default:
		return fmt.Errorf("unknown chunking strategy %q", c.Strategy)
	}
	if c.Size <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.Size)
	}
	if c.Overlap < 0 || c.Overlap >= c.Size {
		return fmt.Errorf("overlap must be in [0, size), got %d for size %d", c.Overlap, c.Size)
	}
	return nil
}

// Piece is one chunk with its offsets into the cleaned text.
type Piece struct {
	Content  string
	Index    int
	Start    int
	End      int
	Strategy Strategy
}

// Chunker splits text per a validated configuration.
type Chunker struct {
	cfg Config
}

// New validates the configuration and creates a chunker.
func New(cfg Config) (*Chunker, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid chunking config: %w", err)
	}
	return &Chunker{cfg: cfg}, nil
}

// Config returns the effective configuration.
func (c *Chunker) Config() Config { return c.cfg }

// Chunk returns the ordered chunk contents for text.
func (c *Chunker) Chunk(text string) []string {
	pieces := c.ChunkDetailed(text)
	out := make([]string, len(pieces))
	for i, p := range pieces {
		out[i] = p.Content
	}
	return out
}

// ChunkDetailed returns chunks with offsets into the cleaned text.
// Empty or whitespace-only input yields zero chunks. Non-empty input always
// yields at least one chunk: if the min-size filter would drop everything,
// the entire cleaned text is returned as a single chunk.
func (c *Chunker) ChunkDetailed(text string) []Piece {
	cleaned := Clean(text)
	if cleaned == "" {
		return nil
	}

	var pieces []Piece
	switch c.cfg.Strategy {
	case StrategySentence:
		pieces = c.packRanges(cleaned, sentenceRanges(cleaned))
	case StrategyParagraph:
		pieces = c.packRanges(cleaned, paragraphRanges(cleaned))
	default:
		pieces = c.fixedSize(cleaned, 0)
	}

	pieces = c.filterSmall(cleaned, pieces)
	for i := range pieces {
		pieces[i].Index = i
		pieces[i].Strategy = c.cfg.Strategy
	}
	return pieces
}

// fixedSize walks cleaned text in windows of Size with step Size-Overlap.
// base shifts offsets when re-splitting an oversized sentence.
func (c *Chunker) fixedSize(text string, base int) []Piece {
	size := c.cfg.Size
	step := size - c.cfg.Overlap

	var pieces []Piece
	start := 0
	for start < len(text) {
		end := start + size
		if end >= len(text) {
			end = len(text)
		} else if c.cfg.PreserveSentenceBoundaries {
			if snapped, ok := snapToSentence(text, start, end, size); ok {
				end = snapped
			}
		}

		pieces = append(pieces, Piece{
			Content: text[start:end],
			Start:   base + start,
			End:     base + end,
		})

		if end == len(text) {
			break
		}
		next := end - c.cfg.Overlap
		if next <= start {
			next = start + step
		}
		start = next
	}
	return pieces
}

// snapToSentence searches forward up to 200 chars for a sentence terminator
// followed by whitespace, but refuses to stretch the chunk past 1.2x size.
func snapToSentence(text string, start, end, size int) (int, bool) {
	limit := end + boundarySearchWindow
	if limit > len(text) {
		limit = len(text)
	}
	maxEnd := start + int(float64(size)*boundaryStretchFactor)

	for i := end; i < limit; i++ {
		if !isTerminator(text[i]) {
			continue
		}
		// Consume the terminator run.
		j := i + 1
		for j < len(text) && isTerminator(text[j]) {
			j++
		}
		if j >= len(text) || text[j] == ' ' || text[j] == '\n' {
			if j <= maxEnd {
				return j, true
			}
			return 0, false
		}
	}
	return 0, false
}

func isTerminator(b byte) bool {
	return b == '.' || b == '!' || b == '?'
}

// textRange is a half-open [start, end) span of the cleaned text.
type textRange struct {
	start, end int
}

var sentenceEndRegex = regexp.MustCompile(`[.!?]+(\s+|$)`)

// sentenceRanges splits on [.!?]+ boundaries, keeping terminators with the
// preceding sentence.
func sentenceRanges(text string) []textRange {
	matches := sentenceEndRegex.FindAllStringIndex(text, -1)
	var ranges []textRange
	prev := 0
	for _, m := range matches {
		if m[1] > prev {
			ranges = append(ranges, textRange{start: prev, end: m[1]})
			prev = m[1]
		}
	}
	if prev < len(text) {
		ranges = append(ranges, textRange{start: prev, end: len(text)})
	}
	return ranges
}

var blankLineRegex = regexp.MustCompile(`\n\s*\n`)

// paragraphRanges splits on blank-line boundaries.
func paragraphRanges(text string) []textRange {
	matches := blankLineRegex.FindAllStringIndex(text, -1)
	var ranges []textRange
	prev := 0
	for _, m := range matches {
		if m[1] > prev {
			ranges = append(ranges, textRange{start: prev, end: m[1]})
			prev = m[1]
		}
	}
	if prev < len(text) {
		ranges = append(ranges, textRange{start: prev, end: len(text)})
	}
	return ranges
}

// packRanges greedily accumulates adjacent ranges until adding the next one
// would exceed Size, then flushes the accumulator as one chunk. A single
// range longer than Size is re-split via fixed_size.
func (c *Chunker) packRanges(text string, ranges []textRange) []Piece {
	var pieces []Piece
	accStart, accEnd := -1, -1

	flush := func() {
		if accStart >= 0 {
			pieces = append(pieces, Piece{
				Content: text[accStart:accEnd],
				Start:   accStart,
				End:     accEnd,
			})
			accStart, accEnd = -1, -1
		}
	}

	for _, r := range ranges {
		length := r.end - r.start
		if length > c.cfg.Size {
			flush()
			pieces = append(pieces, c.fixedSize(text[r.start:r.end], r.start)...)
			continue
		}
		if accStart < 0 {
			accStart, accEnd = r.start, r.end
			continue
		}
		if r.end-accStart > c.cfg.Size {
			flush()
			accStart, accEnd = r.start, r.end
			continue
		}
		accEnd = r.end
	}
	flush()
	return pieces
}

// filterSmall drops chunks whose trimmed content is below MinChunkSize. If
// that would remove every chunk, the full cleaned text is returned as one
// chunk so callers always get at least one unit from non-empty input.
func (c *Chunker) filterSmall(cleaned string, pieces []Piece) []Piece {
	kept := pieces[:0]
	for _, p := range pieces {
		if len(strings.TrimSpace(p.Content)) >= c.cfg.MinChunkSize {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return []Piece{{Content: cleaned, Start: 0, End: len(cleaned)}}
	}
	return kept
}

var (
	pageMarkerRegex  = regexp.MustCompile(`--- Page \d+ ---`)
	horizSpaceRegex  = regexp.MustCompile(`[ \t]+`)
	manyNewlineRegex = regexp.MustCompile(`\n{3,}`)
	lineEndingRegex  = regexp.MustCompile(`\r\n?`)
)

// Clean normalizes extracted text before chunking: line endings, extraction
// artifacts, horizontal whitespace runs, and excess blank lines.
func Clean(text string) string {
	text = lineEndingRegex.ReplaceAllString(text, "\n")
	text = pageMarkerRegex.ReplaceAllString(text, " ")
	text = horizSpaceRegex.ReplaceAllString(text, " ")
	text = manyNewlineRegex.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
