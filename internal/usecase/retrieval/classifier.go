package retrieval

import (
	"regexp"
	"strings"

	"github.com/kailas-cloud/docdex/internal/domain"
)

// Keyword lists cover English and Swedish phrasings.
var (
	summaryKeywords = []string{
		"summary", "summarize", "summarise", "overview", "recap",
		"sammanfatta", "sammanfattning", "översikt", "överblick",
	}
	extensiveKeywords = []string{
		"extensive", "detailed", "comprehensive", "thorough", "in-depth", "full",
		"utförlig", "detaljerad", "omfattande", "grundlig",
	}
	factualCues = []string{
		"what", "when", "where", "who", "which", "how", "why",
		"vad", "när", "var", "vem", "vilken", "vilka", "hur", "varför",
	}
)

var (
	documentSpecificRegex = regexp.MustCompile(
		`(?i)\b(the|this|that)\s+(document|file|pdf|report)\b|\bdokumentet\b`,
	)
	listingRegex = regexp.MustCompile(
		`(?i)(what|which)\s+(documents|files)\s+(do you have|are available|can you access)` +
			`|list\s+(all\s+|the\s+|available\s+)?(documents|files)` +
			`|available\s+documents` +
			`|vilka\s+dokument`,
	)
)

// Classify derives the intent flags for a question. Pure function, no state.
func Classify(question string) domain.QueryClassification {
	q := strings.ToLower(question)

	c := domain.QueryClassification{
		IsSummary:          containsAny(q, summaryKeywords),
		IsDocumentSpecific: documentSpecificRegex.MatchString(question) || listingRegex.MatchString(question),
	}
	// The extensive modifier only means something for summaries.
	c.IsExtensiveSummary = c.IsSummary && containsAny(q, extensiveKeywords)
	if !c.IsSummary {
		c.IsFactual = hasFactualCue(q)
	}
	return c
}

// isListingQuery reports whether the question asks for the document inventory
// itself rather than document content.
func isListingQuery(question string) bool {
	return listingRegex.MatchString(question)
}

func containsAny(q string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

// hasFactualCue checks for an interrogative opener or a question mark.
func hasFactualCue(q string) bool {
	if strings.Contains(q, "?") {
		return true
	}
	fields := strings.Fields(q)
	if len(fields) == 0 {
		return false
	}
	for _, cue := range factualCues {
		if fields[0] == cue {
			return true
		}
	}
	return false
}
