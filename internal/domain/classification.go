package domain

// QueryKind is the coarse intent class of a question.
type QueryKind string

// Query intent classes.
const (
	KindFactual          QueryKind = "factual"
	KindSummary          QueryKind = "summary"
	KindExtensiveSummary QueryKind = "extensive_summary"
	KindStandard         QueryKind = "standard"
)

// QueryClassification is the ephemeral, stateless classification of one
// question. Derived purely from question text, recomputed per request.
type QueryClassification struct {
	IsSummary          bool
	IsExtensiveSummary bool
	IsDocumentSpecific bool
	IsFactual          bool
}

// Kind collapses the boolean flags into a single intent class.
// Extensive-without-summary is not a distinct class.
func (c QueryClassification) Kind() QueryKind {
	switch {
	case c.IsSummary && c.IsExtensiveSummary:
		return KindExtensiveSummary
	case c.IsSummary:
		return KindSummary
	case c.IsFactual:
		return KindFactual
	default:
		return KindStandard
	}
}
