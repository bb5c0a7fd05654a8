package domain

// RankMode selects how documents are ranked during diversification.
type RankMode string

// Document ranking modes.
const (
	RankBest    RankMode = "best"
	RankAverage RankMode = "average"
)

// RetrievalProfile holds every retrieval tunable for one query class.
// Table-driven: the engine never branches on the class itself, only on
// the profile it resolves to.
type RetrievalProfile struct {
	// Thresholds is the escalation ladder, most strict first. The engine
	// stops at the first threshold that yields any result.
	Thresholds []float64
	// MatchCount is the raw candidate count requested per threshold.
	MatchCount int
	// PerDocCap bounds chunks drawn from a single document.
	PerDocCap int
	// TotalCap bounds the overall selected chunk count.
	TotalCap int
	// TitleChunks is the leading-chunk count for title-match short-circuits.
	TitleChunks int
	// Rank selects best-chunk or average-chunk document ranking.
	Rank RankMode
	// StartShare/MiddleShare/EndShare weight positional sampling within a
	// document's chunk-index range. Zero values disable sampling (pure
	// similarity order). Tuned for report-style documents where outcomes
	// cluster near the end; treat as tunable, not a law.
	StartShare  float64
	MiddleShare float64
	EndShare    float64
}

// DefaultProfiles returns the retrieval profile table keyed by query class.
func DefaultProfiles() map[QueryKind]RetrievalProfile {
	return map[QueryKind]RetrievalProfile{
		KindFactual: {
			Thresholds:  []float64{0.5, 0.4, 0.3, 0.2, 0.1},
			MatchCount:  30,
			PerDocCap:   6,
			TotalCap:    12,
			TitleChunks: 3,
			Rank:        RankBest,
			StartShare:  0.2,
			MiddleShare: 0.3,
			EndShare:    0.5,
		},
		KindSummary: {
			Thresholds:  []float64{0.7, 0.6, 0.5, 0.4},
			MatchCount:  15,
			PerDocCap:   5,
			TotalCap:    10,
			TitleChunks: 5,
			Rank:        RankAverage,
		},
		KindExtensiveSummary: {
			Thresholds:  []float64{0.7, 0.6, 0.5, 0.4},
			MatchCount:  20,
			PerDocCap:   8,
			TotalCap:    16,
			TitleChunks: 8,
			Rank:        RankAverage,
		},
		KindStandard: {
			Thresholds:  []float64{0.7, 0.6, 0.5},
			MatchCount:  10,
			PerDocCap:   3,
			TotalCap:    8,
			TitleChunks: 3,
			Rank:        RankBest,
		},
	}
}

// ProfileFor resolves the profile for a classification, falling back to the
// standard profile for unknown classes.
func ProfileFor(profiles map[QueryKind]RetrievalProfile, c QueryClassification) RetrievalProfile {
	if p, ok := profiles[c.Kind()]; ok {
		return p
	}
	return profiles[KindStandard]
}
