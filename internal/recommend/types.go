// Package recommend provides preference encoding and weighted-cosine ranking
// over the feature catalog. Everything here is pure: no I/O, no logging, and
// identical inputs always produce identical output.
package recommend

import (
	"github.com/ridewise-ai/ridewise/internal/catalog"
)

// Source tags where a recommendation came from.
type Source string

const (
	// SourceHistoricalCase marks a model recalled from the case base.
	SourceHistoricalCase Source = "historical_case"
	// SourceCosineSimilarity marks a model produced by similarity ranking.
	SourceCosineSimilarity Source = "cosine_similarity"
)

// CaseRecord is one ranked catalog row: the raw attributes of the model plus
// its computed scores and provenance.
type CaseRecord struct {
	Index      int // original catalog row index
	Model      string
	Attrs      catalog.Preferences
	Similarity float64
	FinalScore float64
	Source     Source
}

// WeightsFromRanking derives priority weights from a user ranking of
// attributes, most important first: with N attributes the first gets weight
// N, the last gets 1.
func WeightsFromRanking(ranking []string) map[string]float64 {
	n := len(ranking)
	weights := make(map[string]float64, n)
	for i, attr := range ranking {
		weights[attr] = float64(n - i)
	}
	return weights
}
