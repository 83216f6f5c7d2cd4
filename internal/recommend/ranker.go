package recommend

import (
	"fmt"
	"math"
	"sort"

	"github.com/ridewise-ai/ridewise/internal/catalog"
)

// numericPenalty describes one of the fixed numeric-distance deductions.
// The coefficients are design constants, not user-configurable; the price
// penalty is divided by 1e6 to bring rupiah amounts to a comparable scale.
type numericPenalty struct {
	attr  string
	coeff float64
	scale float64
}

var numericPenalties = []numericPenalty{
	{attr: "PowerHP", coeff: 0.04, scale: 1},
	{attr: "Displacement", coeff: 0.02, scale: 1},
	{attr: "Price", coeff: 0.01, scale: 1_000_000},
	{attr: "WeightKG", coeff: 0.01, scale: 1},
	{attr: "FuelTank", coeff: 0.01, scale: 1},
}

// Rank scores every catalog row against the encoded user vector and returns
// the topN rows ordered by FinalScore descending. The sort is stable: rows
// with equal scores keep their original catalog order.
//
// FinalScore = weighted cosine similarity minus the fixed numeric penalties.
// A preference value of exactly zero is treated as "unset" and incurs no
// penalty, matching the catalog's input conventions.
func Rank(userVec, weightVec []float64, cat *catalog.Catalog, prefs catalog.Preferences, topN int) ([]CaseRecord, error) {
	if len(userVec) != cat.Dimension() || len(weightVec) != cat.Dimension() {
		return nil, fmt.Errorf("vector length %d/%d does not match catalog dimension %d",
			len(userVec), len(weightVec), cat.Dimension())
	}
	if topN < 1 {
		return nil, fmt.Errorf("topN must be positive, got %d", topN)
	}

	weightedUser := make([]float64, len(userVec))
	for i := range userVec {
		weightedUser[i] = userVec[i] * weightVec[i]
	}

	records := make([]CaseRecord, cat.Len())
	weightedRow := make([]float64, len(weightVec))
	for i := 0; i < cat.Len(); i++ {
		row := cat.MatrixRow(i)
		for j := range row {
			weightedRow[j] = row[j] * weightVec[j]
		}

		similarity := cosine(weightedUser, weightedRow)
		raw := cat.Row(i)

		records[i] = CaseRecord{
			Index:      i,
			Model:      raw.Model,
			Attrs:      raw.Attrs,
			Similarity: similarity,
			FinalScore: similarity - penaltyFor(raw, prefs),
			Source:     SourceCosineSimilarity,
		}
	}

	sort.SliceStable(records, func(a, b int) bool {
		return records[a].FinalScore > records[b].FinalScore
	})

	if topN > len(records) {
		topN = len(records)
	}
	return records[:topN], nil
}

// penaltyFor sums the numeric-distance deductions for one catalog row.
func penaltyFor(row catalog.Row, prefs catalog.Preferences) float64 {
	total := 0.0
	for _, p := range numericPenalties {
		value, ok := prefs[p.attr]
		if !ok {
			continue
		}
		target, ok := value.Float()
		if !ok || target == 0 {
			// Zero is the "unset" sentinel.
			continue
		}
		raw, ok := row.Attrs[p.attr].Float()
		if !ok {
			continue
		}
		total += p.coeff * math.Abs(raw-target) / p.scale
	}
	return total
}

// cosine returns the cosine similarity of two vectors, or 0 when either has
// zero magnitude.
func cosine(a, b []float64) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
