package recommend

import (
	"github.com/ridewise-ai/ridewise/internal/catalog"
)

// defaultWeight applies when an active attribute has no priority weight.
const defaultWeight = 1.0

// Encode turns the user's active preferences and priority weights into a
// dense feature vector and a parallel weight vector, index-aligned to the
// catalog's column order.
//
// Categorical attributes set their one-hot column to 1; numeric attributes
// set their {attr}_normalized column to value/divisor. An attribute whose
// column or value is absent from the catalog contributes nothing: that is
// documented policy, not an error. The only failure is a catalog with a zero
// normalization divisor.
func Encode(prefs catalog.Preferences, weights map[string]float64, cat *catalog.Catalog) (userVec, weightVec []float64, err error) {
	userVec = make([]float64, cat.Dimension())
	weightVec = make([]float64, cat.Dimension())

	for attr, value := range prefs {
		spec, ok := cat.Spec(attr)
		if !ok {
			continue
		}

		weight, ok := weights[attr]
		if !ok {
			weight = defaultWeight
		}

		switch spec.Kind {
		case catalog.KindCategorical:
			column, found := cat.OneHotColumn(attr, value.String())
			if !found {
				continue
			}
			idx, _ := cat.ColumnIndex(column)
			userVec[idx] = 1.0
			weightVec[idx] = weight

		case catalog.KindNumeric:
			divisor, derr := cat.NormalizationDivisor(attr)
			if derr != nil {
				return nil, nil, derr
			}
			idx, found := cat.ColumnIndex(attr + "_normalized")
			if !found {
				continue
			}
			raw, ok := value.Float()
			if !ok {
				continue
			}
			userVec[idx] = raw / divisor
			weightVec[idx] = weight
		}
	}

	return userVec, weightVec, nil
}
