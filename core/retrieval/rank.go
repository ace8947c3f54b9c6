package retrieval

import (
	"fmt"
	"sort"

	"github.com/sitegraph/sitegraph/helper"
	"github.com/sitegraph/sitegraph/model"
)

// weights holds the effective ranking weights after renormalization.
type weights struct {
	text    float64
	vector  float64
	quality float64
}

// renormalizeWeights drops the weight of every absent signal and rescales
// the remaining weights so they sum to 1 again, preserving their relative
// proportions. With the default 0.3/0.5/0.2 weights a text-only query ranks
// with 0.6 text and 0.4 quality.
func renormalizeWeights(textWeight, vectorWeight, qualityWeight float64, hasText, hasVector bool) (weights, error) {
	if textWeight < 0 || vectorWeight < 0 || qualityWeight < 0 {
		return weights{}, helper.NewError("weight validation",
			fmt.Errorf("%w: negative ranking weight", helper.ErrInvalidWeight))
	}

	w := weights{
		text:    textWeight,
		vector:  vectorWeight,
		quality: qualityWeight,
	}
	if !hasText {
		w.text = 0
	}
	if !hasVector {
		w.vector = 0
	}

	sum := w.text + w.vector + w.quality
	if sum <= 0 {
		return weights{}, helper.NewError("weight validation",
			fmt.Errorf("%w: no positive weight for any present signal", helper.ErrValidation))
	}

	w.text /= sum
	w.vector /= sum
	w.quality /= sum
	return w, nil
}

// combine computes the combined score of one candidate. A signal the query
// carried but the candidate did not match contributes zero.
func combine(w weights, result *model.SearchResult) float64 {
	score := w.quality * result.QualityScore
	if result.TextRank != nil {
		score += w.text * *result.TextRank
	}
	if result.VectorSimilarity != nil {
		score += w.vector * *result.VectorSimilarity
	}
	return score
}

// sortResults orders results by descending combined score. Ties fall back
// to entity creation time (oldest first) and finally entity ID, so equal
// scores always rank identically across runs.
func sortResults(results []*model.SearchResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].CombinedScore != results[j].CombinedScore {
			return results[i].CombinedScore > results[j].CombinedScore
		}
		if !results[i].Entity.CreatedAt.Equal(results[j].Entity.CreatedAt) {
			return results[i].Entity.CreatedAt.Before(results[j].Entity.CreatedAt)
		}
		return results[i].Entity.ID.String() < results[j].Entity.ID.String()
	})
}
