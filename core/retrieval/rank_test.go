package retrieval

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sitegraph/sitegraph/helper"
	"github.com/sitegraph/sitegraph/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenormalizeWeights(t *testing.T) {
	t.Run("All signals present keeps the configured weights", func(t *testing.T) {
		w, err := renormalizeWeights(0.3, 0.5, 0.2, true, true)
		require.NoError(t, err)
		assert.InDelta(t, 0.3, w.text, 1e-9)
		assert.InDelta(t, 0.5, w.vector, 1e-9)
		assert.InDelta(t, 0.2, w.quality, 1e-9)
	})

	t.Run("Missing vector signal renormalizes to 0.6 text and 0.4 quality", func(t *testing.T) {
		w, err := renormalizeWeights(0.3, 0.5, 0.2, true, false)
		require.NoError(t, err)
		assert.InDelta(t, 0.6, w.text, 1e-9)
		assert.Equal(t, 0.0, w.vector)
		assert.InDelta(t, 0.4, w.quality, 1e-9)
	})

	t.Run("Missing text signal renormalizes vector and quality", func(t *testing.T) {
		w, err := renormalizeWeights(0.3, 0.5, 0.2, false, true)
		require.NoError(t, err)
		assert.Equal(t, 0.0, w.text)
		assert.InDelta(t, 0.5/0.7, w.vector, 1e-9)
		assert.InDelta(t, 0.2/0.7, w.quality, 1e-9)
	})

	t.Run("Weights always sum to one", func(t *testing.T) {
		w, err := renormalizeWeights(0.25, 0.6, 0.15, true, false)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, w.text+w.vector+w.quality, 1e-9)
	})

	t.Run("Negative weight is rejected", func(t *testing.T) {
		_, err := renormalizeWeights(-0.1, 0.5, 0.2, true, true)
		assert.ErrorIs(t, err, helper.ErrInvalidWeight)
	})

	t.Run("No positive weight for present signals is rejected", func(t *testing.T) {
		_, err := renormalizeWeights(0.3, 0, 0, false, true)
		assert.ErrorIs(t, err, helper.ErrValidation)
	})
}

func TestCombine(t *testing.T) {
	w := weights{text: 0.3, vector: 0.5, quality: 0.2}

	t.Run("All signals contribute", func(t *testing.T) {
		textRank := 0.5
		similarity := 0.8
		result := &model.SearchResult{
			TextRank:         &textRank,
			VectorSimilarity: &similarity,
			QualityScore:     1.0,
		}
		assert.InDelta(t, 0.3*0.5+0.5*0.8+0.2*1.0, combine(w, result), 1e-9)
	})

	t.Run("Unmatched signal contributes zero", func(t *testing.T) {
		similarity := 0.8
		result := &model.SearchResult{
			VectorSimilarity: &similarity,
			QualityScore:     0.5,
		}
		assert.InDelta(t, 0.5*0.8+0.2*0.5, combine(w, result), 1e-9)
	})
}

func TestSortResults(t *testing.T) {
	makeResult := func(score float64, createdAt time.Time) *model.SearchResult {
		return &model.SearchResult{
			Entity:        &model.Entity{ID: uuid.New(), CreatedAt: createdAt},
			CombinedScore: score,
		}
	}

	t.Run("Orders by descending combined score", func(t *testing.T) {
		now := time.Now()
		low := makeResult(0.2, now)
		high := makeResult(0.9, now)
		mid := makeResult(0.5, now)

		results := []*model.SearchResult{low, high, mid}
		sortResults(results)

		assert.Equal(t, []*model.SearchResult{high, mid, low}, results)
	})

	t.Run("Equal scores fall back to creation time", func(t *testing.T) {
		now := time.Now()
		older := makeResult(0.5, now.Add(-time.Hour))
		newer := makeResult(0.5, now)

		results := []*model.SearchResult{newer, older}
		sortResults(results)

		assert.Equal(t, older, results[0], "Expected the older entity to rank first on a tie")
	})

	t.Run("Equal scores and times fall back to entity ID", func(t *testing.T) {
		now := time.Now()
		first := makeResult(0.5, now)
		second := makeResult(0.5, now)

		results := []*model.SearchResult{first, second}
		sortResults(results)
		onceSorted := append([]*model.SearchResult{}, results...)

		// Re-sorting from the opposite starting order gives the same result
		results = []*model.SearchResult{onceSorted[1], onceSorted[0]}
		sortResults(results)
		assert.Equal(t, onceSorted, results, "Expected a stable total order")
	})
}
