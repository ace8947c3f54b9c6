package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultSearchConfig(t *testing.T) {
	config := DefaultSearchConfig()

	assert.Equal(t, 10, config.MaxResults)
	assert.Equal(t, 20, config.TopK)
	assert.Equal(t, 0.0, config.MinQuality)
	assert.Equal(t, 0, config.ExpandHops)

	t.Run("Default weights sum to one", func(t *testing.T) {
		assert.Equal(t, 0.3, config.TextWeight)
		assert.Equal(t, 0.5, config.VectorWeight)
		assert.Equal(t, 0.2, config.QualityWeight)
		assert.InDelta(t, 1.0, config.TextWeight+config.VectorWeight+config.QualityWeight, 1e-9)
	})
}

func TestDefaultTraversalConfig(t *testing.T) {
	config := DefaultTraversalConfig()

	assert.Equal(t, 2, config.MaxHops)
	assert.Equal(t, 10000, config.MaxVisited)
	assert.Nil(t, config.TypeFilter)
}

func TestDefaultIndexConfig(t *testing.T) {
	config := DefaultIndexConfig()

	assert.Equal(t, 100, config.Lists)
	assert.Equal(t, 10, config.Probes)
	assert.Equal(t, 1000, config.ReindexThreshold)
}
