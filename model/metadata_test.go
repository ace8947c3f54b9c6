package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataValue(t *testing.T) {
	metadata := Metadata{"station": "BM-101", "elevation": 128.4}

	value, err := metadata.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `{"station":"BM-101","elevation":128.4}`, string(value.([]byte)))
}

func TestMetadataScan(t *testing.T) {
	t.Run("Scans JSON bytes", func(t *testing.T) {
		var metadata Metadata
		err := metadata.Scan([]byte(`{"station":"BM-101"}`))
		require.NoError(t, err)
		assert.Equal(t, "BM-101", metadata["station"])
	})

	t.Run("Scans nil as empty metadata", func(t *testing.T) {
		var metadata Metadata
		err := metadata.Scan(nil)
		require.NoError(t, err)
		assert.NotNil(t, metadata)
		assert.Empty(t, metadata)
	})

	t.Run("Rejects non-byte values", func(t *testing.T) {
		var metadata Metadata
		err := metadata.Scan(42)
		assert.Error(t, err)
	})
}
