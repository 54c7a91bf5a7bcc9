package storage_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dshills/whycontext-mcp/internal/storage"
)

func TestSerializeDeserializeVector(t *testing.T) {
	tests := []struct {
		name   string
		vector []float32
	}{
		{name: "simple vector", vector: []float32{1.0, 2.0, 3.0, 4.0}},
		{name: "negative values", vector: []float32{-1.0, -0.5, 0.5, 1.0}},
		{name: "large dimension", vector: make([]float32, 384)},
		{name: "empty", vector: []float32{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob := storage.SerializeVector(tt.vector)
			assert.Len(t, blob, len(tt.vector)*4)
			assert.Equal(t, tt.vector, storage.DeserializeVector(blob))
		})
	}
}

func TestSimilarityFunctions(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	c := []float32{2, 0}

	assert.InDelta(t, 0.0, storage.CosineSimilarity(a, b), 1e-9)
	assert.InDelta(t, 1.0, storage.CosineSimilarity(a, c), 1e-9)
	assert.Zero(t, storage.CosineSimilarity(a, []float32{0, 0}))
	assert.Zero(t, storage.CosineSimilarity(a, []float32{1}))

	assert.InDelta(t, 2.0, storage.InnerProduct(a, c), 1e-9)
	assert.Zero(t, storage.InnerProduct(a, []float32{1, 2, 3}))

	assert.InDelta(t, math.Sqrt2, storage.L2Distance(a, b), 1e-9)
	assert.True(t, math.IsInf(storage.L2Distance(a, []float32{1}), 1))
}
