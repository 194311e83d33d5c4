package store

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity_SymmetricAndBounded(t *testing.T) {
	pairs := [][2][]float32{
		{{1, 0, 0}, {0, 1, 0}},
		{{0.3, -0.7, 0.2}, {0.9, 0.1, -0.4}},
		{{1, 2, 3}, {1, 2, 3}},
		{{-1, -2, -3}, {1, 2, 3}},
	}

	for _, p := range pairs {
		ab := CosineSimilarity(p[0], p[1])
		ba := CosineSimilarity(p[1], p[0])

		assert.InDelta(t, ab, ba, 1e-12, "cosine must be symmetric")
		assert.GreaterOrEqual(t, ab, -1.0-1e-12)
		assert.LessOrEqual(t, ab, 1.0+1e-12)
	}
}

func TestCosineSimilarity_IdenticalVectorsScoreOne(t *testing.T) {
	v := []float32{0.5, 1.5, -2.0}
	assert.InDelta(t, 1.0, CosineSimilarity(v, v), 1e-9)
}

func TestCosineSimilarity_DegenerateInputsYieldZero(t *testing.T) {
	assert.Equal(t, 0.0, CosineSimilarity(nil, nil))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0, 0}, []float32{1, 2, 3}))
}

func TestVectorCodec_RoundTrip(t *testing.T) {
	vec := []float32{0.1, -2.5, float32(math.Pi), 0, 1e-7}

	decoded, err := decodeVector(encodeVector(vec))
	require.NoError(t, err)
	assert.Equal(t, vec, decoded)
}

func TestDecodeVector_RejectsTruncatedBlob(t *testing.T) {
	_, err := decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}
