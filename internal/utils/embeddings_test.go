package utils

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity_KnownValues(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2, 3}, []float32{2, 4, 6}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 1}, []float32{-1, -1}), 1e-9)
}

func TestCosineSimilarity_DegenerateInputs(t *testing.T) {
	assert.Zero(t, CosineSimilarity(nil, nil))
	assert.Zero(t, CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}), "length mismatch scores zero")
	assert.Zero(t, CosineSimilarity([]float32{0, 0}, []float32{1, 2}), "zero magnitude scores zero")
}

func TestCosineSimilarity_SymmetricAndBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		n := 1 + rng.Intn(32)
		a := make([]float32, n)
		b := make([]float32, n)
		for j := range a {
			a[j] = float32(rng.NormFloat64())
			b[j] = float32(rng.NormFloat64())
		}
		ab := CosineSimilarity(a, b)
		ba := CosineSimilarity(b, a)
		assert.Equal(t, ab, ba)
		assert.GreaterOrEqual(t, ab, -1.0)
		assert.LessOrEqual(t, ab, 1.0)
	}
}

func TestNormalize(t *testing.T) {
	v := Normalize([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)

	zero := Normalize([]float32{0, 0, 0})
	assert.Equal(t, []float32{0, 0, 0}, zero)
}

func TestFallbackEmbedding_Deterministic(t *testing.T) {
	text := "A floating city of brass and steam"

	a := FallbackEmbedding(text, 768)
	b := FallbackEmbedding(text, 768)

	require.Len(t, a, 768)
	assert.Equal(t, a, b)
	assert.InDelta(t, 1.0, Magnitude(a), 1e-5)
}

func TestFallbackEmbedding_EmptyText(t *testing.T) {
	v := FallbackEmbedding("   ", 16)
	require.Len(t, v, 16)
	assert.Zero(t, Magnitude(v))
}

func TestFallbackEmbedding_RepeatedWordsAccumulate(t *testing.T) {
	v := FallbackEmbedding("dragon dragon dragon", 64)

	nonZero := 0
	for _, x := range v {
		if x != 0 {
			nonZero++
			assert.InDelta(t, 1.0, x, 1e-6)
		}
	}
	assert.Equal(t, 1, nonZero)
}

func TestFallbackEmbedding_SharedWordsAreSimilar(t *testing.T) {
	doc := FallbackEmbedding("World Overview: A floating city of brass and steam", 768)
	related := FallbackEmbedding("steam-powered transportation", 768)
	unrelated := FallbackEmbedding("quiet meadow", 768)

	assert.Greater(t, CosineSimilarity(doc, related), 0.1)
	assert.Greater(t, CosineSimilarity(doc, related), CosineSimilarity(doc, unrelated))
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"steam", "powered", "trains"}, Tokenize("  Steam-powered\tTRAINS! "))
	assert.Empty(t, Tokenize("--- ..."))
}

func TestBucket_InRange(t *testing.T) {
	for _, w := range []string{"", "a", "zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz", "ünïcödé", "1234567890"} {
		idx := bucket(w, 7)
		assert.GreaterOrEqual(t, idx, 0)
		assert.Less(t, idx, 7)
	}
}
