package utils

import (
	"math"
	"strings"
	"unicode"
)

// dotProduct assumes equal lengths; callers check.
func dotProduct(vec1, vec2 []float32) float64 {
	var product float64
	for i := range vec1 {
		product += float64(vec1[i]) * float64(vec2[i])
	}
	return product
}

// Magnitude calculates the L2 norm of a vector.
func Magnitude(vec []float32) float64 {
	var sumOfSquares float64
	for _, val := range vec {
		sumOfSquares += float64(val) * float64(val)
	}
	return math.Sqrt(sumOfSquares)
}

// CosineSimilarity returns dot(a,b) / (|a| * |b|). Empty vectors, vectors of
// different length and zero-magnitude vectors all score 0.
func CosineSimilarity(vec1, vec2 []float32) float64 {
	if len(vec1) == 0 || len(vec1) != len(vec2) {
		return 0
	}

	mag1 := Magnitude(vec1)
	mag2 := Magnitude(vec2)
	if mag1 == 0 || mag2 == 0 {
		return 0
	}

	sim := dotProduct(vec1, vec2) / (mag1 * mag2)
	// float rounding can land a hair outside [-1, 1]
	return math.Max(-1, math.Min(1, sim))
}

// Normalize returns a unit-length copy of vec. A zero vector is returned as a
// zero vector.
func Normalize(vec []float32) []float32 {
	out := make([]float32, len(vec))
	mag := Magnitude(vec)
	if mag == 0 {
		copy(out, vec)
		return out
	}
	for i, v := range vec {
		out[i] = float32(float64(v) / mag)
	}
	return out
}

// FallbackEmbedding builds a deterministic bag-of-words vector of the given
// dimensionality without calling any external service. Each token is hashed
// into a bucket and contributes 1/wordCount; the result is L2-normalised.
//
// Tokens come from Tokenize, not a plain whitespace split: text is
// lower-cased and also broken on punctuation, so "Steam-powered" and
// "steam powered" embed identically.
func FallbackEmbedding(text string, dims int) []float32 {
	if dims <= 0 {
		return nil
	}
	vec := make([]float32, dims)

	words := Tokenize(text)
	if len(words) == 0 {
		return vec
	}

	weight := 1 / float32(len(words))
	for _, w := range words {
		vec[bucket(w, dims)] += weight
	}
	return Normalize(vec)
}

// Tokenize lower-cases text and splits it on whitespace and punctuation, so
// "steam-powered" yields "steam" and "powered".
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// bucket is the classic 32-bit h*31+c string hash folded into [0, dims).
func bucket(word string, dims int) int {
	var h int32
	for _, r := range word {
		h = h*31 + int32(r)
	}
	idx := int(h) % dims
	if idx < 0 {
		idx = -idx
	}
	return idx
}
