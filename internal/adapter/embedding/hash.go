package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

const (
	// DefaultHashDimension keeps the fallback vectors small enough to scan
	// cheaply while leaving headroom against hash collisions.
	DefaultHashDimension = 384

	wordWeight   = 1.0
	bigramWeight = 0.2

	// normEpsilon keeps normalization defined for empty or all-zero text.
	normEpsilon = 1e-12
)

// HashEmbedder is a deterministic local embedder that needs no model or
// network. Each text becomes a hashed histogram of its whitespace tokens
// and overlapping 2-character windows, L2-normalized. Hash collisions only
// blur the signal; they never fail. It is the terminal fallback when no
// external embedder is usable.
type HashEmbedder struct {
	dimension int
}

// NewHashEmbedder creates a hash embedder with the given dimension.
// Non-positive dimensions fall back to DefaultHashDimension.
func NewHashEmbedder(dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = DefaultHashDimension
	}
	return &HashEmbedder{dimension: dimension}
}

// Embed produces one unit-norm vector per text, in input order.
func (e *HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = e.embedOne(text)
	}
	return vectors, nil
}

func (e *HashEmbedder) embedOne(text string) []float32 {
	v := make([]float32, e.dimension)

	lower := strings.ToLower(text)
	for _, word := range strings.Fields(lower) {
		v[e.bucket(word)] += wordWeight

		for j := 0; j+2 <= len(word); j++ {
			v[e.bucket(word[j:j+2])] += bigramWeight
		}
	}

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum) + normEpsilon
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

func (e *HashEmbedder) bucket(token string) int {
	h := fnv.New32a()
	h.Write([]byte(token))
	return int(h.Sum32() % uint32(e.dimension))
}

// Dimension returns the embedding vector dimension.
func (e *HashEmbedder) Dimension() int {
	return e.dimension
}

// ModelName returns a stable identifier recorded in index metadata.
func (e *HashEmbedder) ModelName() string {
	return "hash-local"
}
