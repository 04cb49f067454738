// Package embed turns chunk and query text into fixed-length vectors and
// keeps the persisted vector store in step with the chunk store.
package embed

import (
	"context"
	"math"
	"time"
)

// Batching and timeouts.
const (
	MinBatchSize     = 1
	MaxBatchSize     = 256
	DefaultBatchSize = 32

	// DefaultTimeout bounds a single embedding request.
	DefaultTimeout = 60 * time.Second
)

// StaticDimensions is the vector length produced by StaticEmbedder.
const StaticDimensions = 256

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for texts, one row per input, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding length.
	Dimensions() int

	// ModelName identifies the model. Vectors from different models are
	// never mixed in one store.
	ModelName() string

	Close() error
}

// normalizeVector scales v to unit length in place. Zero vectors are
// returned unchanged.
func normalizeVector(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
	return v
}
