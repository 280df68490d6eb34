// Package embed turns text into dense vectors for the document store.
package embed

import (
	"context"
	"math"
	"time"
)

const (
	// DefaultDimensions matches the document store's default contentVector dims.
	DefaultDimensions = 2048

	// DefaultQueryCacheSize bounds the query embedding cache.
	DefaultQueryCacheSize = 512

	// DefaultTimeout is the per-request timeout for HTTP providers.
	DefaultTimeout = 15 * time.Second

	// DefaultMaxRetries is the default number of retry attempts for HTTP providers.
	DefaultMaxRetries = 2
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Available checks if the embedder is ready.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// normalizeVector scales v to unit length in place. Zero vectors are returned unchanged.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	for i := range v {
		v[i] = float32(float64(v[i]) / magnitude)
	}
	return v
}

// embedEach is the EmbedBatch fallback for providers without a batch endpoint.
func embedEach(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		v, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
