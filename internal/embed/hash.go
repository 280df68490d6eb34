package embed

import (
	"context"
	"crypto/sha256"
)

// HashEmbedder is a deterministic, dependency-free provider. The SHA-256 of the
// text is spread cyclically over the dimensions, mapped into [-1, 1] and
// L2-normalized. Identical text always yields the identical vector; there is no
// semantic similarity between different texts.
type HashEmbedder struct {
	dims int
}

var _ Embedder = (*HashEmbedder)(nil)

// NewHashEmbedder creates a hash embedder. dims below 1 become 1.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims < 1 {
		dims = 1
	}
	return &HashEmbedder{dims: dims}
}

// Embed hashes text into a unit vector.
func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	sum := sha256.Sum256([]byte(text))
	v := make([]float32, e.dims)
	for i := range v {
		b := sum[i%len(sum)]
		v[i] = (float32(b)/255.0)*2.0 - 1.0
	}
	return normalizeVector(v), nil
}

// EmbedBatch embeds each text in turn.
func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, e, texts)
}

func (e *HashEmbedder) Dimensions() int                  { return e.dims }
func (e *HashEmbedder) ModelName() string                { return "sha256" }
func (e *HashEmbedder) Available(_ context.Context) bool { return true }
func (e *HashEmbedder) Close() error                     { return nil }
