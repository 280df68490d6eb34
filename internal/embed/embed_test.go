package embed

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func norm(v []float32) float64 {
	var s float64
	for _, f := range v {
		s += float64(f) * float64(f)
	}
	return math.Sqrt(s)
}

func TestHashEmbedder_DeterministicUnitVectors(t *testing.T) {
	e := NewHashEmbedder(2048)
	ctx := context.Background()

	a, err := e.Embed(ctx, "UserService login")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "UserService login")
	require.NoError(t, err)
	c, err := e.Embed(ctx, "something else")
	require.NoError(t, err)

	assert.Len(t, a, 2048)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.InDelta(t, 1.0, norm(a), 1e-5)
}

func TestStaticEmbedder_SimilarCodeIsCloser(t *testing.T) {
	e := NewStaticEmbedder(256)
	ctx := context.Background()

	q, _ := e.Embed(ctx, "login user")
	near, _ := e.Embed(ctx, "public boolean loginUser(String name)")
	far, _ := e.Embed(ctx, "render histogram of latency buckets")

	dot := func(x, y []float32) float64 {
		var s float64
		for i := range x {
			s += float64(x[i]) * float64(y[i])
		}
		return s
	}
	assert.Greater(t, dot(q, near), dot(q, far))
}

func TestStaticEmbedder_BlankAndClosed(t *testing.T) {
	e := NewStaticEmbedder(16)
	v, err := e.Embed(context.Background(), "   ")
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 16), v)

	require.NoError(t, e.Close())
	_, err = e.Embed(context.Background(), "x")
	assert.Error(t, err)
	assert.False(t, e.Available(context.Background()))
}

func TestSplitCamelCase(t *testing.T) {
	assert.Equal(t, []string{"HTTP", "Server", "Error"}, splitCamelCase("HTTPServerError"))
	assert.Equal(t, []string{"get", "User", "By", "Id"}, splitCamelCase("getUserById"))
}

type countingEmbedder struct {
	HashEmbedder
	calls atomic.Int32
	err   error
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return c.HashEmbedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, c, texts)
}

func TestCachedEmbedder_NormalizesKeyAndSkipsRecompute(t *testing.T) {
	inner := &countingEmbedder{HashEmbedder: *NewHashEmbedder(8)}
	c := NewCachedEmbedder(inner, 2)
	ctx := context.Background()

	first, err := c.Embed(ctx, "  UserService ")
	require.NoError(t, err)
	second, err := c.Embed(ctx, "userservice")
	require.NoError(t, err)

	assert.Equal(t, int32(1), inner.calls.Load())
	assert.Equal(t, first, second)

	// mutating a returned vector must not leak into the cache
	second[0] = 99
	third, _ := c.Embed(ctx, "USERSERVICE")
	assert.NotEqual(t, float32(99), third[0])
}

func TestCachedEmbedder_BatchOnlyEmbedsMisses(t *testing.T) {
	inner := &countingEmbedder{HashEmbedder: *NewHashEmbedder(8)}
	c := NewCachedEmbedder(inner, 8)
	ctx := context.Background()

	_, err := c.Embed(ctx, "a")
	require.NoError(t, err)
	out, err := c.EmbedBatch(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)

	assert.Len(t, out, 3)
	assert.Equal(t, int32(3), inner.calls.Load())
	assert.Equal(t, 3, c.Len())
}

func TestOllamaEmbedder_EmbedsViaHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embed", r.URL.Path)
		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float64{{3, 4}}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(OllamaConfig{Host: srv.URL, Model: "test-model", Dimensions: 2})
	v, err := e.Embed(context.Background(), "hello")

	require.NoError(t, err)
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)
}

func TestOllamaEmbedder_ServerErrorIsEmbeddingFailure(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(OllamaConfig{Host: srv.URL, MaxRetries: 1})
	_, err := e.Embed(context.Background(), "hello")

	require.Error(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestFactory_OpenAIWithoutKeyFallsBackToHash(t *testing.T) {
	e, err := New(Options{Provider: ProviderOpenAI, Dimensions: 32})
	require.NoError(t, err)
	assert.Equal(t, "sha256", e.ModelName())
	assert.Equal(t, 32, e.Dimensions())
}

func TestFallbackEmbedder_UsesSecondaryOnError(t *testing.T) {
	primary := &countingEmbedder{HashEmbedder: *NewHashEmbedder(4), err: errors.New("down")}
	secondary := NewHashEmbedder(4)
	f := NewFallbackEmbedder(primary, secondary)

	v, err := f.Embed(context.Background(), "x")
	require.NoError(t, err)
	want, _ := secondary.Embed(context.Background(), "x")
	assert.Equal(t, want, v)
}

func TestParseProvider(t *testing.T) {
	assert.Equal(t, ProviderOllama, ParseProvider(" Ollama "))
	assert.Equal(t, ProviderOpenAI, ParseProvider("dashscope"))
	assert.Equal(t, ProviderSHA256, ParseProvider("whatever"))
}
