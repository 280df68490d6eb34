package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Creeper5261/Rikki-sub002/internal/docstore"
	"github.com/Creeper5261/Rikki-sub002/internal/embed"
	"github.com/Creeper5261/Rikki-sub002/internal/lookup"
)

type stubSource struct {
	name  string
	hits  []Hit
	err   error
	delay time.Duration
	calls atomic.Int32
	fails int32 // number of leading calls that fail
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(ctx context.Context, _, _ string, limit int) ([]Hit, error) {
	n := s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if n <= s.fails {
		return nil, errors.New("transient")
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.hits[:min(limit, len(s.hits))], nil
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.RetryBackoff = time.Millisecond
	return cfg
}

func TestSearch_BlankQueryDoesNoIO(t *testing.T) {
	src := &stubSource{name: "s"}
	o := NewOrchestrator(fastConfig(), src)

	assert.Empty(t, o.Search(context.Background(), "/repo", "   ", 5))
	assert.Equal(t, int32(0), src.calls.Load())
}

func TestSearch_SourcePriorityOnCollision(t *testing.T) {
	// Given a symbol source and a vector source reporting the same location
	symbol := &stubSource{name: "symbol", hits: []Hit{
		{FilePath: "src/Auth.java", SymbolKind: "method", SymbolName: "login", StartLine: 7, EndLine: 9},
	}}
	vector := &stubSource{name: "vector", hits: []Hit{
		{FilePath: "src/Auth.java", SymbolKind: "method", SymbolName: "Auth.login", StartLine: 7, EndLine: 9, Snippet: "login()"},
	}}
	o := NewOrchestrator(fastConfig(), symbol, vector)

	// When searched
	got := o.Search(context.Background(), "", "login", 5)

	// Then the symbol source's hit is the one kept
	require.Len(t, got, 1)
	assert.Equal(t, "login", got[0].Hit.SymbolName)
	assert.Empty(t, got[0].Hit.Snippet)
}

func TestSearch_CacheReturnsIndependentCopies(t *testing.T) {
	src := &stubSource{name: "vector", hits: []Hit{
		{FilePath: "a/login.go", StartLine: 1, Snippet: "func login() {}"},
	}}
	o := NewOrchestrator(fastConfig(), src)
	ctx := context.Background()

	first := o.Search(ctx, "/Repo ", "Login", 5)
	require.Len(t, first, 1)
	first[0].Score = -100
	first[0].Hit.FilePath = "mutated"

	second := o.Search(ctx, "/repo", " login", 5)

	require.Len(t, second, 1)
	assert.Equal(t, "a/login.go", second[0].Hit.FilePath)
	assert.Greater(t, second[0].Score, 0.0)
	assert.Equal(t, int32(1), src.calls.Load(), "second search is served from cache")

	second[0].Hit.FilePath = "again"
	third := o.Search(ctx, "/repo", "login", 5)
	assert.Equal(t, "a/login.go", third[0].Hit.FilePath)
}

func TestSearch_RetriesOnceThenSucceeds(t *testing.T) {
	src := &stubSource{name: "vector", fails: 1, hits: []Hit{
		{FilePath: "login.go", StartLine: 1, Snippet: "login"},
	}}
	o := NewOrchestrator(fastConfig(), src)

	got := o.Search(context.Background(), "", "login", 5)

	assert.Len(t, got, 1)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestSearch_FailingSourceContributesNothing(t *testing.T) {
	broken := &stubSource{name: "symbol", err: errors.New("down")}
	ok := &stubSource{name: "vector", hits: []Hit{{FilePath: "login.go", StartLine: 1, Snippet: "login"}}}
	o := NewOrchestrator(fastConfig(), broken, ok)

	got := o.Search(context.Background(), "", "login", 5)

	require.Len(t, got, 1)
	assert.Equal(t, "login.go", got[0].Hit.FilePath)
	assert.Equal(t, int32(2), broken.calls.Load())
}

func TestSearch_SalvagesCompletedSourcesOnTimeout(t *testing.T) {
	for _, mode := range []string{CancelModeCancel, CancelModeAbandon} {
		t.Run(mode, func(t *testing.T) {
			// Given one fast source and one that outlives every deadline
			fast := &stubSource{name: "symbol", hits: []Hit{{FilePath: "login.go", StartLine: 1, Snippet: "login"}}}
			slow := &stubSource{name: "vector", delay: time.Second, hits: []Hit{{FilePath: "late.go", StartLine: 1, Snippet: "login"}}}
			cfg := fastConfig()
			cfg.CancelMode = mode
			cfg.SourceTimeout = 50 * time.Millisecond
			cfg.OverallTimeout = 80 * time.Millisecond
			o := NewOrchestrator(cfg, fast, slow)

			// When searched
			start := time.Now()
			got := o.Search(context.Background(), "", "login", 5)

			// Then the fast source's hits come back within the overall bound
			assert.Less(t, time.Since(start), 500*time.Millisecond)
			require.Len(t, got, 1)
			assert.Equal(t, "login.go", got[0].Hit.FilePath)
		})
	}
}

func TestSearch_TopKDefaultsToFive(t *testing.T) {
	var hits []Hit
	for i := 0; i < 12; i++ {
		hits = append(hits, Hit{FilePath: "pkg/login.go", StartLine: i + 1, Snippet: "login"})
	}
	src := &stubSource{name: "vector", hits: hits}
	o := NewOrchestrator(fastConfig(), src)

	got := o.Search(context.Background(), "", "login", 0)

	assert.Len(t, got, 5)
}

// fakeSearchES answers every _search with fixed documents.
func fakeSearchES(t *testing.T, docs []map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits := make([]map[string]any, len(docs))
		for i, d := range docs {
			hits[i] = map[string]any{"_score": 1.5 - float64(i)*0.1, "_source": d}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"hits": map[string]any{"hits": hits}})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSearch_UserServiceScenario(t *testing.T) {
	// Given a workspace with a service class and an unrelated file
	root := t.TempDir()
	userService := "public class UserService {\n    public void login() {\n    }\n}\n"
	other := "public class Other {\n    void run() {}\n}\n"
	writeFile(t, root, "src/UserService.java", userService)
	writeFile(t, root, "src/Other.java", other)

	es := fakeSearchES(t, []map[string]any{
		{"filePath": "src/Other.java", "symbolKind": "class", "symbolName": "Other",
			"startLine": 1, "endLine": 3, "content": other},
		{"filePath": "src/UserService.java", "symbolKind": "class", "symbolName": "UserService",
			"startLine": 1, "endLine": 4, "content": userService},
	})
	client := docstore.New(docstore.Config{URL: es.URL, Dimensions: 16})
	vectors := docstore.NewVectorSearcher(client, embed.NewHashEmbedder(16))
	o := NewHybrid(fastConfig(), lookup.NewSymbolIndex(), lookup.NewFileIndex(), vectors, nil)

	// When searching for the service and its method
	got := o.Search(context.Background(), root, "UserService login", 5)

	// Then the service is found with a passing score and the other file is filtered
	require.NotEmpty(t, got)
	var paths []string
	for _, h := range got {
		paths = append(paths, h.Hit.FilePath)
	}
	assert.Contains(t, paths, "src/UserService.java")
	assert.NotContains(t, paths, "src/Other.java")
	for _, h := range got {
		assert.GreaterOrEqual(t, h.Score, 5.0)
	}
}

func TestCacheKey_Normalizes(t *testing.T) {
	assert.Equal(t, CacheKey("/Repo ", " Login", 5), CacheKey("/repo", "login", 5))
	assert.NotEqual(t, CacheKey("/repo", "login", 5), CacheKey("/repo", "login", 6))
}

func TestConfig_WithDefaults(t *testing.T) {
	// Zero durations and sizes take the defaults
	got := Config{}.withDefaults()
	assert.Equal(t, DefaultSourceTimeout, got.SourceTimeout)
	assert.Equal(t, DefaultOverallTimeout, got.OverallTimeout)
	assert.Equal(t, DefaultRetryBackoff, got.RetryBackoff)
	assert.Equal(t, DefaultResultCache, got.CacheSize)
	assert.Equal(t, CancelModeCancel, got.CancelMode)

	// Retries are taken as given
	assert.Equal(t, 0, got.SourceRetries)
	assert.Equal(t, 0, Config{SourceRetries: -3}.withDefaults().SourceRetries)
	assert.Equal(t, DefaultSourceRetries, DefaultConfig().withDefaults().SourceRetries)
}
