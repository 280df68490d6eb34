package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/Creeper5261/Rikki-sub002/internal/embed"
	apperrors "github.com/Creeper5261/Rikki-sub002/internal/errors"
)

// SimilarityScript ranks every document by cosine similarity to the query vector.
const SimilarityScript = "cosineSimilarity(params.queryVector, 'contentVector') + 1.0"

// SearchHit is one similarity result.
type SearchHit struct {
	FilePath   string
	SymbolKind string
	SymbolName string
	StartLine  int
	EndLine    int
	Snippet    string
	Truncated  bool
	Score      float64
}

// VectorSearcher runs similarity queries against a workspace index.
type VectorSearcher struct {
	client   *Client
	embedder embed.Embedder
}

// NewVectorSearcher creates a searcher. Query vectors are cached in an LRU
// keyed by the trimmed, lowercased query unless embedder already caches.
func NewVectorSearcher(client *Client, embedder embed.Embedder) *VectorSearcher {
	if _, ok := embedder.(*embed.CachedEmbedder); !ok {
		embedder = embed.NewCachedEmbedder(embedder, embed.DefaultQueryCacheSize)
	}
	return &VectorSearcher{client: client, embedder: embedder}
}

type scriptScoreQuery struct {
	Size  int `json:"size"`
	Query struct {
		ScriptScore struct {
			Query  map[string]any `json:"query"`
			Script struct {
				Source string               `json:"source"`
				Params map[string][]float32 `json:"params"`
			} `json:"script"`
		} `json:"script_score"`
	} `json:"query"`
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Score  float64 `json:"_score"`
			Source struct {
				FilePath   string `json:"filePath"`
				SymbolKind string `json:"symbolKind"`
				SymbolName string `json:"symbolName"`
				StartLine  int    `json:"startLine"`
				EndLine    int    `json:"endLine"`
				Content    string `json:"content"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// SearchBody builds the script_score request body.
func SearchBody(vector []float32, topK int) ([]byte, error) {
	var q scriptScoreQuery
	q.Size = topK
	q.Query.ScriptScore.Query = map[string]any{"match_all": map[string]any{}}
	q.Query.ScriptScore.Script.Source = SimilarityScript
	if vector == nil {
		vector = []float32{}
	}
	q.Query.ScriptScore.Script.Params = map[string][]float32{"queryVector": vector}
	return json.Marshal(q)
}

// Search returns the topK most similar fragments in index. Each attempt is
// bounded by SearchTimeout and one retry follows a failure. It never returns
// an error value: on failure hits are empty and errMsg describes the cause.
func (s *VectorSearcher) Search(ctx context.Context, index, query string, topK, maxSnippetChars int) (hits []SearchHit, errMsg string) {
	start := time.Now()
	attempt := 0

	hits, err := apperrors.RetryWithResult(ctx, apperrors.LinearRetryConfig(SearchRetries, SearchBackoff), func() ([]SearchHit, error) {
		attempt++
		return s.searchOnce(ctx, index, query, topK, maxSnippetChars, attempt)
	})
	if err != nil {
		slog.Warn("vector_search_failed",
			slog.String("index", index),
			slog.Int("attempts", attempt),
			slog.Duration("took", time.Since(start)),
			slog.String("query", truncate(query, 200)),
			slog.String("error", err.Error()))
		return []SearchHit{}, err.Error()
	}

	slog.Debug("vector_search_ok",
		slog.String("index", index),
		slog.Int("hits", len(hits)),
		slog.Int("attempts", attempt),
		slog.Duration("took", time.Since(start)))
	return hits, ""
}

func (s *VectorSearcher) searchOnce(ctx context.Context, index, query string, topK, maxSnippetChars, attempt int) ([]SearchHit, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	body, err := SearchBody(vec, topK)
	if err != nil {
		return nil, err
	}

	var resp response
	call := func() error {
		r, err := s.client.do(ctx, SearchTimeout, http.MethodPost, "/"+index+"/_search", "application/json", body)
		if err != nil {
			return err
		}
		if !r.ok() {
			return fmt.Errorf("status=%d", r.status)
		}
		resp = r
		return nil
	}
	if s.client.breaker != nil {
		err = s.client.breaker.Execute(call)
	} else {
		err = call()
	}
	if err != nil {
		slog.Debug("vector_search_attempt_failed",
			slog.String("index", index),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))
		return nil, err
	}

	var parsed searchResponse
	if err := json.Unmarshal(resp.body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	hits := make([]SearchHit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		snippet, truncated := truncateSnippet(h.Source.Content, maxSnippetChars)
		hits = append(hits, SearchHit{
			FilePath:   h.Source.FilePath,
			SymbolKind: h.Source.SymbolKind,
			SymbolName: h.Source.SymbolName,
			StartLine:  h.Source.StartLine,
			EndLine:    h.Source.EndLine,
			Snippet:    snippet,
			Truncated:  truncated,
			Score:      h.Score,
		})
	}
	return hits, nil
}

func truncateSnippet(s string, max int) (string, bool) {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s, false
	}
	return string([]rune(s)[:max]), true
}
