// Package search implements the hybrid code search.
//
// A query fans out to three sources (symbol lookup, filename lookup and
// vector similarity) in parallel. Their hits are merged with symbol hits
// first, deduplicated by location, hydrated from disk, scored with a keyword
// heuristic and filtered by a minimum score.
package search

import "context"

// Hit is one search result location. Values are never mutated in place;
// operations that change a hit return a new one.
type Hit struct {
	FilePath   string `json:"filePath"`
	SymbolKind string `json:"symbolKind,omitempty"`
	SymbolName string `json:"symbolName,omitempty"`
	StartLine  int    `json:"startLine"`
	EndLine    int    `json:"endLine"`
	Snippet    string `json:"snippet,omitempty"`
	Truncated  bool   `json:"truncated,omitempty"`
}

// HasSnippet reports whether the hit carries content.
func (h Hit) HasSnippet() bool { return h.Snippet != "" }

// ScoredHit pairs a hit with its heuristic score.
type ScoredHit struct {
	Hit   Hit     `json:"hit"`
	Score float64 `json:"score"`
}

// Source is one retrieval backend of the hybrid search.
type Source interface {
	// Name identifies the source in logs.
	Name() string

	// Fetch returns at most limit hits for query under root.
	Fetch(ctx context.Context, root, query string, limit int) ([]Hit, error)
}

// Searcher is what callers of the hybrid search depend on.
type Searcher interface {
	Search(ctx context.Context, root, query string, topK int) []ScoredHit
}

func cloneScored(in []ScoredHit) []ScoredHit {
	if in == nil {
		return nil
	}
	out := make([]ScoredHit, len(in))
	copy(out, in)
	return out
}
