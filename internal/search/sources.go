package search

import (
	"context"
	"errors"
	"log/slog"
	"path"

	"github.com/Creeper5261/Rikki-sub002/internal/docstore"
	"github.com/Creeper5261/Rikki-sub002/internal/lookup"
	"github.com/Creeper5261/Rikki-sub002/internal/workspace"
)

// VectorSnippetChars caps the snippet of each similarity hit.
const VectorSnippetChars = 600

// VectorSearcher is the similarity query of the document store.
type VectorSearcher interface {
	Search(ctx context.Context, index, query string, topK, maxSnippetChars int) ([]docstore.SearchHit, string)
}

// KeywordSearcher is the in-process full-text index used when the document
// store cannot answer.
type KeywordSearcher interface {
	Search(ctx context.Context, root, query string, limit, maxSnippetChars int) ([]lookup.KeywordHit, error)
}

// SymbolFinder resolves symbol names under a workspace root.
type SymbolFinder interface {
	Find(ctx context.Context, root, query string) ([]lookup.SymbolEntry, error)
}

// FileFinder matches file names under a workspace root.
type FileFinder interface {
	Search(ctx context.Context, root, query string) ([]string, error)
}

// VectorSource queries the workspace's document store index. With a keyword
// fallback it answers from the in-process index when the store reports an
// error or finds nothing.
type VectorSource struct {
	searcher     VectorSearcher
	keywords     KeywordSearcher
	snippetChars int
}

// NewVectorSource creates a vector source. keywords may be nil.
func NewVectorSource(searcher VectorSearcher, keywords KeywordSearcher) *VectorSource {
	return &VectorSource{searcher: searcher, keywords: keywords, snippetChars: VectorSnippetChars}
}

// Name implements Source.
func (s *VectorSource) Name() string { return "vector" }

// Fetch implements Source.
func (s *VectorSource) Fetch(ctx context.Context, root, query string, limit int) ([]Hit, error) {
	found, errMsg := s.searcher.Search(ctx, workspace.IndexName(root), query, limit, s.snippetChars)
	if (errMsg != "" || len(found) == 0) && s.keywords != nil {
		hits, err := s.fallback(ctx, root, query, limit, errMsg)
		if err == nil && (len(hits) > 0 || errMsg != "") {
			return hits, nil
		}
	}
	if errMsg != "" && len(found) == 0 {
		return nil, errors.New(errMsg)
	}
	hits := make([]Hit, len(found))
	for i, f := range found {
		hits[i] = Hit{
			FilePath:   f.FilePath,
			SymbolKind: f.SymbolKind,
			SymbolName: f.SymbolName,
			StartLine:  f.StartLine,
			EndLine:    f.EndLine,
			Snippet:    f.Snippet,
			Truncated:  f.Truncated,
		}
	}
	return hits, nil
}

func (s *VectorSource) fallback(ctx context.Context, root, query string, limit int, storeErr string) ([]Hit, error) {
	found, err := s.keywords.Search(ctx, root, query, limit, s.snippetChars)
	if err != nil {
		slog.Warn("search_keyword_fallback_failed",
			slog.String("root", root),
			slog.String("error", err.Error()))
		return nil, err
	}
	slog.Info("search_vector_fallback",
		slog.String("root", root),
		slog.String("store_error", storeErr),
		slog.Int("hits", len(found)))
	hits := make([]Hit, len(found))
	for i, f := range found {
		hits[i] = Hit{
			FilePath:   f.FilePath,
			SymbolKind: f.Kind,
			SymbolName: f.Name,
			StartLine:  f.StartLine,
			EndLine:    f.EndLine,
			Snippet:    f.Snippet,
			Truncated:  f.Truncated,
		}
	}
	return hits, nil
}

// SymbolSource looks query up as a symbol name.
type SymbolSource struct {
	finder SymbolFinder
}

// NewSymbolSource creates a symbol source.
func NewSymbolSource(finder SymbolFinder) *SymbolSource {
	return &SymbolSource{finder: finder}
}

// Name implements Source.
func (s *SymbolSource) Name() string { return "symbol" }

// Fetch implements Source.
func (s *SymbolSource) Fetch(ctx context.Context, root, query string, limit int) ([]Hit, error) {
	entries, err := s.finder.Find(ctx, root, query)
	if err != nil {
		return nil, err
	}
	entries = entries[:min(limit, len(entries))]
	hits := make([]Hit, len(entries))
	for i, e := range entries {
		hits[i] = Hit{
			FilePath:   e.FilePath,
			SymbolKind: e.Kind,
			SymbolName: e.Name,
			StartLine:  e.StartLine,
			EndLine:    e.EndLine,
		}
	}
	return hits, nil
}

// FileSource matches query against file names.
type FileSource struct {
	finder FileFinder
}

// NewFileSource creates a filename source.
func NewFileSource(finder FileFinder) *FileSource {
	return &FileSource{finder: finder}
}

// Name implements Source.
func (s *FileSource) Name() string { return "file" }

// Fetch implements Source.
func (s *FileSource) Fetch(ctx context.Context, root, query string, limit int) ([]Hit, error) {
	files, err := s.finder.Search(ctx, root, query)
	if err != nil {
		return nil, err
	}
	files = files[:min(limit, len(files))]
	hits := make([]Hit, len(files))
	for i, f := range files {
		hits[i] = Hit{FilePath: f, SymbolKind: "file", SymbolName: path.Base(f)}
	}
	return hits, nil
}

var (
	_ Source = (*VectorSource)(nil)
	_ Source = (*SymbolSource)(nil)
	_ Source = (*FileSource)(nil)
)
