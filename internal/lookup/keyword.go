package lookup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"

	"github.com/Creeper5261/Rikki-sub002/internal/chunk"
)

const (
	// KeywordTokenizerName is the bleve tokenizer for source identifiers.
	KeywordTokenizerName = "keyword_code_tokenizer"

	// KeywordAnalyzerName lowercases the identifier tokens.
	KeywordAnalyzerName = "keyword_code_analyzer"

	// keywordMaxFileBytes skips files too large to be useful as a fallback.
	keywordMaxFileBytes = 1024 * 1024
)

func init() {
	_ = registry.RegisterTokenizer(KeywordTokenizerName, func(map[string]interface{}, *registry.Cache) (analysis.Tokenizer, error) {
		return identifierTokenizer{}, nil
	})
}

// KeywordHit is one chunk matched by the keyword index.
type KeywordHit struct {
	FilePath  string
	Kind      string
	Name      string
	StartLine int
	EndLine   int
	Snippet   string
	Truncated bool
	Score     float64
}

// keywordDoc is the bleve document of a chunk.
type keywordDoc struct {
	Content string `json:"content"`
	Name    string `json:"name"`
}

type keywordTable struct {
	index  bleve.Index
	chunks map[string]*chunk.Chunk
}

// KeywordIndex is an in-memory full-text index over the chunks of each root.
// It answers queries when the document store is unreachable or returns
// nothing.
type KeywordIndex struct {
	chunker *chunk.CodeChunker
	tables  *rootCache[*keywordTable]
}

// NewKeywordIndex creates an empty index.
func NewKeywordIndex() *KeywordIndex {
	return &KeywordIndex{
		chunker: chunk.NewCodeChunker(),
		tables:  newRootCache[*keywordTable](),
	}
}

// Search returns up to limit chunks under root ranked by term relevance.
// Snippets longer than maxSnippetChars runes are cut.
func (x *KeywordIndex) Search(ctx context.Context, root, query string, limit, maxSnippetChars int) ([]KeywordHit, error) {
	if limit <= 0 || len(identifierSpans(query)) == 0 || root == "" {
		return nil, nil
	}
	table, err := x.table(ctx, root)
	if err != nil {
		return nil, err
	}
	if len(table.chunks) == 0 {
		return nil, nil
	}

	content := bleve.NewMatchQuery(query)
	content.SetField("content")
	name := bleve.NewMatchQuery(query)
	name.SetField("name")
	name.SetBoost(2)
	req := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(content, name), limit, 0, false)

	res, err := table.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	hits := make([]KeywordHit, 0, len(res.Hits))
	for _, m := range res.Hits {
		c, ok := table.chunks[m.ID]
		if !ok {
			continue
		}
		snippet, truncated := cutSnippet(c.Content, maxSnippetChars)
		hits = append(hits, KeywordHit{
			FilePath:  c.FilePath,
			Kind:      c.Kind,
			Name:      c.Name,
			StartLine: c.StartLine,
			EndLine:   c.EndLine,
			Snippet:   snippet,
			Truncated: truncated,
			Score:     m.Score,
		})
	}
	return hits, nil
}

// Invalidate drops the index for root.
func (x *KeywordIndex) Invalidate(root string) {
	x.tables.invalidate(rootKey(root))
}

// Rebuild replaces the index for root with a fresh walk.
func (x *KeywordIndex) Rebuild(ctx context.Context, root string) error {
	table, err := x.build(ctx, root)
	if err != nil {
		return err
	}
	x.tables.set(rootKey(root), table)
	return nil
}

func (x *KeywordIndex) table(ctx context.Context, root string) (*keywordTable, error) {
	return x.tables.get(ctx, rootKey(root), func(ctx context.Context) (*keywordTable, error) {
		return x.build(ctx, root)
	})
}

func (x *KeywordIndex) build(ctx context.Context, root string) (*keywordTable, error) {
	start := time.Now()
	index, err := bleve.NewMemOnly(keywordMapping())
	if err != nil {
		return nil, fmt.Errorf("create keyword index: %w", err)
	}
	table := &keywordTable{index: index, chunks: make(map[string]*chunk.Chunk)}
	batch := index.NewBatch()
	files := 0

	err = walkFiles(ctx, rootKey(root), symbolSkipDirs, func(rel, abs string) {
		if !chunk.IsIndexable(rel) {
			return
		}
		info, err := os.Stat(abs)
		if err != nil || info.Size() > keywordMaxFileBytes {
			return
		}
		src, err := os.ReadFile(abs)
		if err != nil {
			return
		}
		chunks, err := x.chunker.Chunk(ctx, &chunk.FileInput{Path: rel, Content: src})
		if err != nil {
			slog.Debug("keyword_index_chunk_failed", slog.String("path", rel), slog.String("error", err.Error()))
			return
		}
		files++
		for _, c := range chunks {
			if _, dup := table.chunks[c.ID]; dup {
				continue
			}
			if err := batch.Index(c.ID, keywordDoc{Content: c.Content, Name: c.Name}); err != nil {
				continue
			}
			table.chunks[c.ID] = c
		}
	})
	if err != nil {
		_ = index.Close()
		return nil, err
	}
	if err := index.Batch(batch); err != nil {
		_ = index.Close()
		return nil, fmt.Errorf("fill keyword index: %w", err)
	}
	slog.Info("keyword_index_built",
		slog.String("root", root),
		slog.Int("files", files),
		slog.Int("chunks", len(table.chunks)),
		slog.Duration("took", time.Since(start)))
	return table, nil
}

func keywordMapping() *mapping.IndexMappingImpl {
	m := bleve.NewIndexMapping()
	// only fails on a duplicate name or an unknown component
	_ = m.AddCustomAnalyzer(KeywordAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     KeywordTokenizerName,
		"token_filters": []string{lowercase.Name},
	})
	m.DefaultAnalyzer = KeywordAnalyzerName
	return m
}

func cutSnippet(s string, max int) (string, bool) {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s, false
	}
	return string([]rune(s)[:max]), true
}

// identifierTokenizer emits every identifier (letters, digits, '_' and '$')
// followed by its camelCase and snake_case parts of two or more characters,
// so "getUserName" matches "user" as well as "getusername".
type identifierTokenizer struct{}

func (identifierTokenizer) Tokenize(input []byte) analysis.TokenStream {
	var out analysis.TokenStream
	pos := 1
	emit := func(start, end int) {
		out = append(out, &analysis.Token{
			Term:     append([]byte(nil), input[start:end]...),
			Start:    start,
			End:      end,
			Position: pos,
			Type:     analysis.AlphaNumeric,
		})
		pos++
	}
	for _, span := range identifierSpans(string(input)) {
		emit(span[0], span[1])
		parts := identifierParts(string(input[span[0]:span[1]]))
		if len(parts) < 2 {
			continue
		}
		for _, p := range parts {
			if p[1]-p[0] >= 2 {
				emit(span[0]+p[0], span[0]+p[1])
			}
		}
	}
	return out
}

func isIdentRune(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// identifierSpans returns the byte ranges of the identifiers in s.
func identifierSpans(s string) [][2]int {
	var spans [][2]int
	start := -1
	for i, r := range s {
		if isIdentRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			spans = append(spans, [2]int{start, i})
			start = -1
		}
	}
	if start >= 0 {
		spans = append(spans, [2]int{start, len(s)})
	}
	return spans
}

// identifierParts splits an identifier at '_', '$', case changes and
// letter-digit boundaries. "HTTPServer2" yields "HTTP", "Server" and "2".
func identifierParts(id string) [][2]int {
	runes := []rune(id)
	offsets := make([]int, len(runes)+1)
	for i, b := 0, 0; i < len(runes); i++ {
		offsets[i] = b
		b += utf8.RuneLen(runes[i])
		offsets[i+1] = b
	}

	var parts [][2]int
	start := -1
	flush := func(end int) {
		if start >= 0 && end > start {
			parts = append(parts, [2]int{offsets[start], offsets[end]})
		}
		start = -1
	}
	for i, r := range runes {
		if r == '_' || r == '$' {
			flush(i)
			continue
		}
		if start >= 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			switch {
			case unicode.IsDigit(r) != unicode.IsDigit(prev):
				flush(i)
			case unicode.IsUpper(r) && (unicode.IsLower(prev) || (unicode.IsUpper(prev) && nextLower)):
				flush(i)
			}
		}
		if start < 0 {
			start = i
		}
	}
	flush(len(runes))
	return parts
}
