package chunk

import (
	"context"
	"strconv"
)

// CodeChunker emits one chunk per declaration for languages with a grammar
// and falls back to text windows for everything else.
type CodeChunker struct {
	extractor *SymbolExtractor
	text      *TextChunker
}

// CodeChunkerOptions configures the text fallback.
type CodeChunkerOptions struct {
	MaxLines int
	MaxChars int
}

// NewCodeChunker creates a new code chunker with default options
func NewCodeChunker() *CodeChunker {
	return NewCodeChunkerWithOptions(CodeChunkerOptions{})
}

// NewCodeChunkerWithOptions creates a new code chunker with custom options
func NewCodeChunkerWithOptions(opts CodeChunkerOptions) *CodeChunker {
	return &CodeChunker{
		extractor: NewSymbolExtractor(),
		text:      NewTextChunker(opts.MaxLines, opts.MaxChars),
	}
}

// Chunk splits file into symbol chunks. A file in a supported language
// with no declarations (or one that fails to parse) is chunked as text.
func (c *CodeChunker) Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error) {
	if len(file.Content) == 0 {
		return nil, nil
	}

	rel := normalizePath(file.Path)
	lang := file.Language
	if lang == "" {
		lang = DetectLanguage(rel)
	}
	input := &FileInput{Path: rel, Content: file.Content, Language: lang}

	if !c.extractor.Supports(lang) {
		return c.text.Chunk(ctx, input)
	}

	symbols, err := c.extractor.Extract(ctx, file.Content, lang)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return c.text.Chunk(ctx, input)
	}
	if len(symbols) == 0 {
		return c.text.Chunk(ctx, input)
	}

	chunks := make([]*Chunk, 0, len(symbols))
	for _, s := range symbols {
		chunks = append(chunks, &Chunk{
			ID:        rel + "|" + s.Kind + "|" + s.Name + "|" + strconv.Itoa(s.StartLine),
			FilePath:  rel,
			Language:  lang,
			Kind:      s.Kind,
			Name:      s.QualifiedName,
			Signature: s.Signature,
			StartLine: s.StartLine,
			EndLine:   s.EndLine,
			Content:   s.Content,
		})
	}
	return chunks, nil
}
