package chunk

import (
	"context"
	"path"
	"strconv"
	"strings"
)

// TextChunker splits a file into consecutive line windows.
type TextChunker struct {
	MaxLines int
	MaxChars int
}

// NewTextChunker creates a text chunker. Non-positive limits use the defaults.
func NewTextChunker(maxLines, maxChars int) *TextChunker {
	if maxLines <= 0 {
		maxLines = DefaultMaxLines
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &TextChunker{MaxLines: maxLines, MaxChars: maxChars}
}

// Chunk closes a window when it reaches MaxLines lines, MaxChars bytes or
// the end of the file. An empty file yields no chunks.
func (t *TextChunker) Chunk(_ context.Context, file *FileInput) ([]*Chunk, error) {
	if len(file.Content) == 0 {
		return nil, nil
	}

	rel := normalizePath(file.Path)
	if rel == "" {
		rel = "unknown"
	}
	lang := file.Language
	if lang == "" {
		lang = DetectLanguage(rel)
	}
	name := path.Base(rel)

	lines := strings.Split(string(file.Content), "\n")
	chunks := make([]*Chunk, 0, len(lines)/t.MaxLines+1)

	var buf strings.Builder
	startLine := 1
	for i, line := range lines {
		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(line)

		lineNo := i + 1
		if lineNo-startLine+1 >= t.MaxLines || buf.Len() >= t.MaxChars || i == len(lines)-1 {
			chunks = append(chunks, &Chunk{
				ID:        rel + "|" + KindFile + "|" + strconv.Itoa(startLine),
				FilePath:  rel,
				Language:  lang,
				Kind:      KindFile,
				Name:      name,
				Signature: name,
				StartLine: startLine,
				EndLine:   lineNo,
				Content:   buf.String(),
			})
			buf.Reset()
			startLine = lineNo + 1
		}
	}
	return chunks, nil
}

func normalizePath(p string) string {
	return strings.TrimPrefix(strings.ReplaceAll(strings.TrimSpace(p), "\\", "/"), "./")
}
