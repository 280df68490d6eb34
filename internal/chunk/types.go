// Package chunk splits source files into indexable fragments.
//
// Files in a language with a tree-sitter grammar are split per symbol
// (class, method, function, type). Everything else is split into
// fixed-size plain-text windows.
package chunk

import "context"

// Text chunk defaults.
const (
	DefaultMaxLines = 200
	DefaultMaxChars = 8000
	MaxSignatureLen = 200
)

// Symbol kinds emitted by the chunkers.
const (
	KindClass     = "class"
	KindInterface = "interface"
	KindEnum      = "enum"
	KindMethod    = "method"
	KindCtor      = "ctor"
	KindFunction  = "function"
	KindType      = "type"
	KindFile      = "file"
)

// Chunk is one indexable fragment of a file.
type Chunk struct {
	ID        string // file|kind|name|startLine for symbols, file|file|startLine for text
	FilePath  string // relative to the workspace root, forward slashes
	Language  string
	Kind      string
	Name      string // qualified for symbols, base name for text
	Signature string
	StartLine int // 1-indexed
	EndLine   int // inclusive
	Content   string
}

// FileInput is input for the Chunker interface.
type FileInput struct {
	Path     string // Relative path
	Content  []byte
	Language string // empty means detect from Path
}

// Chunker splits a file into fragments.
type Chunker interface {
	Chunk(ctx context.Context, file *FileInput) ([]*Chunk, error)
}

// Symbol is a declaration found by the SymbolExtractor.
type Symbol struct {
	Name          string // simple name
	QualifiedName string // package and enclosing types joined by '.'
	Kind          string
	Signature     string
	StartLine     int
	EndLine       int
	Content       string
}
