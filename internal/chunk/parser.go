package chunk

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// Parser wraps tree-sitter for AST parsing.
//
// A tree-sitter parser is not safe for concurrent use, so Parse creates
// one per call and releases it before returning.
type Parser struct {
	registry *LanguageRegistry
}

// NewParser creates a new parser with default language registry
func NewParser() *Parser {
	return NewParserWithRegistry(DefaultRegistry())
}

// NewParserWithRegistry creates a new parser with a custom language registry
func NewParserWithRegistry(registry *LanguageRegistry) *Parser {
	return &Parser{registry: registry}
}

// Parse parses source code and returns the syntax tree. Callers must Close it.
func (p *Parser) Parse(ctx context.Context, source []byte, language string) (*sitter.Tree, error) {
	tsLang, ok := p.registry.GetTreeSitterLanguage(language)
	if !ok {
		return nil, fmt.Errorf("unsupported language: %s", language)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(tsLang)

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse source: %w", err)
	}
	if tree == nil {
		return nil, fmt.Errorf("failed to parse source: nil tree")
	}
	return tree, nil
}

// lineOf converts a tree-sitter row to a 1-indexed line.
func lineOf(p sitter.Point) int {
	return int(p.Row) + 1
}

func firstDescendant(n *sitter.Node, nodeType string) *sitter.Node {
	if n == nil {
		return nil
	}
	if n.Type() == nodeType {
		return n
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if found := firstDescendant(n.NamedChild(i), nodeType); found != nil {
			return found
		}
	}
	return nil
}
