package chunk

import (
	"context"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
)

// SymbolExtractor extracts declarations from parsed source.
type SymbolExtractor struct {
	parser   *Parser
	registry *LanguageRegistry
}

// NewSymbolExtractor creates an extractor over the default registry.
func NewSymbolExtractor() *SymbolExtractor {
	return NewSymbolExtractorWithRegistry(DefaultRegistry())
}

// NewSymbolExtractorWithRegistry creates an extractor with a custom registry.
func NewSymbolExtractorWithRegistry(registry *LanguageRegistry) *SymbolExtractor {
	return &SymbolExtractor{
		parser:   NewParserWithRegistry(registry),
		registry: registry,
	}
}

// Supports reports whether language has a grammar.
func (e *SymbolExtractor) Supports(language string) bool {
	_, ok := e.registry.GetByName(language)
	return ok
}

// Extract returns every declaration in source, in document order.
// Nested declarations are qualified by their package and enclosing types.
func (e *SymbolExtractor) Extract(ctx context.Context, source []byte, language string) ([]*Symbol, error) {
	cfg, ok := e.registry.GetByName(language)
	if !ok {
		return nil, nil
	}

	tree, err := e.parser.Parse(ctx, source, language)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	w := &symbolWalk{
		cfg:    cfg,
		source: source,
		pkg:    packageName(root, cfg, source),
	}
	w.visit(root, nil)
	return w.symbols, nil
}

type symbolWalk struct {
	cfg     *LanguageConfig
	source  []byte
	pkg     string
	symbols []*Symbol
}

func (w *symbolWalk) visit(n *sitter.Node, containers []string) {
	if n == nil {
		return
	}

	nested := containers
	if kind, ok := w.cfg.SymbolKinds[n.Type()]; ok {
		if name := nodeName(n, w.source); name != "" {
			w.symbols = append(w.symbols, w.symbol(n, kind, name, containers))
			if w.cfg.ContainerTypes[n.Type()] {
				nested = append(append([]string(nil), containers...), name)
			}
		}
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		w.visit(n.NamedChild(i), nested)
	}
}

func (w *symbolWalk) symbol(n *sitter.Node, kind, name string, containers []string) *Symbol {
	parts := make([]string, 0, len(containers)+3)
	if w.pkg != "" {
		parts = append(parts, w.pkg)
	}
	parts = append(parts, containers...)

	switch n.Type() {
	case "method_declaration":
		// Go methods are qualified by their receiver type.
		if w.cfg.Name == "go" {
			if recv := firstDescendant(n.ChildByFieldName("receiver"), "type_identifier"); recv != nil {
				parts = append(parts, recv.Content(w.source))
			}
		}
	case "function_definition":
		if inPythonClass(n) {
			kind = KindMethod
		}
	case "type_spec":
		if t := n.ChildByFieldName("type"); t != nil && t.Type() == "interface_type" {
			kind = KindInterface
		}
	}
	parts = append(parts, name)

	return &Symbol{
		Name:          name,
		QualifiedName: strings.Join(parts, "."),
		Kind:          kind,
		Signature:     signature(n, w.source),
		StartLine:     lineOf(n.StartPoint()),
		EndLine:       lineOf(n.EndPoint()),
		Content:       n.Content(w.source),
	}
}

func nodeName(n *sitter.Node, source []byte) string {
	name := n.ChildByFieldName("name")
	if name == nil {
		return ""
	}
	return strings.TrimSpace(name.Content(source))
}

func packageName(root *sitter.Node, cfg *LanguageConfig, source []byte) string {
	if cfg.PackageType == "" || root == nil {
		return ""
	}
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if child.Type() != cfg.PackageType {
			continue
		}
		for j := 0; j < int(child.NamedChildCount()); j++ {
			id := child.NamedChild(j)
			switch id.Type() {
			case "scoped_identifier", "identifier", "package_identifier":
				return id.Content(source)
			}
		}
	}
	return ""
}

// inPythonClass reports whether a function_definition sits directly in a class body.
func inPythonClass(n *sitter.Node) bool {
	p := n.Parent()
	if p != nil && p.Type() == "decorated_definition" {
		p = p.Parent()
	}
	if p != nil && p.Type() == "block" {
		p = p.Parent()
	}
	return p != nil && p.Type() == "class_definition"
}

// signature is the declaration header: the node text before its body,
// whitespace collapsed and capped at MaxSignatureLen runes.
func signature(n *sitter.Node, source []byte) string {
	end := n.EndByte()
	if body := n.ChildByFieldName("body"); body != nil {
		end = body.StartByte()
	}
	start := n.StartByte()
	if end <= start || int(end) > len(source) {
		return ""
	}

	sig := strings.Join(strings.Fields(string(source[start:end])), " ")
	sig = strings.TrimSuffix(sig, ":")
	sig = strings.TrimSpace(strings.TrimSuffix(sig, ";"))
	if utf8.RuneCountInString(sig) > MaxSignatureLen {
		sig = string([]rune(sig)[:MaxSignatureLen])
	}
	return sig
}
