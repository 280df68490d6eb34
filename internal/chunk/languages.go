package chunk

import (
	"path"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// LanguageConfig describes how symbols are found in one grammar.
type LanguageConfig struct {
	Name       string
	Extensions []string

	// SymbolKinds maps a tree-sitter node type to the emitted kind.
	SymbolKinds map[string]string

	// ContainerTypes are node types whose name prefixes nested symbols.
	ContainerTypes map[string]bool

	// PackageType is the node type that declares the file's package, if any.
	PackageType string
}

// LanguageRegistry manages supported languages and their configurations
type LanguageRegistry struct {
	mu          sync.RWMutex
	configs     map[string]*LanguageConfig
	extToLang   map[string]string
	tsLanguages map[string]*sitter.Language
}

// NewLanguageRegistry creates a registry with the built-in grammars.
func NewLanguageRegistry() *LanguageRegistry {
	r := &LanguageRegistry{
		configs:     make(map[string]*LanguageConfig),
		extToLang:   make(map[string]string),
		tsLanguages: make(map[string]*sitter.Language),
	}

	r.registerJava()
	r.registerGo()
	r.registerPython()
	r.registerJavaScript()
	r.registerTypeScript()

	return r
}

// GetByExtension returns the language configuration for a file extension
func (r *LanguageRegistry) GetByExtension(ext string) (*LanguageConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	name, ok := r.extToLang[ext]
	if !ok {
		return nil, false
	}
	cfg, ok := r.configs[name]
	return cfg, ok
}

// GetByName returns the language configuration by name
func (r *LanguageRegistry) GetByName(name string) (*LanguageConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[name]
	return cfg, ok
}

// GetTreeSitterLanguage returns the grammar for a language name.
func (r *LanguageRegistry) GetTreeSitterLanguage(name string) (*sitter.Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lang, ok := r.tsLanguages[name]
	return lang, ok
}

// SupportedExtensions returns all extensions with a grammar.
func (r *LanguageRegistry) SupportedExtensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exts := make([]string, 0, len(r.extToLang))
	for ext := range r.extToLang {
		exts = append(exts, ext)
	}
	return exts
}

func (r *LanguageRegistry) registerLanguage(cfg *LanguageConfig, tsLang *sitter.Language) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.configs[cfg.Name] = cfg
	r.tsLanguages[cfg.Name] = tsLang
	for _, ext := range cfg.Extensions {
		r.extToLang[ext] = cfg.Name
	}
}

func (r *LanguageRegistry) registerJava() {
	r.registerLanguage(&LanguageConfig{
		Name:       "java",
		Extensions: []string{".java"},
		SymbolKinds: map[string]string{
			"class_declaration":       KindClass,
			"record_declaration":      KindClass,
			"interface_declaration":   KindInterface,
			"enum_declaration":        KindEnum,
			"method_declaration":      KindMethod,
			"constructor_declaration": KindCtor,
		},
		ContainerTypes: map[string]bool{
			"class_declaration":     true,
			"record_declaration":    true,
			"interface_declaration": true,
			"enum_declaration":      true,
		},
		PackageType: "package_declaration",
	}, java.GetLanguage())
}

func (r *LanguageRegistry) registerGo() {
	r.registerLanguage(&LanguageConfig{
		Name:       "go",
		Extensions: []string{".go"},
		SymbolKinds: map[string]string{
			"function_declaration": KindFunction,
			"method_declaration":   KindMethod,
			"type_spec":            KindType,
		},
		ContainerTypes: map[string]bool{},
		PackageType:    "package_clause",
	}, golang.GetLanguage())
}

func (r *LanguageRegistry) registerPython() {
	r.registerLanguage(&LanguageConfig{
		Name:       "python",
		Extensions: []string{".py"},
		SymbolKinds: map[string]string{
			"function_definition": KindFunction,
			"class_definition":    KindClass,
		},
		ContainerTypes: map[string]bool{
			"class_definition": true,
		},
	}, python.GetLanguage())
}

func (r *LanguageRegistry) registerJavaScript() {
	cfg := &LanguageConfig{
		Name:       "javascript",
		Extensions: []string{".js", ".mjs", ".jsx"},
		SymbolKinds: map[string]string{
			"function_declaration": KindFunction,
			"class_declaration":    KindClass,
			"method_definition":    KindMethod,
		},
		ContainerTypes: map[string]bool{
			"class_declaration": true,
		},
	}
	r.registerLanguage(cfg, javascript.GetLanguage())
}

func (r *LanguageRegistry) registerTypeScript() {
	kinds := map[string]string{
		"function_declaration":       KindFunction,
		"class_declaration":          KindClass,
		"abstract_class_declaration": KindClass,
		"method_definition":          KindMethod,
		"interface_declaration":      KindInterface,
		"type_alias_declaration":     KindType,
	}
	containers := map[string]bool{
		"class_declaration":          true,
		"abstract_class_declaration": true,
		"interface_declaration":      true,
	}

	r.registerLanguage(&LanguageConfig{
		Name:           "typescript",
		Extensions:     []string{".ts"},
		SymbolKinds:    kinds,
		ContainerTypes: containers,
	}, typescript.GetLanguage())

	// TSX shares node types with TypeScript but needs its own grammar.
	r.registerLanguage(&LanguageConfig{
		Name:           "tsx",
		Extensions:     []string{".tsx"},
		SymbolKinds:    kinds,
		ContainerTypes: containers,
	}, tsx.GetLanguage())
}

var defaultRegistry = NewLanguageRegistry()

// DefaultRegistry returns the global language registry
func DefaultRegistry() *LanguageRegistry {
	return defaultRegistry
}

var indexableExts = map[string]bool{
	"java": true, "kt": true, "kts": true,
	"xml": true, "yml": true, "yaml": true, "properties": true, "gradle": true,
	"md": true, "txt": true, "sql": true, "json": true,
	"py": true, "js": true, "mjs": true, "ts": true, "tsx": true, "jsx": true,
	"html": true, "css": true, "scss": true, "less": true,
	"c": true, "cpp": true, "h": true, "hpp": true, "rs": true, "go": true,
	"rb": true, "php": true, "sh": true, "bat": true, "ps1": true,
	"dockerfile": true, "conf": true, "ini": true, "toml": true,
}

// Extension returns the lowercase extension of p without the dot.
func Extension(p string) string {
	base := path.Base(strings.ReplaceAll(p, "\\", "/"))
	dot := strings.LastIndexByte(base, '.')
	if dot < 0 || dot == len(base)-1 {
		return ""
	}
	return strings.ToLower(base[dot+1:])
}

// IsIndexable reports whether a path has an extension worth indexing.
func IsIndexable(p string) bool {
	return indexableExts[Extension(p)]
}

// DetectLanguage returns the grammar name for p, the extension for other
// indexable files, or "text".
func DetectLanguage(p string) string {
	ext := Extension(p)
	if cfg, ok := defaultRegistry.GetByExtension(ext); ok && ext != "" {
		return cfg.Name
	}
	if indexableExts[ext] {
		return ext
	}
	return "text"
}
