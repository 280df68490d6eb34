package lookup

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/Creeper5261/Rikki-sub002/internal/chunk"
)

// minSubstringQuery is the shortest query that falls back to a substring scan.
const minSubstringQuery = 4

// SymbolEntry is one declaration known to the symbol index.
type SymbolEntry struct {
	Name      string // simple name
	Kind      string
	Signature string
	FilePath  string
	StartLine int
	EndLine   int
}

type symbolTable struct {
	byKey map[string][]SymbolEntry
	keys  []string // sorted, for deterministic substring scans
}

// SymbolIndex maps lowercase symbol names to their declarations, per root.
type SymbolIndex struct {
	extractor *chunk.SymbolExtractor
	maxBytes  int64

	tables *rootCache[*symbolTable]
}

// NewSymbolIndex creates an empty index over the default grammars.
func NewSymbolIndex() *SymbolIndex {
	return &SymbolIndex{
		extractor: chunk.NewSymbolExtractor(),
		maxBytes:  2 * 1024 * 1024,
		tables:    newRootCache[*symbolTable](),
	}
}

// Find returns the declarations for query under root. An exact key hit is
// returned as is; otherwise queries longer than three characters return the
// union of every key that contains them.
func (x *SymbolIndex) Find(ctx context.Context, root, query string) ([]SymbolEntry, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || strings.TrimSpace(root) == "" {
		return nil, nil
	}
	table, err := x.table(ctx, root)
	if err != nil {
		return nil, err
	}

	if exact, ok := table.byKey[q]; ok {
		return append([]SymbolEntry(nil), exact...), nil
	}
	if len(q) < minSubstringQuery {
		return nil, nil
	}

	seen := make(map[SymbolEntry]bool)
	var out []SymbolEntry
	for _, k := range table.keys {
		if !strings.Contains(k, q) {
			continue
		}
		for _, e := range table.byKey[k] {
			if !seen[e] {
				seen[e] = true
				out = append(out, e)
			}
		}
	}
	return out, nil
}

// Invalidate drops the table for root; the next Find rebuilds it.
func (x *SymbolIndex) Invalidate(root string) {
	x.tables.invalidate(rootKey(root))
}

// Rebuild replaces the table for root with a fresh walk.
func (x *SymbolIndex) Rebuild(ctx context.Context, root string) error {
	table, err := x.build(ctx, root)
	if err != nil {
		return err
	}
	x.tables.set(rootKey(root), table)
	return nil
}

func (x *SymbolIndex) table(ctx context.Context, root string) (*symbolTable, error) {
	return x.tables.get(ctx, rootKey(root), func(ctx context.Context) (*symbolTable, error) {
		return x.build(ctx, root)
	})
}

func (x *SymbolIndex) build(ctx context.Context, root string) (*symbolTable, error) {
	start := time.Now()
	byKey := make(map[string][]SymbolEntry)
	files := 0

	err := walkFiles(ctx, rootKey(root), symbolSkipDirs, func(rel, abs string) {
		lang := chunk.DetectLanguage(rel)
		if !x.extractor.Supports(lang) {
			return
		}
		info, err := os.Stat(abs)
		if err != nil || info.Size() > x.maxBytes {
			return
		}
		src, err := os.ReadFile(abs)
		if err != nil {
			return
		}
		symbols, err := x.extractor.Extract(ctx, src, lang)
		if err != nil {
			slog.Debug("symbol_index_parse_failed", slog.String("path", rel), slog.String("error", err.Error()))
			return
		}
		files++
		for _, s := range symbols {
			e := SymbolEntry{
				Name:      s.Name,
				Kind:      s.Kind,
				Signature: s.Signature,
				FilePath:  rel,
				StartLine: s.StartLine,
				EndLine:   s.EndLine,
			}
			simple := strings.ToLower(s.Name)
			byKey[simple] = append(byKey[simple], e)
			if qualified := strings.ToLower(s.QualifiedName); qualified != "" && qualified != simple {
				byKey[qualified] = append(byKey[qualified], e)
			}
		}
	})
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	slog.Info("symbol_index_built",
		slog.String("root", root),
		slog.Int("files", files),
		slog.Int("keys", len(keys)),
		slog.Duration("took", time.Since(start)))
	return &symbolTable{byKey: byKey, keys: keys}, nil
}
