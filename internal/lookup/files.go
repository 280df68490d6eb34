package lookup

import (
	"context"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// MaxFileResults caps a filename search.
const MaxFileResults = 20

// FileIndex lists the files of each root for fuzzy filename search.
type FileIndex struct {
	files *rootCache[[]string]
}

// NewFileIndex creates an empty index.
func NewFileIndex() *FileIndex {
	return &FileIndex{files: newRootCache[[]string]()}
}

// Search returns up to MaxFileResults relative paths matching query.
// Short queries (under three characters) only match base names. Exact base
// name matches rank first, then base name matches, then shorter paths.
func (x *FileIndex) Search(ctx context.Context, root, query string) ([]string, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || strings.TrimSpace(root) == "" {
		return nil, nil
	}
	files, err := x.list(ctx, root)
	if err != nil {
		return nil, err
	}

	type candidate struct {
		rel    string
		exact  bool
		inName bool
	}
	base := rootKey(root)
	var matches []candidate
	for _, rel := range files {
		lower := strings.ToLower(rel)
		name := path.Base(lower)
		inName := strings.Contains(name, q)
		if !inName && (len(q) < 3 || !strings.Contains(lower, q)) {
			continue
		}
		if _, err := os.Stat(filepath.Join(base, filepath.FromSlash(rel))); err != nil {
			continue
		}
		matches = append(matches, candidate{rel: rel, exact: name == q, inName: inName})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].exact != matches[j].exact {
			return matches[i].exact
		}
		if matches[i].inName != matches[j].inName {
			return matches[i].inName
		}
		return len(matches[i].rel) < len(matches[j].rel)
	})

	if len(matches) > MaxFileResults {
		matches = matches[:MaxFileResults]
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.rel
	}
	return out, nil
}

// Invalidate drops the file list for root.
func (x *FileIndex) Invalidate(root string) {
	x.files.invalidate(rootKey(root))
}

// Rebuild replaces the file list for root with a fresh walk.
func (x *FileIndex) Rebuild(ctx context.Context, root string) error {
	files, err := x.build(ctx, root)
	if err != nil {
		return err
	}
	x.files.set(rootKey(root), files)
	return nil
}

func (x *FileIndex) list(ctx context.Context, root string) ([]string, error) {
	return x.files.get(ctx, rootKey(root), func(ctx context.Context) ([]string, error) {
		return x.build(ctx, root)
	})
}

func (x *FileIndex) build(ctx context.Context, root string) ([]string, error) {
	start := time.Now()
	var files []string
	err := walkFiles(ctx, rootKey(root), fileSkipDirs, func(rel, _ string) {
		files = append(files, rel)
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	slog.Info("file_index_built",
		slog.String("root", root),
		slog.Int("files", len(files)),
		slog.Duration("took", time.Since(start)))
	return files, nil
}
