// Package lookup holds the in-process symbol and filename indexes.
//
// Both indexes are built lazily, once per workspace root, by a single
// recursive walk that finishes even if the query that started it times out.
// They are not refreshed on file changes unless the caller
// invokes Invalidate or Rebuild.
package lookup

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
)

// symbolSkipDirs are pruned by the symbol index walk.
var symbolSkipDirs = map[string]bool{
	".git": true, ".idea": true, ".gradle": true, "build": true, "target": true,
	"node_modules": true, "dist": true, "out": true,
}

// fileSkipDirs are pruned by the filename index walk.
var fileSkipDirs = map[string]bool{
	".git": true, ".idea": true, ".gradle": true, "build": true, "target": true,
	"node_modules": true, "dist": true, "out": true, "coverage": true,
}

// walkFiles calls fn with the slash-separated relative path of every regular
// file under root, pruning directories named in skip at any depth.
func walkFiles(ctx context.Context, root string, skip map[string]bool, fn func(rel, abs string)) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// unreadable entries are skipped, the walk goes on
			if d != nil && d.IsDir() && p != root {
				return filepath.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if p != root && skip[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return nil
		}
		fn(filepath.ToSlash(rel), p)
		return nil
	})
}

func rootKey(root string) string {
	return filepath.Clean(strings.TrimSpace(root))
}
