package search

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Hydration caps.
const (
	hydrateMaxLines  = 50
	hydrateMaxChars  = 2000
	truncationMarker = "... (truncated)\n"
)

// dedupAndHydrate keeps the first hit per (file, start line) until 2*fetchK
// hits are collected, fills in missing snippets from disk and moves hits with
// content ahead of those without.
func dedupAndHydrate(hits []Hit, root string, fetchK int) []Hit {
	limit := 2 * fetchK
	seen := make(map[string]bool, len(hits))
	out := make([]Hit, 0, min(len(hits), limit))
	for _, h := range hits {
		key := h.FilePath + ":" + strconv.Itoa(h.StartLine)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, hydrate(h, root))
		if len(out) >= limit {
			break
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].HasSnippet() && !out[j].HasSnippet()
	})
	return out
}

// hydrate returns a copy of h with its snippet read from root. The copy
// covers start through end line, defaulting to 50 lines, and is cut after
// 50 lines or 2000 characters. Paths that leave root and read failures
// return h unchanged.
func hydrate(h Hit, root string) Hit {
	if h.HasSnippet() || strings.TrimSpace(root) == "" || h.FilePath == "" {
		return h
	}
	rel := filepath.FromSlash(h.FilePath)
	if !filepath.IsLocal(rel) {
		return h
	}
	data, err := os.ReadFile(filepath.Join(root, rel))
	if err != nil {
		return h
	}
	lines := splitLines(string(data))

	start := max(1, h.StartLine)
	end := h.EndLine
	if end <= 0 {
		end = min(len(lines), start+hydrateMaxLines)
	} else {
		end = min(len(lines), end)
	}

	var b strings.Builder
	truncated := h.Truncated
	count := 0
	for i := start - 1; i < end; i++ {
		b.WriteString(lines[i])
		b.WriteByte('\n')
		count++
		if count > hydrateMaxLines || b.Len() > hydrateMaxChars {
			b.WriteString(truncationMarker)
			truncated = true
			break
		}
	}

	if b.Len() == 0 {
		return h
	}

	out := h
	out.StartLine = start
	out.EndLine = end
	out.Snippet = b.String()
	out.Truncated = truncated
	return out
}

// splitLines splits on newlines, dropping the empty element after a final
// newline and any carriage returns.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
