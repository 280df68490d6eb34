package output

import (
	"fmt"
	"strings"

	"github.com/Creeper5261/Rikki-sub002/internal/search"
)

// Format selects how search hits are printed.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	// FormatPaths prints one file path per hit.
	FormatPaths Format = "paths"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON, FormatPaths:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (use text, json or paths)", s)
	}
}

// jsonHit is the flattened JSON form of a scored hit.
type jsonHit struct {
	search.Hit
	Score float64 `json:"score"`
}

// Hits prints the result of one search.
func (w *Writer) Hits(query string, hits []search.ScoredHit, format Format) error {
	switch format {
	case FormatJSON:
		out := make([]jsonHit, len(hits))
		for i, h := range hits {
			out[i] = jsonHit{Hit: h.Hit, Score: h.Score}
		}
		return w.JSON(struct {
			Query string    `json:"query"`
			Hits  []jsonHit `json:"hits"`
		}{query, out})
	case FormatPaths:
		seen := make(map[string]bool, len(hits))
		for _, h := range hits {
			if !seen[h.Hit.FilePath] {
				seen[h.Hit.FilePath] = true
				_, _ = fmt.Fprintln(w.out, h.Hit.FilePath)
			}
		}
		return nil
	}

	if len(hits) == 0 {
		w.Warningf("No results for %q", query)
		return nil
	}
	_, _ = fmt.Fprintln(w.out, w.styles.Header.Render(fmt.Sprintf("%d results for %q", len(hits), query)))
	for i, h := range hits {
		w.Newline()
		_, _ = fmt.Fprintf(w.out, "%d. %s %s\n", i+1, w.styles.Path.Render(location(h.Hit)),
			w.styles.Dim.Render(fmt.Sprintf("(score %.1f)", h.Score)))
		if label := symbolLabel(h.Hit); label != "" {
			_, _ = fmt.Fprintf(w.out, "   %s\n", w.styles.Dim.Render(label))
		}
		if h.Hit.HasSnippet() {
			for _, line := range strings.Split(strings.TrimRight(h.Hit.Snippet, "\n"), "\n") {
				_, _ = fmt.Fprintf(w.out, "   │ %s\n", line)
			}
		}
	}
	return nil
}

func location(h search.Hit) string {
	switch {
	case h.StartLine > 0 && h.EndLine > h.StartLine:
		return fmt.Sprintf("%s:%d-%d", h.FilePath, h.StartLine, h.EndLine)
	case h.StartLine > 0:
		return fmt.Sprintf("%s:%d", h.FilePath, h.StartLine)
	default:
		return h.FilePath
	}
}

func symbolLabel(h search.Hit) string {
	if h.SymbolName == "" {
		return ""
	}
	if h.SymbolKind == "" {
		return h.SymbolName
	}
	return h.SymbolKind + " " + h.SymbolName
}
