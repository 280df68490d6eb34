package mcp

import (
	"fmt"
	"path"
	"strings"

	"github.com/Creeper5261/Rikki-sub002/internal/search"
)

// FormatResults renders hits as markdown for clients that only read text.
func FormatResults(query string, hits []search.ScoredHit) string {
	var b strings.Builder
	if len(hits) == 0 {
		fmt.Fprintf(&b, "No results for `%s`.\n", query)
		return b.String()
	}
	fmt.Fprintf(&b, "## %d results for `%s`\n", len(hits), query)
	for i, h := range hits {
		fmt.Fprintf(&b, "\n### %d. %s", i+1, h.Hit.FilePath)
		if h.Hit.StartLine > 0 {
			fmt.Fprintf(&b, ":%d", h.Hit.StartLine)
			if h.Hit.EndLine > h.Hit.StartLine {
				fmt.Fprintf(&b, "-%d", h.Hit.EndLine)
			}
		}
		fmt.Fprintf(&b, " (score %.1f)\n", h.Score)
		if h.Hit.SymbolName != "" {
			fmt.Fprintf(&b, "**%s** `%s`\n", strings.TrimSpace(h.Hit.SymbolKind), h.Hit.SymbolName)
		}
		if h.Hit.HasSnippet() {
			fmt.Fprintf(&b, "```%s\n%s", fenceLanguage(h.Hit.FilePath), h.Hit.Snippet)
			if !strings.HasSuffix(h.Hit.Snippet, "\n") {
				b.WriteByte('\n')
			}
			b.WriteString("```\n")
		}
	}
	return b.String()
}

func fenceLanguage(p string) string {
	switch strings.ToLower(path.Ext(p)) {
	case ".go":
		return "go"
	case ".java":
		return "java"
	case ".ts", ".tsx":
		return "typescript"
	case ".js", ".jsx", ".mjs":
		return "javascript"
	case ".py":
		return "python"
	case ".md":
		return "markdown"
	case ".yaml", ".yml":
		return "yaml"
	case ".json":
		return "json"
	default:
		return ""
	}
}
