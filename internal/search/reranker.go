package search

import (
	"sort"
	"strings"
)

// ContextReranker reorders hits for callers that assemble answer context
// from a single source. It weighs symbol and keyword matches more heavily
// than Score and adds to whatever score the hit already carries.
type ContextReranker struct{}

// Rerank returns new scored hits sorted by descending score.
func (ContextReranker) Rerank(query string, hits []ScoredHit) []ScoredHit {
	q := strings.ToLower(query)
	keywords := Keywords(query)

	out := make([]ScoredHit, len(hits))
	for i, sh := range hits {
		s := sh.Score
		h := sh.Hit
		if h.SymbolName != "" {
			if strings.Contains(q, strings.ToLower(h.SymbolName)) {
				s += 10
			} else {
				s += 5
			}
		}
		snippet := strings.ToLower(h.Snippet)
		path := strings.ToLower(h.FilePath)
		for _, k := range keywords {
			if strings.Contains(snippet, k) {
				s += 10
			}
			if strings.Contains(path, k) {
				s += 10
			}
		}
		out[i] = ScoredHit{Hit: h, Score: s}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
