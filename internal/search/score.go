package search

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// Scoring weights and thresholds.
const (
	snippetBonus        = 1.0
	symbolInQueryBonus  = 5.0
	symbolPresentBonus  = 2.0
	keywordSnippetBonus = 2.0
	keywordPathBonus    = 2.0

	sparseThreshold = 2.5
	denseThreshold  = 5.0

	maxFetchK = 30
)

var tokenSplit = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// Keywords returns the unique lowercase tokens of query longer than two
// characters, in first-seen order.
func Keywords(query string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, tok := range tokenSplit.Split(strings.ToLower(query), -1) {
		if len(tok) <= 2 || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}

// ComputeFetchK returns how many hits to request from each source. Queries
// with at most one keyword cast a wider net since more of the candidates get
// filtered out.
func ComputeFetchK(query string, topK int) int {
	base := max(1, topK)
	switch n := len(Keywords(query)); {
	case n <= 1:
		return min(maxFetchK, 2*base)
	case n == 2:
		return min(maxFetchK, int(math.Ceil(1.5*float64(base))))
	default:
		return base
	}
}

// Score rates every hit against query and returns them sorted by
// descending score. Ties keep their input order.
func Score(query string, hits []Hit) []ScoredHit {
	q := strings.ToLower(query)
	keywords := Keywords(query)

	out := make([]ScoredHit, len(hits))
	for i, h := range hits {
		var s float64
		if h.HasSnippet() {
			s += snippetBonus
		}
		if h.SymbolName != "" {
			if strings.Contains(q, strings.ToLower(h.SymbolName)) {
				s += symbolInQueryBonus
			} else {
				s += symbolPresentBonus
			}
		}
		snippet := strings.ToLower(h.Snippet)
		path := strings.ToLower(h.FilePath)
		for _, k := range keywords {
			if strings.Contains(snippet, k) {
				s += keywordSnippetBonus
			}
			if strings.Contains(path, k) {
				s += keywordPathBonus
			}
		}
		out[i] = ScoredHit{Hit: h, Score: s}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// ApplyQualityFilter keeps at most topK hits scoring at least the
// threshold for query. When nothing clears the threshold the first topK
// hits are returned instead, so a non-empty input never yields nothing.
func ApplyQualityFilter(query string, scored []ScoredHit, topK int) []ScoredHit {
	limit := max(1, topK)
	threshold := denseThreshold
	if len(Keywords(query)) <= 1 {
		threshold = sparseThreshold
	}

	var kept []ScoredHit
	for _, h := range scored {
		if h.Score < threshold {
			continue
		}
		kept = append(kept, h)
		if len(kept) == limit {
			break
		}
	}
	if len(kept) > 0 {
		return kept
	}
	return cloneScored(scored[:min(limit, len(scored))])
}
