package search

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	abs := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

func numberedLines(n int) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	return b.String()
}

func TestDedup_FirstOccurrenceWins(t *testing.T) {
	// Given a symbol hit and a vector hit at the same location
	hits := []Hit{
		{FilePath: "A.java", SymbolKind: "class", SymbolName: "A", StartLine: 3, EndLine: 9},
		{FilePath: "A.java", SymbolKind: "class", SymbolName: "A", StartLine: 3, EndLine: 9, Snippet: "vector copy"},
		{FilePath: "B.java", StartLine: 1, Snippet: "b"},
	}

	// When deduplicated without a workspace to hydrate from
	out := dedupAndHydrate(hits, "", 5)

	// Then the symbol hit is kept and moved behind the snippet-bearing one
	require.Len(t, out, 2)
	assert.Equal(t, "B.java", out[0].FilePath)
	assert.Equal(t, "A.java", out[1].FilePath)
	assert.Empty(t, out[1].Snippet)
}

func TestDedup_StopsAtTwiceFetchK(t *testing.T) {
	var hits []Hit
	for i := 0; i < 10; i++ {
		hits = append(hits, Hit{FilePath: fmt.Sprintf("f%d.go", i), StartLine: 1, Snippet: "x"})
	}
	out := dedupAndHydrate(hits, "", 2)
	require.Len(t, out, 4)
	assert.Equal(t, "f3.go", out[3].FilePath)
}

func TestHydrate_DefaultsToFiftyLines(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/big.txt", numberedLines(120))

	h := hydrate(Hit{FilePath: "src/big.txt", SymbolKind: "file"}, root)

	assert.Equal(t, 1, h.StartLine)
	assert.Equal(t, 51, h.EndLine)
	assert.True(t, strings.HasPrefix(h.Snippet, "line 1\n"))
	assert.Contains(t, h.Snippet, "line 51\n")
	assert.True(t, strings.HasSuffix(h.Snippet, truncationMarker))
	assert.True(t, h.Truncated)
}

func TestHydrate_RespectsRange(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "A.java", numberedLines(20))

	orig := Hit{FilePath: "A.java", StartLine: 4, EndLine: 6}
	h := hydrate(orig, root)

	assert.Equal(t, "line 4\nline 5\nline 6\n", h.Snippet)
	assert.False(t, h.Truncated)
	assert.Empty(t, orig.Snippet)
}

func TestHydrate_CharacterCap(t *testing.T) {
	root := t.TempDir()
	long := strings.Repeat("x", 900) + "\n"
	writeFile(t, root, "wide.txt", strings.Repeat(long, 10))

	h := hydrate(Hit{FilePath: "wide.txt", StartLine: 1, EndLine: 10}, root)

	// three lines push the builder past 2000 characters
	assert.Equal(t, 3*len(long)+len(truncationMarker), len(h.Snippet))
	assert.True(t, h.Truncated)
}

func TestHydrate_MissingFileLeavesHitUnchanged(t *testing.T) {
	orig := Hit{FilePath: "gone.txt", StartLine: 2}
	assert.Equal(t, orig, hydrate(orig, t.TempDir()))
}

func TestHydrate_PathOutsideRootIsNotRead(t *testing.T) {
	// Given a readable file next to the workspace root
	parent := t.TempDir()
	root := filepath.Join(parent, "ws")
	require.NoError(t, os.MkdirAll(root, 0o755))
	writeFile(t, parent, "secret.txt", "token=abc\n")

	// When a stored hit points outside the root
	for _, p := range []string{"../secret.txt", filepath.ToSlash(filepath.Join(parent, "secret.txt"))} {
		orig := Hit{FilePath: p, StartLine: 1}

		// Then no snippet is filled in
		got := hydrate(orig, root)
		assert.Equal(t, orig, got, p)
	}
}
