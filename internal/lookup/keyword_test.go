package lookup

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeywordIndex_FindsChunksByIdentifierParts(t *testing.T) {
	// Given a workspace with a Java class and a README
	root := t.TempDir()
	write(t, root, "src/UserService.java", userService)
	write(t, root, "README.md", "# Billing\n\nInvoices are generated nightly.\n")
	idx := NewKeywordIndex()

	// When searching for a camelCase part of the class name
	hits, err := idx.Search(context.Background(), root, "user login", 5, 600)

	// Then the Java chunks rank and carry their location
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "src/UserService.java", hits[0].FilePath)
	assert.Positive(t, hits[0].StartLine)
	assert.Positive(t, hits[0].Score)
	for _, h := range hits {
		assert.NotEqual(t, "README.md", h.FilePath)
	}

	// And the plain text file is reachable by its words
	hits, err = idx.Search(context.Background(), root, "invoices", 5, 600)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "README.md", hits[0].FilePath)
}

func TestKeywordIndex_TruncatesSnippetsAndCapsResults(t *testing.T) {
	// Given many classes that all mention Service
	root := t.TempDir()
	writeManyClasses(t, root, 30)
	idx := NewKeywordIndex()

	// When searching with a small limit and snippet cap
	hits, err := idx.Search(context.Background(), root, "service", 4, 10)

	// Then the result count and snippet length are bounded
	require.NoError(t, err)
	require.Len(t, hits, 4)
	for _, h := range hits {
		assert.LessOrEqual(t, len([]rune(h.Snippet)), 10)
		assert.True(t, h.Truncated)
	}
}

func TestKeywordIndex_SkipsLargeAndUnindexableFiles(t *testing.T) {
	// Given a file over the size cap, a binary blob and a build output dir
	root := t.TempDir()
	write(t, root, "big.txt", "needle "+strings.Repeat("x", keywordMaxFileBytes))
	write(t, root, "image.png", "needle")
	write(t, root, "target/Gen.java", "class Gen { String needle; }")
	idx := NewKeywordIndex()

	// When searching for the shared word
	hits, err := idx.Search(context.Background(), root, "needle", 5, 100)

	// Then nothing is found
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestKeywordIndex_BlankInput(t *testing.T) {
	idx := NewKeywordIndex()
	ctx := context.Background()

	hits, err := idx.Search(ctx, "", "user", 5, 100)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = idx.Search(ctx, t.TempDir(), " ;; ", 5, 100)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = idx.Search(ctx, t.TempDir(), "user", 0, 100)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestKeywordIndex_StaleUntilInvalidated(t *testing.T) {
	// Given an index built before a file was added
	root := t.TempDir()
	write(t, root, "src/UserService.java", userService)
	idx := NewKeywordIndex()
	ctx := context.Background()
	_, err := idx.Search(ctx, root, "user", 5, 100)
	require.NoError(t, err)
	write(t, root, "src/OrderService.java", "public class OrderService { void ship() {} }")

	// When searching before and after invalidation
	before, err := idx.Search(ctx, root, "ship", 5, 100)
	require.NoError(t, err)
	idx.Invalidate(root)
	after, err := idx.Search(ctx, root, "ship", 5, 100)
	require.NoError(t, err)

	// Then only the rebuilt index sees the new file
	assert.Empty(t, before)
	require.NotEmpty(t, after)
	assert.Equal(t, "src/OrderService.java", after[0].FilePath)
}

func TestIdentifierTokenizer_SplitsCodeIdentifiers(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"camel case", "getUserName()", []string{"getUserName", "get", "User", "Name"}},
		{"acronym", "HTTPServer", []string{"HTTPServer", "HTTP", "Server"}},
		{"snake case", "max_retry_count", []string{"max_retry_count", "max", "retry", "count"}},
		{"short parts dropped", "aValue", []string{"aValue", "Value"}},
		{"plain words", "hello, world", []string{"hello", "world"}},
		{"dollar", "$scope", []string{"$scope"}},
		{"digits", "Service12", []string{"Service12", "Service", "12"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, tok := range (identifierTokenizer{}).Tokenize([]byte(tt.input)) {
				assert.Equal(t, string(tok.Term), tt.input[tok.Start:tok.End])
				got = append(got, string(tok.Term))
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
