package lookup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	abs := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

const userService = `package com.acme.user;

public class UserService {
    public boolean login(String name) {
        return true;
    }

    public void logout() {
    }
}
`

func TestSymbolIndex_ExactAndQualifiedKeys(t *testing.T) {
	// Given a workspace with one Java class
	root := t.TempDir()
	write(t, root, "src/UserService.java", userService)
	idx := NewSymbolIndex()
	ctx := context.Background()

	// When looking up by simple and qualified name
	bySimple, err := idx.Find(ctx, root, "UserService")
	require.NoError(t, err)
	byQualified, err := idx.Find(ctx, root, "com.acme.user.UserService.login")
	require.NoError(t, err)

	// Then both resolve to the declaration
	require.Len(t, bySimple, 1)
	assert.Equal(t, "UserService", bySimple[0].Name)
	assert.Equal(t, "class", bySimple[0].Kind)
	assert.Equal(t, "src/UserService.java", bySimple[0].FilePath)
	assert.Equal(t, 3, bySimple[0].StartLine)

	require.Len(t, byQualified, 1)
	assert.Equal(t, "login", byQualified[0].Name)
	assert.Equal(t, 4, byQualified[0].StartLine)
}

func TestSymbolIndex_SubstringFallback(t *testing.T) {
	root := t.TempDir()
	write(t, root, "src/UserService.java", userService)
	idx := NewSymbolIndex()
	ctx := context.Background()

	// "logo" is no exact key but is contained in logout
	hits, err := idx.Find(ctx, root, "logo")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "logout", hits[0].Name)

	// The class matches through two keys but is reported once, alongside
	// the methods whose qualified names contain the query
	hits, err = idx.Find(ctx, root, "userserv")
	require.NoError(t, err)
	names := make([]string, 0, len(hits))
	for _, h := range hits {
		names = append(names, h.Name)
	}
	assert.ElementsMatch(t, []string{"UserService", "login", "logout"}, names)
}

func TestSymbolIndex_ShortQueryNeedsExactKey(t *testing.T) {
	root := t.TempDir()
	write(t, root, "main.go", "package main\n\nfunc Run() {}\n")
	idx := NewSymbolIndex()
	ctx := context.Background()

	hits, err := idx.Find(ctx, root, "ru")
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = idx.Find(ctx, root, "run")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "function", hits[0].Kind)
}

func TestSymbolIndex_SkipsBuildDirs(t *testing.T) {
	root := t.TempDir()
	write(t, root, "target/Generated.java", "public class Generated {}\n")
	write(t, root, "web/node_modules/lib/Dep.java", "public class Dep {}\n")
	idx := NewSymbolIndex()

	hits, err := idx.Find(context.Background(), root, "generated")
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = idx.Find(context.Background(), root, "dep")
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSymbolIndex_StaleUntilInvalidated(t *testing.T) {
	// Given an index built before a file was added
	root := t.TempDir()
	write(t, root, "A.java", "public class Alpha {}\n")
	idx := NewSymbolIndex()
	ctx := context.Background()
	_, err := idx.Find(ctx, root, "alpha")
	require.NoError(t, err)

	write(t, root, "B.java", "public class Bravo {}\n")

	// Then the new symbol is invisible until invalidation
	hits, err := idx.Find(ctx, root, "bravo")
	require.NoError(t, err)
	assert.Empty(t, hits)

	idx.Invalidate(root)
	hits, err = idx.Find(ctx, root, "bravo")
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	write(t, root, "C.java", "public class Charlie {}\n")
	require.NoError(t, idx.Rebuild(ctx, root))
	hits, err = idx.Find(ctx, root, "charlie")
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func writeManyClasses(t *testing.T, root string, n int) {
	t.Helper()
	for i := range n {
		write(t, root, fmt.Sprintf("src/pkg%d/Service%d.java", i%20, i),
			fmt.Sprintf("public class Service%d {\n    public void run%d() {}\n}\n", i, i))
	}
}

func TestSymbolIndex_BuildOutlivesCancelledCaller(t *testing.T) {
	// Given a large workspace and a caller that has already given up
	root := t.TempDir()
	writeManyClasses(t, root, 400)
	idx := NewSymbolIndex()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// When the first lookup is cancelled
	_, err := idx.Find(ctx, root, "Service7")
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}

	// Then the build still completes and is cached for later queries
	require.Eventually(t, func() bool { return idx.tables.cached(rootKey(root)) },
		10*time.Second, 10*time.Millisecond)
	hits, err := idx.Find(context.Background(), root, "Service7")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "src/pkg7/Service7.java", hits[0].FilePath)
}

func TestSymbolIndex_TimedOutCallersShareOneBuild(t *testing.T) {
	root := t.TempDir()
	writeManyClasses(t, root, 400)
	idx := NewSymbolIndex()

	for range 3 {
		ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
		_, _ = idx.Find(ctx, root, "Service1")
		cancel()
	}

	require.Eventually(t, func() bool { return idx.tables.cached(rootKey(root)) },
		10*time.Second, 10*time.Millisecond)
	hits, err := idx.Find(context.Background(), root, "Service399")
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestRootCache_InvalidateDiscardsInFlightBuild(t *testing.T) {
	// Given a build that is still running
	c := newRootCache[string]()
	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := c.get(context.Background(), "r", func(context.Context) (string, error) {
			close(started)
			<-release
			return "old", nil
		})
		done <- err
	}()
	<-started

	// When the root is invalidated before the build finishes
	c.invalidate("r")
	close(release)
	require.NoError(t, <-done)

	// Then the outdated result is not cached
	assert.False(t, c.cached("r"))
	v, err := c.get(context.Background(), "r", func(context.Context) (string, error) { return "new", nil })
	require.NoError(t, err)
	assert.Equal(t, "new", v)
	assert.True(t, c.cached("r"))
}

func TestFileIndex_BuildOutlivesCancelledCaller(t *testing.T) {
	root := t.TempDir()
	writeManyClasses(t, root, 400)
	idx := NewFileIndex()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := idx.Search(ctx, root, "Service12.java")
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}

	require.Eventually(t, func() bool { return idx.files.cached(rootKey(root)) },
		10*time.Second, 10*time.Millisecond)
	got, err := idx.Search(context.Background(), root, "Service12.java")
	require.NoError(t, err)
	assert.Equal(t, []string{"src/pkg12/Service12.java"}, got)
}

func TestFileIndex_ShortQueriesMatchBaseNameOnly(t *testing.T) {
	root := t.TempDir()
	write(t, root, "config/app.yml", "a: 1")
	write(t, root, "src/co.txt", "x")
	write(t, root, "build/secret.txt", "x")
	idx := NewFileIndex()
	ctx := context.Background()

	strict, err := idx.Search(ctx, root, "co")
	require.NoError(t, err)
	assert.Equal(t, []string{"src/co.txt"}, strict)

	fuzzy, err := idx.Search(ctx, root, "config")
	require.NoError(t, err)
	assert.Contains(t, fuzzy, "config/app.yml")

	secret, err := idx.Search(ctx, root, "secret")
	require.NoError(t, err)
	assert.Empty(t, secret)
}

func TestFileIndex_Ordering(t *testing.T) {
	root := t.TempDir()
	write(t, root, "docs/readme", "x")
	write(t, root, "a/readme.md", "x")
	write(t, root, "readme-extra/notes.txt", "x")
	idx := NewFileIndex()

	got, err := idx.Search(context.Background(), root, "README")
	require.NoError(t, err)

	// exact base name, then base name contains, then path-only match
	assert.Equal(t, []string{"docs/readme", "a/readme.md", "readme-extra/notes.txt"}, got)
}

func TestFileIndex_DropsDeletedFilesAndCaps(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 25; i++ {
		write(t, root, filepath.ToSlash(filepath.Join("pkg", "handler"+string(rune('a'+i))+".go")), "package pkg")
	}
	idx := NewFileIndex()
	ctx := context.Background()

	got, err := idx.Search(ctx, root, "handler")
	require.NoError(t, err)
	assert.Len(t, got, MaxFileResults)

	require.NoError(t, os.Remove(filepath.Join(root, "pkg", "handlera.go")))
	got, err = idx.Search(ctx, root, "handlera")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFileIndex_BlankInput(t *testing.T) {
	idx := NewFileIndex()
	got, err := idx.Search(context.Background(), t.TempDir(), "  ")
	require.NoError(t, err)
	assert.Empty(t, got)
}
