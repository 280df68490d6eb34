package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Creeper5261/Rikki-sub002/internal/chunk"
	"github.com/Creeper5261/Rikki-sub002/internal/docstore"
	"github.com/Creeper5261/Rikki-sub002/internal/embed"
	apperrors "github.com/Creeper5261/Rikki-sub002/internal/errors"
	"github.com/Creeper5261/Rikki-sub002/internal/event"
	"github.com/Creeper5261/Rikki-sub002/internal/hashgate"
	"github.com/Creeper5261/Rikki-sub002/internal/workspace"
)

type fakeStore struct {
	mu          sync.Mutex
	bulkCalls   int
	docs        map[string]docstore.Document // by id
	lastIndex   string
	bulkErr     error
	staleErr    error
	staleCalls  int
	removeCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: make(map[string]docstore.Document)}
}

func (s *fakeStore) BulkIndex(_ context.Context, index string, docs []docstore.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bulkCalls++
	s.lastIndex = index
	if s.bulkErr != nil {
		return s.bulkErr
	}
	for _, d := range docs {
		s.docs[d.ID] = d
	}
	return nil
}

func (s *fakeStore) DeleteStale(_ context.Context, _, filePath, generation string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.staleCalls++
	if s.staleErr != nil {
		return 0, s.staleErr
	}
	n := 0
	for id, d := range s.docs {
		if d.FilePath == filePath && d.Generation != generation {
			delete(s.docs, id)
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) DeleteByFile(_ context.Context, _, filePath string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeCalls++
	n := 0
	for id, d := range s.docs {
		if d.FilePath == filePath {
			delete(s.docs, id)
			n++
		}
	}
	return n, nil
}

type failingEmbedder struct{ embed.Embedder }

func (failingEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("provider down")
}

const serviceJava = `package com.acme;

public class UserService {
    public User findUser(String id) {
        return null;
    }
}
`

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	abs := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
	return event.HashBytes([]byte(content))
}

func newTestPipeline(store *fakeStore, gate hashgate.Gate) *Pipeline {
	return NewPipeline(gate, chunk.NewCodeChunker(), embed.NewHashEmbedder(16), store, Options{Repo: "demo"})
}

func TestIngestOne_IdempotentOnSameHash(t *testing.T) {
	// Given a Java file and an empty gate
	root := t.TempDir()
	hash := writeFile(t, root, "src/UserService.java", serviceJava)
	store := newFakeStore()
	p := newTestPipeline(store, hashgate.NewMemoryGate())
	ctx := context.Background()

	// When it is ingested twice with the same hash
	first, err := p.IngestOne(ctx, root, "src/UserService.java", hash)
	require.NoError(t, err)
	second, err := p.IngestOne(ctx, root, "src/UserService.java", hash)
	require.NoError(t, err)

	// Then the second call is skipped without touching the store
	assert.False(t, first.Skipped)
	assert.Equal(t, 2, first.ChunkCount)
	assert.True(t, second.Skipped)
	assert.Equal(t, 1, store.bulkCalls)
	assert.Equal(t, workspace.IndexName(root), store.lastIndex)
	assert.Len(t, store.docs, 2)

	doc := store.docs["src/UserService.java|method|findUser|4"]
	assert.Equal(t, "com.acme.UserService.findUser", doc.SymbolName)
	assert.Equal(t, "demo", doc.Repo)
	assert.Equal(t, hash, doc.Generation)
	assert.Len(t, doc.ContentVector, 16)
}

func TestIngestOne_ChangedContentReplacesStaleFragments(t *testing.T) {
	root := t.TempDir()
	store := newFakeStore()
	p := newTestPipeline(store, hashgate.NewMemoryGate())
	ctx := context.Background()

	h1 := writeFile(t, root, "notes.md", "line one\nline two\n")
	_, err := p.IngestOne(ctx, root, "notes.md", h1)
	require.NoError(t, err)

	// The rewritten file is a single window again, at the same id
	h2 := writeFile(t, root, "notes.md", "replaced\n")
	res, err := p.IngestOne(ctx, root, "notes.md", h2)
	require.NoError(t, err)

	assert.False(t, res.Skipped)
	require.Len(t, store.docs, 1)
	assert.Equal(t, "replaced\n", store.docs["notes.md|file|1"].Content)
	assert.Equal(t, h2, store.docs["notes.md|file|1"].Generation)
}

func TestIngestOne_BulkFailureDoesNotCommit(t *testing.T) {
	root := t.TempDir()
	hash := writeFile(t, root, "a.txt", "hello")
	store := newFakeStore()
	store.bulkErr = apperrors.New(apperrors.ErrCodeIndexFailed, "bulk failed", nil)
	gate := hashgate.NewMemoryGate()
	p := newTestPipeline(store, gate)

	_, err := p.IngestOne(context.Background(), root, "a.txt", hash)

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeIndexFailed, apperrors.GetCode(err))
	assert.Equal(t, 0, gate.Len())
	assert.Equal(t, 0, store.staleCalls)
}

func TestIngestOne_EmbedFailureDoesNotCommit(t *testing.T) {
	root := t.TempDir()
	hash := writeFile(t, root, "a.txt", "hello")
	store := newFakeStore()
	gate := hashgate.NewMemoryGate()
	p := NewPipeline(gate, chunk.NewCodeChunker(), failingEmbedder{embed.NewHashEmbedder(4)}, store, Options{})

	_, err := p.IngestOne(context.Background(), root, "a.txt", hash)

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeEmbeddingFailed, apperrors.GetCode(err))
	assert.Equal(t, 0, store.bulkCalls)
	assert.Equal(t, 0, gate.Len())
}

func TestIngestOne_StaleCleanupFailureStillCommits(t *testing.T) {
	root := t.TempDir()
	hash := writeFile(t, root, "a.txt", "hello")
	store := newFakeStore()
	store.staleErr = errors.New("delete_by_query failed")
	gate := hashgate.NewMemoryGate()
	p := newTestPipeline(store, gate)

	_, err := p.IngestOne(context.Background(), root, "a.txt", hash)

	require.NoError(t, err)
	skip, err := gate.ShouldSkip(context.Background(), root, "a.txt", hash)
	require.NoError(t, err)
	assert.True(t, skip)
}

func TestIngestOne_EmptyHashUsesContentHash(t *testing.T) {
	root := t.TempDir()
	hash := writeFile(t, root, "a.txt", "hello")
	gate := hashgate.NewMemoryGate()
	p := newTestPipeline(newFakeStore(), gate)

	_, err := p.IngestOne(context.Background(), root, "a.txt", "")
	require.NoError(t, err)

	skip, err := gate.ShouldSkip(context.Background(), root, "a.txt", hash)
	require.NoError(t, err)
	assert.True(t, skip)
}

func TestIngestOne_InvalidInput(t *testing.T) {
	p := newTestPipeline(newFakeStore(), hashgate.NewMemoryGate())
	ctx := context.Background()

	_, err := p.IngestOne(ctx, " ", "a.txt", "h")
	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.GetCode(err))

	_, err = p.IngestOne(ctx, t.TempDir(), "../outside.txt", "h")
	assert.Equal(t, apperrors.ErrCodeInvalidPath, apperrors.GetCode(err))

	_, err = p.IngestOne(ctx, t.TempDir(), "missing.txt", "h")
	assert.Equal(t, apperrors.ErrCodeFileNotFound, apperrors.GetCode(err))
}

func TestIngestOne_FileTooLarge(t *testing.T) {
	root := t.TempDir()
	hash := writeFile(t, root, "big.txt", "0123456789")
	p := NewPipeline(hashgate.NewMemoryGate(), chunk.NewCodeChunker(), embed.NewHashEmbedder(4), newFakeStore(),
		Options{MaxFileBytes: 5})

	_, err := p.IngestOne(context.Background(), root, "big.txt", hash)
	assert.Equal(t, apperrors.ErrCodeFileTooLarge, apperrors.GetCode(err))
}

func TestRemove_DeletesDocsAndForgetsHash(t *testing.T) {
	root := t.TempDir()
	hash := writeFile(t, root, "src/UserService.java", serviceJava)
	store := newFakeStore()
	gate := hashgate.NewMemoryGate()
	p := newTestPipeline(store, gate)
	ctx := context.Background()

	_, err := p.IngestOne(ctx, root, "src/UserService.java", hash)
	require.NoError(t, err)

	require.NoError(t, p.Remove(ctx, root, "src/UserService.java"))

	assert.Empty(t, store.docs)
	assert.Equal(t, 0, gate.Len())

	// Re-ingesting after removal is not skipped
	res, err := p.IngestOne(ctx, root, "src/UserService.java", hash)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
}
