// Package hashgate remembers the content hash each file was last indexed at,
// so unchanged files can skip re-ingestion.
package hashgate

import (
	"context"
	"strings"
	"sync"
)

// Gate stores the last indexed hash per (workspace root, relative path).
// Implementations are safe for concurrent use; the last Commit for a key wins.
type Gate interface {
	// ShouldSkip reports whether hash equals the stored hash for the file.
	ShouldSkip(ctx context.Context, root, path, hash string) (bool, error)

	// Commit records hash as the file's last indexed hash.
	Commit(ctx context.Context, root, path, hash string) error

	// Forget removes the file's entry.
	Forget(ctx context.Context, root, path string) error

	Close() error
}

// Key joins root and path into the gate key.
func Key(root, path string) string {
	return root + "|" + strings.ReplaceAll(path, "\\", "/")
}

// MemoryGate keeps entries in process memory.
type MemoryGate struct {
	mu     sync.RWMutex
	hashes map[string]string
}

var _ Gate = (*MemoryGate)(nil)

// NewMemoryGate creates an empty in-memory gate.
func NewMemoryGate() *MemoryGate {
	return &MemoryGate{hashes: make(map[string]string)}
}

// ShouldSkip implements Gate.
func (g *MemoryGate) ShouldSkip(_ context.Context, root, path, hash string) (bool, error) {
	if hash == "" {
		return false, nil
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.hashes[Key(root, path)] == hash, nil
}

// Commit implements Gate.
func (g *MemoryGate) Commit(_ context.Context, root, path, hash string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hashes[Key(root, path)] = hash
	return nil
}

// Forget implements Gate.
func (g *MemoryGate) Forget(_ context.Context, root, path string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.hashes, Key(root, path))
	return nil
}

// Len returns the number of entries.
func (g *MemoryGate) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.hashes)
}

// Close implements Gate.
func (g *MemoryGate) Close() error { return nil }
