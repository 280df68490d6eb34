package hashgate

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite" // pure Go driver, registers "sqlite"

	apperrors "github.com/Creeper5261/Rikki-sub002/internal/errors"
)

const lockRetryDelay = 50 * time.Millisecond

const schema = `
CREATE TABLE IF NOT EXISTS file_hashes (
	key        TEXT PRIMARY KEY,
	hash       TEXT NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLiteGate persists entries in a local SQLite database. Writers from
// different processes are serialized by a lock file next to the database.
type SQLiteGate struct {
	db   *sql.DB
	lock *flock.Flock
	path string
}

var _ Gate = (*SQLiteGate)(nil)

// NewSQLiteGate opens or creates the database at path.
func NewSQLiteGate(path string) (*SQLiteGate, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeGateStorage, "failed to create hash gate directory", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeGateStorage, "failed to open hash gate database", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// modernc.org/sqlite ignores most DSN params; pragmas go through Exec.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, apperrors.New(apperrors.ErrCodeGateStorage, "failed to set pragma", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, apperrors.New(apperrors.ErrCodeGateStorage, "failed to create hash gate schema", err)
	}

	return &SQLiteGate{
		db:   db,
		lock: flock.New(path + ".lock"),
		path: path,
	}, nil
}

// Path returns the database path.
func (g *SQLiteGate) Path() string { return g.path }

// ShouldSkip implements Gate.
func (g *SQLiteGate) ShouldSkip(ctx context.Context, root, path, hash string) (bool, error) {
	if hash == "" {
		return false, nil
	}
	var stored string
	err := g.db.QueryRowContext(ctx, `SELECT hash FROM file_hashes WHERE key = ?`, Key(root, path)).Scan(&stored)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, apperrors.New(apperrors.ErrCodeGateStorage, "hash gate lookup failed", err)
	}
	return stored == hash, nil
}

// Commit implements Gate.
func (g *SQLiteGate) Commit(ctx context.Context, root, path, hash string) error {
	return g.withLock(ctx, func() error {
		_, err := g.db.ExecContext(ctx,
			`INSERT INTO file_hashes (key, hash, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET hash = excluded.hash, updated_at = excluded.updated_at`,
			Key(root, path), hash, time.Now().Unix())
		return err
	})
}

// Forget implements Gate.
func (g *SQLiteGate) Forget(ctx context.Context, root, path string) error {
	return g.withLock(ctx, func() error {
		_, err := g.db.ExecContext(ctx, `DELETE FROM file_hashes WHERE key = ?`, Key(root, path))
		return err
	})
}

func (g *SQLiteGate) withLock(ctx context.Context, fn func() error) error {
	locked, err := g.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return apperrors.New(apperrors.ErrCodeGateStorage, "failed to acquire hash gate lock", err)
	}
	if !locked {
		return apperrors.New(apperrors.ErrCodeGateStorage, fmt.Sprintf("hash gate lock %s is held", g.lock.Path()), nil)
	}
	defer func() { _ = g.lock.Unlock() }()

	if err := fn(); err != nil {
		return apperrors.New(apperrors.ErrCodeGateStorage, "hash gate write failed", err)
	}
	return nil
}

// Close implements Gate.
func (g *SQLiteGate) Close() error {
	return g.db.Close()
}
