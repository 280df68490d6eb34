// Package scanner discovers the indexable files of a repository and turns
// them into file-change events.
package scanner

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Creeper5261/Rikki-sub002/internal/chunk"
	"github.com/Creeper5261/Rikki-sub002/internal/event"
)

// DefaultMaxFileSize is the default maximum file size (10MB).
const DefaultMaxFileSize = 10 * 1024 * 1024

// progressEvery is how often scan progress is logged, in files.
const progressEvery = 200

// SkipDirs are never descended into, at any depth.
var SkipDirs = map[string]bool{
	".git": true, ".idea": true, ".gradle": true, "build": true, "target": true,
	"node_modules": true, "dist": true, "out": true, "coverage": true,
}

// FileInfo describes one discovered file.
type FileInfo struct {
	Path     string // relative to the root, forward slashes
	AbsPath  string
	Size     int64
	Language string
}

// Options configures a scan.
type Options struct {
	// MaxFileSize drops larger files (0 = DefaultMaxFileSize).
	MaxFileSize int64

	// Workers bounds concurrent hashing (0 = NumCPU).
	Workers int
}

// Scanner walks repositories.
type Scanner struct {
	maxSize int64
	workers int
}

// New creates a scanner.
func New(opts Options) *Scanner {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return &Scanner{maxSize: opts.MaxFileSize, workers: opts.Workers}
}

// Walk returns every indexable file under root, sorted by path. Skipped
// directories, non-indexable extensions, oversized and binary files are left
// out.
func (s *Scanner) Walk(ctx context.Context, root string) ([]FileInfo, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path is not a directory: %s", absRoot)
	}

	var files []FileInfo
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			return nil // Skip entries we can't access
		}
		rel, err := filepath.Rel(absRoot, path)
		if err != nil || rel == "." {
			return nil
		}
		if d.IsDir() {
			if SkipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !chunk.IsIndexable(rel) {
			return nil
		}
		fi, err := d.Info()
		if err != nil || fi.Size() > s.maxSize {
			return nil
		}
		if isBinaryFile(path) {
			return nil
		}
		rel = filepath.ToSlash(rel)
		files = append(files, FileInfo{
			Path:     rel,
			AbsPath:  path,
			Size:     fi.Size(),
			Language: chunk.DetectLanguage(rel),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// Scan walks root and hashes every file into a FileChange sharing traceID.
// A blank traceID gets a fresh one. Files that vanish or fail to read
// between walk and hash are dropped.
func (s *Scanner) Scan(ctx context.Context, root, traceID string) ([]event.FileChange, error) {
	if traceID == "" {
		traceID = event.NewTraceID()
	}
	start := time.Now()

	files, err := s.Walk(ctx, root)
	if err != nil {
		return nil, err
	}
	slog.Info("scan_start",
		slog.String("trace_id", traceID),
		slog.String("root", root),
		slog.Int("files", len(files)))

	hashes := make([]string, len(files))
	var hashed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			h, err := event.HashFile(f.AbsPath)
			if err != nil {
				slog.Debug("scan_hash_failed", slog.String("path", f.Path), slog.String("error", err.Error()))
				return nil
			}
			hashes[i] = h
			if n := hashed.Add(1); n%progressEvery == 0 {
				slog.Info("scan_progress",
					slog.String("trace_id", traceID),
					slog.Int64("hashed", n),
					slog.Int("total", len(files)))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	events := make([]event.FileChange, 0, len(files))
	for i, f := range files {
		if hashes[i] == "" {
			continue
		}
		events = append(events, event.FileChange{
			TraceID:      traceID,
			RepoRoot:     root,
			RelativePath: f.Path,
			ContentHash:  hashes[i],
		})
	}
	slog.Info("scan_done",
		slog.String("trace_id", traceID),
		slog.Int("events", len(events)),
		slog.Duration("took", time.Since(start)))
	return events, nil
}

// isBinaryFile checks if a file is binary by looking for null bytes.
func isBinaryFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil {
		return false
	}
	return bytes.IndexByte(buf[:n], 0) >= 0
}
