package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Creeper5261/Rikki-sub002/internal/scanner"
)

// FSWatcher watches a directory tree with fsnotify.
type FSWatcher struct {
	fs        *fsnotify.Watcher
	debouncer *Debouncer
	root      string

	stopOnce sync.Once
}

// NewFSWatcher creates a watcher. Call Run to start it.
func NewFSWatcher(opts Options) (*FSWatcher, error) {
	opts = opts.WithDefaults()
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	return &FSWatcher{
		fs:        fsw,
		debouncer: NewDebouncer(opts.DebounceWindow, opts.EventBufferSize),
	}, nil
}

// Events returns debounced batches. The channel closes when the watcher stops.
func (w *FSWatcher) Events() <-chan []FileEvent {
	return w.debouncer.Output()
}

// Run watches root until ctx is done or Stop is called.
func (w *FSWatcher) Run(ctx context.Context, root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}
	w.root = abs
	defer w.Stop()

	if err := w.addRecursive(abs); err != nil {
		return fmt.Errorf("add directories to watcher: %w", err)
	}
	slog.Info("watch_started", slog.String("root", abs), slog.Int("dirs", len(w.fs.WatchList())))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch_error", slog.String("error", err.Error()))
		}
	}
}

// Stop releases the fsnotify handle and closes Events.
func (w *FSWatcher) Stop() {
	w.stopOnce.Do(func() {
		_ = w.fs.Close()
		w.debouncer.Stop()
	})
}

func (w *FSWatcher) handle(ev fsnotify.Event) {
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil || rel == "." {
		return
	}
	rel = filepath.ToSlash(rel)
	if skipped(rel) {
		return
	}

	var op Operation
	switch {
	case ev.Has(fsnotify.Create):
		op = OpCreate
	case ev.Has(fsnotify.Write):
		op = OpModify
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		op = OpDelete
	default:
		return
	}

	isDir := false
	if info, err := os.Stat(ev.Name); err == nil {
		isDir = info.IsDir()
	}
	if isDir && op == OpCreate {
		if err := w.addRecursive(ev.Name); err != nil {
			slog.Warn("watch_add_failed", slog.String("path", rel), slog.String("error", err.Error()))
		}
	}

	w.debouncer.Add(FileEvent{Path: rel, Operation: op, IsDir: isDir, Timestamp: time.Now()})
}

func (w *FSWatcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && scanner.SkipDirs[d.Name()] {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			slog.Debug("watch_dir_failed", slog.String("path", path), slog.String("error", err.Error()))
		}
		return nil
	})
}

// skipped reports whether any segment of rel is an ignored directory.
func skipped(rel string) bool {
	for _, seg := range strings.Split(rel, "/") {
		if scanner.SkipDirs[seg] {
			return true
		}
	}
	return false
}
