package watcher

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/Creeper5261/Rikki-sub002/internal/broker"
	"github.com/Creeper5261/Rikki-sub002/internal/chunk"
	"github.com/Creeper5261/Rikki-sub002/internal/event"
	"github.com/Creeper5261/Rikki-sub002/internal/ingest"
)

// Ingester indexes and removes single files.
type Ingester interface {
	IngestOne(ctx context.Context, root, path, expectedHash string) (ingest.Result, error)
	Remove(ctx context.Context, root, path string) error
}

// Invalidator drops a cached per-root index.
type Invalidator interface {
	Invalidate(root string)
}

// DispatchOptions configures a Dispatcher.
type DispatchOptions struct {
	// Publisher, when set, receives file-change events instead of the
	// ingester indexing them in process.
	Publisher broker.Publisher
	Topic     string

	// Invalidate lists indexes to drop when files are created or deleted.
	Invalidate []Invalidator
}

// Dispatcher turns debounced batches into indexing work for one root.
type Dispatcher struct {
	root       string
	ingester   Ingester
	publisher  broker.Publisher
	topic      string
	invalidate []Invalidator
}

// NewDispatcher creates a dispatcher. ingester handles deletes always and
// changes unless a publisher is configured.
func NewDispatcher(root string, ingester Ingester, opts DispatchOptions) *Dispatcher {
	if opts.Topic == "" {
		opts.Topic = event.TopicFileChange
	}
	return &Dispatcher{
		root:       root,
		ingester:   ingester,
		publisher:  opts.Publisher,
		topic:      opts.Topic,
		invalidate: opts.Invalidate,
	}
}

// Run handles batches until the channel closes or ctx is done.
func (d *Dispatcher) Run(ctx context.Context, batches <-chan []FileEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-batches:
			if !ok {
				return
			}
			d.Dispatch(ctx, batch)
		}
	}
}

// Dispatch handles one batch. Failures are logged per file.
func (d *Dispatcher) Dispatch(ctx context.Context, batch []FileEvent) {
	traceID := event.NewTraceID()
	structural := false

	for _, ev := range batch {
		if ev.IsDir {
			structural = true
			continue
		}
		if ev.Operation != OpModify {
			structural = true
		}
		if !chunk.IsIndexable(ev.Path) {
			continue
		}

		var err error
		if ev.Operation == OpDelete {
			err = d.ingester.Remove(ctx, d.root, ev.Path)
		} else {
			err = d.change(ctx, traceID, ev.Path)
		}
		if err != nil {
			slog.Warn("watch_dispatch_failed",
				slog.String("trace_id", traceID),
				slog.String("path", ev.Path),
				slog.String("op", ev.Operation.String()),
				slog.String("error", err.Error()))
		}
	}

	if structural {
		for _, inv := range d.invalidate {
			inv.Invalidate(d.root)
		}
	}
	slog.Info("watch_batch",
		slog.String("trace_id", traceID),
		slog.Int("events", len(batch)),
		slog.Bool("invalidated", structural && len(d.invalidate) > 0))
}

func (d *Dispatcher) change(ctx context.Context, traceID, rel string) error {
	hash, err := event.HashFile(filepath.Join(d.root, filepath.FromSlash(rel)))
	if err != nil {
		return err
	}
	if d.publisher == nil {
		_, err := d.ingester.IngestOne(ctx, d.root, rel, hash)
		return err
	}

	payload, err := event.FileChange{
		TraceID:      traceID,
		RepoRoot:     d.root,
		RelativePath: rel,
		ContentHash:  hash,
	}.Encode()
	if err != nil {
		return err
	}
	return d.publisher.Publish(ctx, d.topic, []byte(traceID), payload)
}
