// Package worker consumes file-change events and feeds them to the
// ingestion pipeline.
package worker

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"

	"github.com/Creeper5261/Rikki-sub002/internal/broker"
	apperrors "github.com/Creeper5261/Rikki-sub002/internal/errors"
	"github.com/Creeper5261/Rikki-sub002/internal/event"
	"github.com/Creeper5261/Rikki-sub002/internal/ingest"
	"github.com/Creeper5261/Rikki-sub002/internal/workspace"
)

// statsLogEvery is how often counters are logged, in processed events.
const statsLogEvery = 100

// Ingester is the part of the ingestion pipeline the worker drives.
type Ingester interface {
	IngestOne(ctx context.Context, root, path, expectedHash string) (ingest.Result, error)
	Remove(ctx context.Context, root, path string) error
}

// SchemaEnsurer prepares a workspace index before its first write.
type SchemaEnsurer interface {
	EnsureSchema(ctx context.Context, index string) error
}

// Options configures a Worker.
type Options struct {
	// Rate caps ingested events per second (0 = unlimited).
	Rate float64

	// RemoveMissing deletes a file's documents when its event names a file
	// that no longer exists.
	RemoveMissing bool
}

// Worker indexes one event at a time.
type Worker struct {
	ingester      Ingester
	schema        SchemaEnsurer
	limiter       *rate.Limiter
	removeMissing bool
	stats         Stats

	mu      sync.Mutex
	ensured map[string]bool
}

// New creates a worker. schema may be nil when indexes are managed elsewhere.
func New(ingester Ingester, schema SchemaEnsurer, opts Options) *Worker {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.Rate), max(1, int(opts.Rate)))
	}
	return &Worker{
		ingester:      ingester,
		schema:        schema,
		limiter:       limiter,
		removeMissing: opts.RemoveMissing,
		ensured:       make(map[string]bool),
	}
}

// Stats returns the current counters.
func (w *Worker) Stats() StatsSnapshot {
	return w.stats.Snapshot()
}

// Run consumes events until ctx is done or the consumer stops.
func (w *Worker) Run(ctx context.Context, consumer broker.Consumer) error {
	slog.Info("worker_started")
	err := consumer.Consume(ctx, w.HandleMessage)
	snap := w.Stats()
	slog.Info("worker_stopped",
		slog.Int64("processed", snap.Processed),
		slog.Int64("indexed", snap.Indexed),
		slog.Int64("failed", snap.Failed))
	return err
}

// HandleMessage decodes a FileChange message and handles it. It is a
// broker.Handler.
func (w *Worker) HandleMessage(ctx context.Context, msg broker.Message) error {
	ev, err := event.DecodeFileChange(msg.Value)
	if err != nil {
		w.fail(err)
		return err
	}
	return w.Handle(ctx, ev)
}

// Handle indexes the file named by ev.
func (w *Worker) Handle(ctx context.Context, ev event.FileChange) error {
	if err := w.limiter.Wait(ctx); err != nil {
		return err
	}

	slog.Debug("worker_event",
		slog.String("trace_id", ev.TraceID),
		slog.String("root", ev.RepoRoot),
		slog.String("path", ev.RelativePath))

	if err := w.ensureSchema(ctx, ev.RepoRoot); err != nil {
		w.fail(err)
		return err
	}

	res, err := w.ingester.IngestOne(ctx, ev.RepoRoot, ev.RelativePath, ev.ContentHash)
	if err != nil {
		if w.removeMissing && apperrors.GetCode(err) == apperrors.ErrCodeFileNotFound {
			return w.remove(ctx, ev)
		}
		w.fail(err)
		slog.Warn("worker_ingest_failed",
			slog.String("trace_id", ev.TraceID),
			slog.String("path", ev.RelativePath),
			slog.String("error", err.Error()))
		return err
	}

	snap := w.stats.record(func(s *StatsSnapshot) {
		s.Processed++
		if res.Skipped {
			s.Skipped++
			return
		}
		s.Indexed++
		s.EmbedCalls++
		s.EmbedTime += res.EmbedDuration
	})
	w.maybeLog(snap)
	return nil
}

func (w *Worker) remove(ctx context.Context, ev event.FileChange) error {
	if err := w.ingester.Remove(ctx, ev.RepoRoot, ev.RelativePath); err != nil {
		w.fail(err)
		return err
	}
	snap := w.stats.record(func(s *StatsSnapshot) {
		s.Processed++
		s.Removed++
	})
	w.maybeLog(snap)
	return nil
}

func (w *Worker) ensureSchema(ctx context.Context, root string) error {
	if w.schema == nil {
		return nil
	}
	index := workspace.IndexName(root)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ensured[index] {
		return nil
	}
	if err := w.schema.EnsureSchema(ctx, index); err != nil {
		return err
	}
	w.ensured[index] = true
	return nil
}

func (w *Worker) fail(err error) {
	w.stats.record(func(s *StatsSnapshot) {
		s.Processed++
		s.Failed++
		s.LastError = err.Error()
	})
}

func (w *Worker) maybeLog(s StatsSnapshot) {
	if s.Processed%statsLogEvery != 0 {
		return
	}
	slog.Info("worker_stats",
		slog.Int64("processed", s.Processed),
		slog.Int64("indexed", s.Indexed),
		slog.Int64("skipped", s.Skipped),
		slog.Int64("removed", s.Removed),
		slog.Int64("failed", s.Failed),
		slog.Duration("avg_embed", s.AvgEmbed()),
		slog.String("last_error", s.LastError))
}
