package scanner

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/Creeper5261/Rikki-sub002/internal/broker"
	"github.com/Creeper5261/Rikki-sub002/internal/event"
)

// FullScan publishes a file-change event for every file of a repository.
type FullScan struct {
	scanner   *Scanner
	publisher broker.Publisher
	topic     string
	limiter   *rate.Limiter
}

// FullScanOptions configures a FullScan.
type FullScanOptions struct {
	// Topic defaults to event.TopicFileChange.
	Topic string

	// PublishRate caps published events per second (0 = unlimited).
	PublishRate float64
}

// NewFullScan creates a full-scan publisher.
func NewFullScan(s *Scanner, publisher broker.Publisher, opts FullScanOptions) *FullScan {
	if opts.Topic == "" {
		opts.Topic = event.TopicFileChange
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.PublishRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.PublishRate), max(1, int(opts.PublishRate)))
	}
	return &FullScan{scanner: s, publisher: publisher, topic: opts.Topic, limiter: limiter}
}

// Run scans root and publishes every event keyed by its trace id. It returns
// the number of events published; on a publish failure that count covers
// the events sent before it.
func (f *FullScan) Run(ctx context.Context, root, traceID string) (int, error) {
	start := time.Now()
	events, err := f.scanner.Scan(ctx, root, traceID)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, ev := range events {
		if err := f.limiter.Wait(ctx); err != nil {
			return sent, err
		}
		payload, err := ev.Encode()
		if err != nil {
			return sent, err
		}
		if err := f.publisher.Publish(ctx, f.topic, []byte(ev.TraceID), payload); err != nil {
			slog.Warn("full_scan_publish_failed",
				slog.String("trace_id", ev.TraceID),
				slog.String("path", ev.RelativePath),
				slog.String("error", err.Error()))
			return sent, err
		}
		sent++
		if sent%progressEvery == 0 {
			slog.Info("full_scan_progress",
				slog.String("trace_id", ev.TraceID),
				slog.Int("published", sent),
				slog.Int("total", len(events)))
		}
	}

	slog.Info("full_scan_done",
		slog.String("root", root),
		slog.Int("published", sent),
		slog.Duration("took", time.Since(start)))
	return sent, nil
}

// HandleScanRequest is a broker.Handler that runs a full scan for each
// ScanRequest message.
func (f *FullScan) HandleScanRequest(ctx context.Context, msg broker.Message) error {
	req, err := event.DecodeScanRequest(msg.Value)
	if err != nil {
		return err
	}
	slog.Info("scan_request_received",
		slog.String("trace_id", req.TraceID),
		slog.String("root", req.RepoRoot))
	_, err = f.Run(ctx, req.RepoRoot, req.TraceID)
	return err
}
