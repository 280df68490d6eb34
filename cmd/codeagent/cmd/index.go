package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Creeper5261/Rikki-sub002/internal/event"
	"github.com/Creeper5261/Rikki-sub002/internal/output"
	"github.com/Creeper5261/Rikki-sub002/internal/scanner"
	"github.com/Creeper5261/Rikki-sub002/internal/worker"
)

type indexOptions struct {
	root    string
	publish bool
	request bool
}

func newIndexCmd(g *globals) *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Scan a workspace and index every file",
		Long: `Walk the workspace, hash every indexable file and index it.

By default files are ingested in this process. With --publish each file
becomes a file-change event on Kafka for indexing workers; with --request
a single scan request is sent and a worker performs the scan.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndex(cmd.Context(), cmd, g, opts)
		},
	}

	cmd.Flags().StringVar(&opts.root, "root", ".", "Workspace root")
	cmd.Flags().BoolVar(&opts.publish, "publish", false, "Publish file-change events instead of ingesting")
	cmd.Flags().BoolVar(&opts.request, "request", false, "Publish one scan request for a worker to run")
	cmd.MarkFlagsMutuallyExclusive("publish", "request")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, g *globals, opts indexOptions) error {
	root, err := resolveRoot(opts.root)
	if err != nil {
		return err
	}
	a, err := newApp(g.cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	out := output.New(cmd.OutOrStdout())
	traceID := event.NewTraceID()

	if opts.publish || opts.request {
		if len(g.cfg.Kafka.Brokers) == 0 {
			return errors.New("--publish and --request need kafka.brokers (or CODEAGENT_KAFKA_BROKERS)")
		}
		t, err := a.broker()
		if err != nil {
			return err
		}
		if opts.request {
			payload, err := event.ScanRequest{TraceID: traceID, RepoRoot: root}.Encode()
			if err != nil {
				return err
			}
			if err := t.Publisher.Publish(ctx, g.cfg.Kafka.ScanTopic, []byte(traceID), payload); err != nil {
				return err
			}
			out.Successf("scan request %s sent for %s", traceID, root)
			return nil
		}
		fs := scanner.NewFullScan(a.scanner(), t.Publisher, scanner.FullScanOptions{
			Topic:       g.cfg.Kafka.FileChangeTopic,
			PublishRate: g.cfg.Ingest.RatePerSecond,
		})
		n, err := fs.Run(ctx, root, traceID)
		if err != nil {
			return fmt.Errorf("published %d events before failing: %w", n, err)
		}
		out.Successf("published %d file-change events (trace %s)", n, traceID)
		return nil
	}

	p, err := a.ingestPipeline()
	if err != nil {
		return err
	}
	start := time.Now()
	events, err := a.scanner().Scan(ctx, root, traceID)
	if err != nil {
		return err
	}

	w := worker.New(p, a.store, worker.Options{Rate: g.cfg.Ingest.RatePerSecond})
	for i, ev := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		// Per-file failures are counted in the stats and do not stop the scan.
		_ = w.Handle(ctx, ev)
		out.Progress(i+1, len(events), ev.RelativePath)
	}

	stats := w.Stats()
	slog.Info("index_command_done",
		slog.String("root", root),
		slog.String("trace_id", traceID),
		slog.Int64("indexed", stats.Indexed),
		slog.Int64("skipped", stats.Skipped),
		slog.Int64("failed", stats.Failed),
		slog.Duration("took", time.Since(start)))

	out.Successf("%d files: %d indexed, %d unchanged, %d failed in %s",
		len(events), stats.Indexed, stats.Skipped, stats.Failed, time.Since(start).Round(time.Millisecond))
	if stats.Failed > 0 {
		out.Warningf("last error: %s", stats.LastError)
		return fmt.Errorf("%d files failed to index", stats.Failed)
	}
	return nil
}
