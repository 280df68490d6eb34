package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Creeper5261/Rikki-sub002/internal/event"
	"github.com/Creeper5261/Rikki-sub002/internal/output"
	"github.com/Creeper5261/Rikki-sub002/internal/scanner"
	"github.com/Creeper5261/Rikki-sub002/internal/worker"
)

type workerOptions struct {
	scanRequests  bool
	scanRoot      string
	removeMissing bool
}

func newWorkerCmd(g *globals) *cobra.Command {
	var opts workerOptions

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume file-change events and index them",
		Long: `Consume file-change events from the broker and index each file.

Without kafka.brokers the broker is an in-process queue; combine it with
--scan to scan a workspace into the queue and index it in this process.
Stop with Ctrl-C; counters are printed on exit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorker(cmd.Context(), cmd, g, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.scanRequests, "scan-requests", false, "Also consume scan requests and run full scans")
	cmd.Flags().StringVar(&opts.scanRoot, "scan", "", "Scan this workspace into the queue at startup")
	cmd.Flags().BoolVar(&opts.removeMissing, "remove-missing", true, "Delete documents of files that no longer exist")

	return cmd
}

func runWorker(ctx context.Context, cmd *cobra.Command, g *globals, opts workerOptions) error {
	a, err := newApp(g.cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	p, err := a.ingestPipeline()
	if err != nil {
		return err
	}
	t, err := a.broker()
	if err != nil {
		return err
	}

	w := worker.New(p, a.store, worker.Options{
		Rate:          g.cfg.Ingest.RatePerSecond,
		RemoveMissing: opts.removeMissing,
	})
	fullScan := scanner.NewFullScan(a.scanner(), t.Publisher, scanner.FullScanOptions{
		Topic:       g.cfg.Kafka.FileChangeTopic,
		PublishRate: g.cfg.Ingest.RatePerSecond,
	})

	changes, err := t.Consumer(g.cfg.Kafka.FileChangeTopic)
	if err != nil {
		return err
	}
	defer func() { _ = changes.Close() }()

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error { return w.Run(egCtx, changes) })

	if opts.scanRequests {
		requests, err := t.Consumer(g.cfg.Kafka.ScanTopic)
		if err != nil {
			return err
		}
		defer func() { _ = requests.Close() }()
		eg.Go(func() error { return requests.Consume(egCtx, fullScan.HandleScanRequest) })
	}

	if opts.scanRoot != "" {
		root, err := resolveRoot(opts.scanRoot)
		if err != nil {
			return err
		}
		eg.Go(func() error {
			n, err := fullScan.Run(egCtx, root, event.NewTraceID())
			slog.Info("worker_startup_scan", slog.String("root", root), slog.Int("published", n))
			return err
		})
	}

	err = eg.Wait()
	stats := w.Stats()
	output.New(cmd.OutOrStdout()).Statusf("=", "processed %d: %d indexed, %d unchanged, %d removed, %d failed (avg embed %s)",
		stats.Processed, stats.Indexed, stats.Skipped, stats.Removed, stats.Failed, stats.AvgEmbed())
	if ctx.Err() != nil {
		return nil
	}
	return err
}
