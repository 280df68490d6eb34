package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Creeper5261/Rikki-sub002/internal/output"
	"github.com/Creeper5261/Rikki-sub002/internal/search"
	"github.com/Creeper5261/Rikki-sub002/internal/watcher"
	"github.com/Creeper5261/Rikki-sub002/internal/workspace"
)

type watchOptions struct {
	root    string
	publish bool
}

func newWatchCmd(g *globals) *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Index files as they change",
		Long: `Watch the workspace and index changed files after a quiet period
(watch.debounce). Deleted files have their documents removed.

With --publish, changes are published as file-change events for workers
instead of being indexed in this process.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			root, err := resolveRoot(opts.root)
			if err != nil {
				return err
			}
			a, err := newApp(g.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			output.New(cmd.ErrOrStderr()).Statusf("~", "watching %s (Ctrl-C to stop)", root)
			return runWatch(cmd.Context(), a, root, opts.publish, nil)
		},
	}

	cmd.Flags().StringVar(&opts.root, "root", ".", "Workspace root")
	cmd.Flags().BoolVar(&opts.publish, "publish", false, "Publish file-change events instead of ingesting")

	return cmd
}

// runWatch watches root until ctx is done. invalidate receives structural
// changes when watch.invalidate_on_change is set.
func runWatch(ctx context.Context, a *app, root string, publish bool, invalidate []watcher.Invalidator) error {
	p, err := a.ingestPipeline()
	if err != nil {
		return err
	}
	if err := a.store.EnsureSchema(ctx, workspace.IndexName(root)); err != nil {
		slog.Warn("watch_schema_check_failed", slog.String("root", root), slog.String("error", err.Error()))
	}

	opts := watcher.DispatchOptions{Topic: a.cfg.Kafka.FileChangeTopic}
	if publish {
		if len(a.cfg.Kafka.Brokers) == 0 {
			return errors.New("--publish needs kafka.brokers (or CODEAGENT_KAFKA_BROKERS)")
		}
		t, err := a.broker()
		if err != nil {
			return err
		}
		opts.Publisher = t.Publisher
	}
	if a.cfg.Watch.InvalidateOnChange {
		opts.Invalidate = invalidate
	}

	fsw, err := watcher.NewFSWatcher(watcher.Options{DebounceWindow: a.cfg.Watch.Debounce})
	if err != nil {
		return err
	}
	dispatcher := watcher.NewDispatcher(root, p, opts)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error { return fsw.Run(egCtx, root) })
	eg.Go(func() error {
		dispatcher.Run(egCtx, fsw.Events())
		return nil
	})
	return eg.Wait()
}

// cachePurger adapts the searcher's result cache to watcher.Invalidator.
type cachePurger struct {
	searcher *search.Orchestrator
}

func (c cachePurger) Invalidate(string) { c.searcher.Purge() }
