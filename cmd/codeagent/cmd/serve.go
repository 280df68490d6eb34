package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Creeper5261/Rikki-sub002/internal/mcp"
	"github.com/Creeper5261/Rikki-sub002/internal/watcher"
)

func newServeCmd(g *globals) *cobra.Command {
	var root string
	var watch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server over stdio",
		Long: `Run a Model Context Protocol server on stdin/stdout exposing the
search_code and index_status tools.

stdout carries JSON-RPC only; logs go to the log file. With --watch the
workspace is also kept indexed while the server runs.`,
		Annotations: map[string]string{annotationServerMode: "true"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			absRoot, err := resolveRoot(root)
			if err != nil {
				return err
			}
			a, err := newApp(g.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			searcher := a.searcher()
			srv, err := mcp.NewServer(mcp.Options{
				Searcher:   searcher,
				Inspector:  a.store,
				Embedder:   a.embedder,
				RootPath:   absRoot,
				Dimensions: g.cfg.Elasticsearch.Dimensions,
			})
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if !watch {
				return srv.Serve(ctx)
			}

			eg, egCtx := errgroup.WithContext(ctx)
			watchCtx, stopWatch := context.WithCancel(egCtx)
			defer stopWatch()
			eg.Go(func() error {
				// The client closing stdin ends the session, and the watcher with it.
				defer stopWatch()
				return srv.Serve(egCtx)
			})
			eg.Go(func() error {
				err := runWatch(watchCtx, a, absRoot, false,
					[]watcher.Invalidator{a.symbols, a.files, a.keywords, cachePurger{searcher}})
				if err != nil {
					// Search keeps working on the last indexed state.
					slog.Error("serve_watch_failed", slog.String("error", err.Error()))
				}
				return nil
			})
			return eg.Wait()
		},
	}

	cmd.Flags().StringVar(&root, "root", ".", "Workspace root searched when a call names none")
	cmd.Flags().BoolVar(&watch, "watch", false, "Index file changes while serving")

	return cmd
}
