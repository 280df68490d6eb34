package cmd

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Creeper5261/Rikki-sub002/internal/output"
	"github.com/Creeper5261/Rikki-sub002/internal/search"
)

type searchOptions struct {
	limit  int
	format string
	root   string
	rerank bool
}

func newSearchCmd(g *globals) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search a workspace",
		Long: `Search a workspace with the hybrid search.

Symbol lookup, file name matching and vector similarity run in parallel;
results are deduplicated by location, scored against the query keywords
and filtered for quality.

Examples:
  codeagent search UserService
  codeagent search "where is the login token validated" -n 10
  codeagent search handler.go --format paths
  codeagent search "retry backoff" --format json --root ~/src/api`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, g, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default search.top_k)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json, paths")
	cmd.Flags().StringVar(&opts.root, "root", ".", "Workspace root")
	cmd.Flags().BoolVar(&opts.rerank, "rerank", false, "Re-rank results by symbol and snippet context")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, g *globals, query string, opts searchOptions) error {
	format, err := output.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	root, err := resolveRoot(opts.root)
	if err != nil {
		return err
	}
	limit := opts.limit
	if limit <= 0 {
		limit = g.cfg.Search.TopK
	}

	a, err := newApp(g.cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	start := time.Now()
	hits := a.searcher().Search(ctx, root, query, limit)
	if opts.rerank {
		hits = search.ContextReranker{}.Rerank(query, hits)
	}
	slog.Info("search_command_done",
		slog.String("root", root),
		slog.Int("results", len(hits)),
		slog.Bool("rerank", opts.rerank),
		slog.Duration("took", time.Since(start)))

	return output.New(cmd.OutOrStdout()).Hits(query, hits, format)
}
