package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Creeper5261/Rikki-sub002/internal/output"
	"github.com/Creeper5261/Rikki-sub002/internal/workspace"
)

func newSchemaCmd(g *globals) *cobra.Command {
	var root string

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Manage the workspace index in Elasticsearch",
	}
	cmd.PersistentFlags().StringVar(&root, "root", ".", "Workspace root")

	ensure := &cobra.Command{
		Use:   "ensure",
		Short: "Create the index if missing and check its vector dimensions",
		Args:  cobra.NoArgs,
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

			index := workspace.IndexName(absRoot)
			if err := a.store.EnsureSchema(cmd.Context(), index); err != nil {
				return err
			}
			output.New(cmd.OutOrStdout()).Successf("index %s ready (%d dims)", index, a.store.Dimensions())
			return nil
		},
	}

	var dims int
	reindex := &cobra.Command{
		Use:   "reindex",
		Short: "Recreate the index with new vector dimensions",
		Long: `Drop and recreate the workspace index with --dims vector dimensions.
All documents are removed; run 'codeagent index' afterwards. Remember to
set elasticsearch.dimensions and embeddings.dimensions to the same value.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			absRoot, err := resolveRoot(root)
			if err != nil {
				return err
			}
			if dims <= 0 {
				dims = g.cfg.Elasticsearch.Dimensions
			}
			a, err := newApp(g.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			ctx := cmd.Context()
			index := workspace.IndexName(absRoot)
			existing := a.store.VectorDims(ctx, index)
			if existing == dims {
				output.New(cmd.OutOrStdout()).Statusf("-", "index %s already has %d dims", index, dims)
				return nil
			}
			if err := a.store.ReindexWithDimensions(ctx, index, existing, dims); err != nil {
				return fmt.Errorf("reindex %s: %w", index, err)
			}
			output.New(cmd.OutOrStdout()).Successf("index %s recreated: %d -> %d dims", index, existing, dims)
			return nil
		},
	}
	reindex.Flags().IntVar(&dims, "dims", 0, "New vector dimensions (default elasticsearch.dimensions)")

	cmd.AddCommand(ensure, reindex)
	return cmd
}
