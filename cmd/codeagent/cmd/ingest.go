package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Creeper5261/Rikki-sub002/internal/event"
	"github.com/Creeper5261/Rikki-sub002/internal/output"
	"github.com/Creeper5261/Rikki-sub002/internal/workspace"
)

func newIngestCmd(g *globals) *cobra.Command {
	var root string
	var remove bool

	cmd := &cobra.Command{
		Use:   "ingest <relative-path>...",
		Short: "Index individual files",
		Long: `Hash each file and index it unless its content is unchanged since the
last successful ingest. With --remove, delete the files' documents instead.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			absRoot, err := resolveRoot(root)
			if err != nil {
				return err
			}
			a, err := newApp(g.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			p, err := a.ingestPipeline()
			if err != nil {
				return err
			}
			if err := a.store.EnsureSchema(cmd.Context(), workspace.IndexName(absRoot)); err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			failed := 0
			for _, rel := range args {
				rel = filepath.ToSlash(rel)
				if remove {
					if err := p.Remove(cmd.Context(), absRoot, rel); err != nil {
						out.Errorf("%s: %v", rel, err)
						failed++
						continue
					}
					out.Successf("%s removed", rel)
					continue
				}

				hash, err := event.HashFile(filepath.Join(absRoot, filepath.FromSlash(rel)))
				if err != nil {
					out.Errorf("%s: %v", rel, err)
					failed++
					continue
				}
				res, err := p.IngestOne(cmd.Context(), absRoot, rel, hash)
				switch {
				case err != nil:
					out.Errorf("%s: %v", rel, err)
					failed++
				case res.Skipped:
					out.Statusf("-", "%s unchanged", rel)
				default:
					out.Successf("%s indexed (%d chunks, embed %s)", rel, res.ChunkCount, res.EmbedDuration.Round(time.Millisecond))
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", ".", "Workspace root the paths are relative to")
	cmd.Flags().BoolVar(&remove, "remove", false, "Delete the files' documents and hash entries")

	return cmd
}
