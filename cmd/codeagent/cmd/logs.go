package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Creeper5261/Rikki-sub002/internal/logging"
)

func newLogsCmd(g *globals) *cobra.Command {
	var lines int
	var level string
	var file string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print recent log entries",
		Long: `Print the last entries of the log file, oldest first.

Examples:
  codeagent logs
  codeagent logs -n 200 --level warn`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := file
			if path == "" {
				path = g.cfg.Logging.File
			}
			entries, err := logging.Tail(path, lines, logging.LevelFromString(level))
			if err != nil {
				return err
			}
			for _, e := range entries {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), e.String()); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of entries (0 for all)")
	cmd.Flags().StringVar(&level, "level", "debug", "Minimum level: debug, info, warn, error")
	cmd.Flags().StringVar(&file, "file", "", "Log file (default logging.file)")
	return cmd
}
