// Package cmd provides the codeagent commands.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Creeper5261/Rikki-sub002/internal/config"
	"github.com/Creeper5261/Rikki-sub002/internal/logging"
	"github.com/Creeper5261/Rikki-sub002/pkg/version"
)

// annotationServerMode marks commands whose stdout carries a protocol
// stream, so logs must go to the file only.
const annotationServerMode = "codeagent/server-mode"

// globals is the state shared by every subcommand.
type globals struct {
	projectDir string
	debug      bool
	logLevel   string

	cfg            *config.Config
	loggingCleanup func()
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:   "codeagent",
		Short: "Hybrid code search and indexing for coding agents",
		Long: `codeagent indexes repositories into Elasticsearch and answers code
questions by combining symbol lookup, file name matching and vector
similarity.

Files are chunked by declaration with tree-sitter, embedded, and written
per workspace index. Changes flow through a watcher or a full scan,
optionally over Kafka to indexing workers.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return g.setup(cmd)
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			g.teardown()
			return nil
		},
	}
	cmd.SetVersionTemplate("codeagent version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&g.projectDir, "project", ".", "Directory whose .codeagent.yaml is loaded")
	cmd.PersistentFlags().BoolVar(&g.debug, "debug", false, "Debug logging, mirrored to stderr")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")

	cmd.AddCommand(newSearchCmd(g))
	cmd.AddCommand(newIngestCmd(g))
	cmd.AddCommand(newIndexCmd(g))
	cmd.AddCommand(newWorkerCmd(g))
	cmd.AddCommand(newWatchCmd(g))
	cmd.AddCommand(newSchemaCmd(g))
	cmd.AddCommand(newServeCmd(g))
	cmd.AddCommand(newConfigCmd(g))
	cmd.AddCommand(newLogsCmd(g))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

// setup loads configuration and installs the logger.
func (g *globals) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(g.projectDir)
	if err != nil {
		return err
	}
	if g.logLevel != "" {
		cfg.Logging.Level = g.logLevel
	}
	if g.debug {
		cfg.Logging.Level = "debug"
		cfg.Logging.Stderr = true
	}
	g.cfg = cfg

	logCfg := logging.Config{
		Level:         cfg.Logging.Level,
		FilePath:      cfg.Logging.File,
		MaxSizeMB:     cfg.Logging.MaxSizeMB,
		MaxFiles:      cfg.Logging.MaxFiles,
		WriteToStderr: cfg.Logging.Stderr,
	}
	install := logging.Install
	if cmd.Annotations[annotationServerMode] == "true" {
		install = logging.InstallServerMode
	}
	cleanup, err := install(logCfg)
	if err != nil {
		// Logging is best effort; commands still run without the file.
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: file logging disabled: %v\n", err)
		return nil
	}
	g.loggingCleanup = cleanup
	slog.Debug("command_start", slog.String("command", cmd.CommandPath()), slog.String("version", version.Version))
	return nil
}

func (g *globals) teardown() {
	if g.loggingCleanup != nil {
		g.loggingCleanup()
		g.loggingCleanup = nil
	}
}

// resolveRoot returns root as an absolute, existing directory.
func resolveRoot(root string) (string, error) {
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("invalid root %q: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("root %s: %w", abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("root %s is not a directory", abs)
	}
	return abs, nil
}
