// Package cli implements the stub-server command line.
package cli

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/stevemurr/stub-server/config"
	"github.com/stevemurr/stub-server/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string

	// Config is resolved before any command runs.
	Config config.Config
}

// NewRootCommand creates the root command. Without a subcommand it serves.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}
	serve := NewServeCommand(opts)

	cmd := &cobra.Command{
		Use:   "stub-server",
		Short: "Stub Server - a throwaway REST backend",
		Long: `Serve every JSON or YAML file in a data directory as a REST collection.

Collections are loaded on first use and kept in memory; changes made
through the API are never written back.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.ConfigFile, cmd.Flags())
			if err != nil {
				return err
			}
			opts.Config = cfg
			slog.SetDefault(cfg.NewLogger(cmd.ErrOrStderr()))
			return nil
		},
		RunE: serve.RunE,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (yaml, toml or json)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(serve)
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewCollectionsCommand(opts))

	return cmd
}

// openSource creates the configured source. The returned func releases it.
func openSource(cfg config.Config) (store.Source, func(), error) {
	src, err := store.NewSource(cfg.Backend, cfg.DataDirectory)
	if err != nil {
		return nil, nil, err
	}
	release := func() {
		if c, ok := src.(io.Closer); ok {
			if err := c.Close(); err != nil {
				slog.Warn("closing source", "backend", cfg.Backend, "error", err)
			}
		}
	}
	return src, release, nil
}
