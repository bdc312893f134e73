package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rpattn/nodequery/internal/config"
	"github.com/rpattn/nodequery/internal/logging"
	"github.com/rpattn/nodequery/internal/schema"
)

type rootOptions struct {
	configDir string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "nodequery",
		Short:         "Query schema-typed nodes with filter, sort and group arguments",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configDir, "config", ".", "directory containing config.yaml")

	cmd.AddCommand(newQueryCmd(opts))
	cmd.AddCommand(newTypesCmd(opts))
	cmd.AddCommand(newMigrateCmd(opts))
	return cmd
}

// env is what every subcommand needs after loading config.
type env struct {
	cfg      config.Config
	logger   *slog.Logger
	registry *schema.Registry
}

func loadEnv(opts *rootOptions) (*env, error) {
	cfg, err := config.Load(opts.configDir)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	if cfg.File != "" {
		logger.Debug("loaded config", "file", cfg.File)
	} else {
		logger.Debug("no config.yaml found, using defaults and env vars")
	}

	var registry *schema.Registry
	if cfg.Schema.Path != "" {
		registry, err = schema.LoadSDLFile(cfg.Schema.Path, nil)
		if err != nil {
			return nil, err
		}
	}
	return &env{cfg: cfg, logger: logger, registry: registry}, nil
}

func newTypesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List the node types declared by the schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(opts)
			if err != nil {
				return err
			}
			if e.registry == nil {
				return fmt.Errorf("schema.path is not configured")
			}
			for _, name := range e.registry.TypeNames() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the nodes table in the configured SQL store",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(opts)
			if err != nil {
				return err
			}
			s, err := openStore(cmd.Context(), e.cfg.Store, e.logger)
			if err != nil {
				return err
			}
			defer s.Close()
			e.logger.Info("nodes table ready", "driver", e.cfg.Store.Driver)
			return nil
		},
	}
}
