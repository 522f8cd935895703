package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/MrEthical07/lireddit"
	"github.com/spf13/cobra"
)

const (
	storePostgres = "postgres"
	storeMemory   = "memory"
)

// app is the state shared by subcommands after config is loaded.
type app struct {
	envFiles []string
	store    string

	cfg    lireddit.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "lireddit",
		Short:         "GraphQL forum backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd.ErrOrStderr())
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
	root.PersistentFlags().StringSliceVar(&a.envFiles, "env-file", []string{".env"}, "dotenv files to load before the environment")
	root.PersistentFlags().StringVar(&a.store, "store", storePostgres, "user and post store: postgres or memory")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP server",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.serve(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply the Postgres schema",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.migrate(cmd.Context())
			},
		},
	)
	return root
}

func (a *app) load(logOut io.Writer) error {
	switch a.store {
	case storePostgres, storeMemory:
	default:
		return fmt.Errorf("unknown --store %q", a.store)
	}
	cfg, err := lireddit.LoadConfig(a.envFiles...)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	a.cfg = cfg
	a.logger = newLogger(cfg.Log, logOut)
	slog.SetDefault(a.logger)
	return nil
}

func newLogger(cfg lireddit.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
