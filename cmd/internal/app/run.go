package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"authority/cmd/internal/migrate"
)

// NewRootCmd builds the authority CLI.
func NewRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "authority",
		Short:         "Credential and session authority",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file layered over AUTHORITY_* env")
	BindFlags(root.PersistentFlags())

	load := func(cmd *cobra.Command) (Config, error) {
		return Overlay(LoadConfig(), configFile, cmd.Flags())
	}

	root.AddCommand(newServeCmd(load), newMigrateCmd(load))
	return root
}

type configLoader func(cmd *cobra.Command) (Config, error)

func newServeCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			log := NewLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if cfg.AutoMigrate {
				if cfg.DatabaseURL == "" {
					return oops.Code("CONFIG_INVALID").Errorf("--auto-migrate requires a database url")
				}
				if err := migrate.Up(ctx, cfg.DatabaseURL); err != nil {
					return err
				}
				log.Info("db.migrated")
			}

			a, err := New(ctx, cfg, log)
			if err != nil {
				return oops.Code("STARTUP_FAILED").With("operation", "wire app").Wrap(err)
			}
			return a.Run(ctx)
		},
	}
}

func newMigrateCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return oops.Code("CONFIG_INVALID").Errorf("AUTHORITY_DATABASE_URL or --database-url is required")
			}
			cmd.Println("Running migrations...")
			if err := migrate.Up(cmd.Context(), cfg.DatabaseURL); err != nil {
				return err
			}
			cmd.Println("Migrations completed successfully")
			return nil
		},
	}
}

// Execute runs the CLI and returns the process exit code.
func Execute(ctx context.Context) int {
	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		root.PrintErrln("Error:", err)
		return 1
	}
	return 0
}

// Main is the binary entrypoint.
func Main() { os.Exit(Execute(context.Background())) }
