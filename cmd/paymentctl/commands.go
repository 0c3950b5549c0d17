package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"StorefrontAPI/internal/bootstrap"
	"StorefrontAPI/internal/config"
	"StorefrontAPI/internal/db"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

var Version = "dev"

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "paymentctl",
		Short:         "Operator tasks for the storefront payment gateway",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("CONFIG_FILE"), "path to a YAML config file")

	root.AddCommand(migrateCmd(&configPath))
	root.AddCommand(createAdminCmd(&configPath))
	root.AddCommand(sweepCmd(&configPath))
	return root
}

// env is what every subcommand needs once flags are parsed.
type env struct {
	cfg  *config.Config
	log  *slog.Logger
	pool *pgxpool.Pool
}

func openEnv(ctx context.Context, configPath string) (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log := bootstrap.NewLogger(cfg, os.Stderr)
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: log, pool: pool}, nil
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and seed payment methods",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx, *configPath)
			if err != nil {
				return err
			}
			defer e.pool.Close()

			if err := db.Migrate(ctx, e.pool); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
			return nil
		},
	}
}

func createAdminCmd(configPath *string) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account for refunds and order lookups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx, *configPath)
			if err != nil {
				return err
			}
			defer e.pool.Close()

			svc := bootstrap.NewServices(ctx, e.cfg, e.pool, e.log)
			defer svc.Close()

			id, err := svc.Auth.CreateAdmin(ctx, email, password)
			if err != nil {
				return fmt.Errorf("create admin: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin %s created with authid %d\n", email, id)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "admin email")
	cmd.Flags().StringVar(&password, "password", "", "admin password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func sweepCmd(configPath *string) *cobra.Command {
	var (
		olderThan time.Duration
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Poll providers for open transactions whose webhook never arrived",
		Long: `Sweep loads pending and processing payment transactions that have not
changed for --older-than and asks each provider for their current status.
Completed payments are reconciled onto their orders exactly as a webhook would.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 || limit <= 0 {
				return fmt.Errorf("--older-than and --limit must be positive")
			}
			ctx := cmd.Context()
			e, err := openEnv(ctx, *configPath)
			if err != nil {
				return err
			}
			defer e.pool.Close()

			svc := bootstrap.NewServices(ctx, e.cfg, e.pool, e.log)
			defer svc.Close()

			report, err := svc.Sweep.Run(ctx, olderThan, limit)
			if err != nil {
				return fmt.Errorf("sweep: %w", err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 15*time.Minute, "only transactions untouched for this long")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum transactions per run")
	return cmd
}
