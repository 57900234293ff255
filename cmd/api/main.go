package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/troublesprouter/freight-crm/internal/config"
	"github.com/troublesprouter/freight-crm/internal/infra/database"
	"github.com/troublesprouter/freight-crm/internal/infra/http/handlers"
	"github.com/troublesprouter/freight-crm/internal/infra/queue"
	"github.com/troublesprouter/freight-crm/internal/logs"
)

const appName = "freight-crm"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Freight brokerage CRM: lead pool, claims and capacity",
		Long: `freight-crm serves the lead allocation API for a multi-tenant
freight brokerage CRM.

Reps claim companies out of a shared pool up to their lead cap, release
them back with a cooldown, and a daily sweep raises follow-up tasks for
accounts that went quiet.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML); defaults to CONFIG_FILE or ./config.yaml")

	load := func() (*config.Config, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		logs.Init(logs.Options{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
			File:   cfg.Logging.File,
		})
		return cfg, nil
	}

	cmd.AddCommand(serveCmd(load), sweepCmd(load), migrateCmd(load), versionCmd())
	return cmd
}

func serveCmd(load func() (*config.Config, error)) *cobra.Command {
	var seed string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background sweep",
		Long: `Run the HTTP API and background sweep.

Without database.driver the service keeps everything in memory and starts
empty; pass --seed with a YAML fixture to load organizations, reps and leads.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSeeded(load, seed)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app := &App{}
			if err := app.Initialize(ctx, cfg); err != nil {
				return err
			}
			defer app.Close()

			return app.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&seed, "seed", "", "YAML fixture loaded into the in-memory store (overrides database.seed_file)")
	return cmd
}

// loadSeeded applies --seed over the loaded config.
func loadSeeded(load func() (*config.Config, error), seed string) (*config.Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	if seed == "" {
		return cfg, nil
	}
	if cfg.Database.Driver != "" {
		return nil, errors.New("--seed only applies to the in-memory store")
	}
	cfg.Database.SeedFile = seed
	return cfg, nil
}

func sweepCmd(load func() (*config.Config, error)) *cobra.Command {
	var (
		enqueue bool
		seed    string
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run the inactivity sweep once and print the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSeeded(load, seed)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if enqueue {
				return enqueueSweep(ctx, cfg)
			}

			app := &App{}
			if err := app.Initialize(ctx, cfg); err != nil {
				return err
			}
			defer app.Close()

			report, err := app.runner.Run(ctx, "cli", time.Now())
			if report != nil {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				_ = enc.Encode(report)
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&enqueue, "enqueue", false, "Publish a sweep request to RabbitMQ instead of running locally")
	cmd.Flags().StringVar(&seed, "seed", "", "YAML fixture loaded into the in-memory store before the sweep")
	return cmd
}

func enqueueSweep(ctx context.Context, cfg *config.Config) error {
	if !cfg.RabbitMQ.Enabled {
		return errors.New("--enqueue needs rabbitmq.enabled")
	}
	broker, err := queue.NewRabbitMQ(cfg.RabbitMQ.URL)
	if err != nil {
		return err
	}
	defer broker.Close()

	if err := queue.NewProducer(broker.Ch).PublishSweepRequest(ctx, queue.SweepRequest{RequestedBy: "cli"}); err != nil {
		return err
	}
	logs.Logger.Info("📨 sweep request published")
	return nil
}

func migrateCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cfg.Database.Driver == "" {
				return errors.New("migrate needs database.driver=postgres")
			}

			store, err := openStorage(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := database.Migrate(cmd.Context(), store.gorm); err != nil {
				return err
			}
			logs.Logger.Info("✅ schema up to date")
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, handlers.Version)
		},
	}
}
