package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"NewsScanner/internal/app"
	"NewsScanner/internal/config"
	"NewsScanner/internal/logging"
)

var (
	cfgFile string
	debug   bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "newsscanner",
		Short:         "Collect, scrape and summarize housing news",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "log at debug level")

	root.AddCommand(
		stageCommand("ingest", "Fetch feeds and store new items"),
		stageCommand("scrape", "Download article text for stored items"),
		stageCommand("enrich", "Categorize and summarize scraped items"),
		runCommand(),
		serveCommand(),
		migrateCommand(),
		rescrapeCommand(),
	)
	return root
}

func loadConfig() (config.Config, *slog.Logger, error) {
	if cfgFile != "" {
		if err := os.Setenv("NEWS_SCANNER_CONFIG", cfgFile); err != nil {
			return config.Config{}, nil, err
		}
	}
	cfg := config.Load()
	if debug {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, logging.NewWithFormat(cfg.Logging.Level, cfg.Logging.Format, os.Stderr), nil
}

// withApp builds the application for one command and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(context.Context, *app.Application, *slog.Logger) error) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	application, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Warn("close repository", "error", err)
		}
	}()
	return fn(cmd.Context(), application, logger)
}

func stageCommand(name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.Application, logger *slog.Logger) error {
				stage, err := a.Stage(name)
				if err != nil {
					return err
				}
				ids, err := stage.Run(ctx)
				if err != nil {
					return err
				}
				logger.Info("stage finished", "stage", name, "items", len(ids))
				return nil
			})
		},
	}
}

func runCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run ingest, scrape and enrich once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.Application, _ *slog.Logger) error {
				_, err := a.Pipeline.Run(ctx)
				return err
			})
		},
	}
}

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run the pipeline on schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.Application, _ *slog.Logger) error {
				return a.Serve(ctx)
			})
		},
	}
}

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			applied, err := app.Migrate(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			logger.Info("migrations applied", "count", len(applied), "names", applied)
			return nil
		},
	}
}

func rescrapeCommand() *cobra.Command {
	var id int64
	cmd := &cobra.Command{
		Use:   "rescrape",
		Short: "Scrape one item again, replacing its text",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.Application, logger *slog.Logger) error {
				item, err := a.Scraper.RescrapeByID(ctx, id)
				if err != nil {
					return err
				}
				logger.Info("item rescraped", "id", item.ID, "url", item.OnlineURL())
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "item id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
