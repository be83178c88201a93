package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/karimelassali/baraka-dispatch/internal/api"
	"github.com/karimelassali/baraka-dispatch/internal/audience"
	"github.com/karimelassali/baraka-dispatch/internal/config"
	"github.com/karimelassali/baraka-dispatch/internal/db"
	"github.com/karimelassali/baraka-dispatch/internal/directory"
	"github.com/karimelassali/baraka-dispatch/internal/history"
	"github.com/karimelassali/baraka-dispatch/internal/metrics"
	"github.com/karimelassali/baraka-dispatch/internal/progress"
	"github.com/karimelassali/baraka-dispatch/internal/sequencer"
	"github.com/karimelassali/baraka-dispatch/internal/store"
	"github.com/karimelassali/baraka-dispatch/internal/transport"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dispatch server",
	RunE:  runServe,
}

var configFile string

func init() {
	serveCmd.Flags().StringVarP(&configFile, "config", "c", "/etc/baraka/dispatch.yaml", "Path to configuration file")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Optional .env for local development; env always wins for secrets.
	_ = godotenv.Load()

	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if key := os.Getenv("BARAKA_GATEWAY_API_KEY"); key != "" {
		cfg.Gateway.APIKey = key
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	database, err := db.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		return err
	}

	var tr transport.Transport
	if cfg.Gateway.BaseURL != "" {
		tr = transport.NewGateway(cfg.Gateway.BaseURL, cfg.Gateway.APIKey, cfg.Gateway.Channel, cfg.Gateway.Timeout)
		logger.Info("using message gateway", "base_url", cfg.Gateway.BaseURL, "channel", cfg.Gateway.Channel)
	} else {
		tr = transport.NewLoggingMock(logger)
		logger.Warn("no gateway configured, sends will be logged only")
	}

	m := metrics.New()
	campaignStore := store.New(database.DB)
	seq := sequencer.New(campaignStore, tr, m, logger, cfg.Dispatch.SendInterval)

	srv := api.NewServer(cfg, api.Deps{
		Resolver:  audience.New(directory.NewSQLDirectory(database.DB)),
		Store:     campaignStore,
		Sequencer: seq,
		Progress:  progress.New(campaignStore),
		History:   history.New(campaignStore, cfg.Dispatch.HistoryPageSize),
		Metrics:   m,
	}, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down...", "signal", sig.String())
	case err := <-errCh:
		return err
	}

	// Stop delivery first: in-flight sends wind down, unrecorded recipients
	// are retried on resume.
	seq.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
