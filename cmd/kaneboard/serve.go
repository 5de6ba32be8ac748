package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kaneboard/kaneboard/internal/audit"
	"github.com/kaneboard/kaneboard/internal/clock"
	"github.com/kaneboard/kaneboard/internal/config"
	"github.com/kaneboard/kaneboard/internal/controlplane"
	"github.com/kaneboard/kaneboard/internal/health"
	"github.com/kaneboard/kaneboard/internal/logging"
	"github.com/kaneboard/kaneboard/internal/notify"
	"github.com/kaneboard/kaneboard/internal/policy"
	"github.com/kaneboard/kaneboard/internal/store"
	"github.com/kaneboard/kaneboard/internal/tracker"
)

var (
	listenAddr string
	dbPath     string
	dbDriver   string
	dbDSN      string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Kaneboard API daemon",
	Long:  `Starts the Kaneboard daemon which provides the HTTP API for boards, tickets and timers.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address for the API server (overrides config)")
	serveCmd.Flags().StringVar(&dbDriver, "driver", "", "Database driver: sqlite or postgres (overrides config)")
	serveCmd.Flags().StringVar(&dbPath, "db", "", "Path to SQLite database (overrides config)")
	serveCmd.Flags().StringVar(&dbDSN, "dsn", "", "Postgres connection string (overrides config)")
}

func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.Load(configPath)
	} else {
		cfg, err = config.LoadFromHome()
	}
	if err != nil {
		return nil, err
	}

	if listenAddr != "" {
		cfg.Listen = listenAddr
	}
	if dbDriver != "" {
		cfg.Database.Driver = dbDriver
	}
	if dbPath != "" {
		cfg.Database.Path = dbPath
	}
	if dbDSN != "" {
		cfg.Database.DSN = dbDSN
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (*store.Store, error) {
	if cfg.Driver == "postgres" {
		return store.OpenPostgres(ctx, cfg.DSN)
	}
	return store.New(cfg.Path)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Env, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting kaneboard daemon", "driver", cfg.Database.Driver, "version", controlplane.Version)

	// Initialize store
	s, err := openStore(cmd.Context(), cfg.Database)
	if err != nil {
		return err
	}

	// Notification delivery
	sinks := []notify.Sink{notify.NewLogSink(logger.With("component", "notify"))}
	for _, url := range cfg.Notify.Webhooks {
		sinks = append(sinks, notify.NewWebhookSink(url))
	}
	dispatcher := notify.New(cfg.Notify, logger, sinks...)
	dispatcher.Start()

	// Initialize components
	clk := clock.Real()
	pol := policy.New(s)
	recorder := audit.NewRecorder(s, dispatcher, logger.With("component", "audit"))
	svc := tracker.New(s, pol, pol, recorder, clk, logger.With("component", "tracker"))
	reports := health.NewService(s, pol, clk, cfg.Health.CacheTTL, logger.With("component", "health"))
	server := controlplane.NewServer(svc, reports, s, cfg.Listen, logger.With("component", "http"))

	// Set up signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Channel to receive server errors
	serverErr := make(chan error, 1)

	go func() {
		err := server.Start()
		if err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Wait for shutdown signal or server error
	select {
	case sig := <-sigCh:
		logger.Info("received signal, initiating graceful shutdown", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			logger.Error("server error", "error", err)
			dispatcher.Stop()
			s.Close()
			return err
		}
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	logger.Info("shutting down HTTP server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("draining notifications")
	dispatcher.Stop()
	stats := dispatcher.Stats()
	logger.Info("notifications drained", "delivered", stats.Delivered, "failed", stats.Failed, "dropped", stats.Dropped)

	logger.Info("closing database connection")
	if err := s.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}
