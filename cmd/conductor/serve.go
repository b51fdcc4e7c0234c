package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/haasonsaas/conductor/internal/config"
	"github.com/haasonsaas/conductor/internal/observability"
	"github.com/haasonsaas/conductor/internal/schedule"
	"github.com/haasonsaas/conductor/internal/server"
)

const defaultConfigName = "conductor.yaml"

func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Conductor server",
		Long: `Start the Conductor server with the configured provider, tools,
workflows, and scheduled jobs.

The server will:
1. Load configuration from the specified file (or conductor.yaml)
2. Open the SQLite database, or run fully in memory when no path is set
3. Initialize the LLM provider and the tool registry
4. Register built-in workflows and configured cron jobs
5. Start the HTTP server for chat, runs, workflows, and metrics

Graceful shutdown is handled on SIGINT/SIGTERM signals.`,
		Example: `  # Start with default config
  conductor serve

  # Start with custom config
  conductor serve --config /etc/conductor/production.yaml

  # Start with debug logging
  conductor serve --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigName, "Path to configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	return cmd
}

func runServe(ctx context.Context, configPath string, debug bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if debug {
		cfg.Logging.Level = "debug"
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: debug,
	})
	observability.SetDefault(logger)

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics()
	}

	traceEndpoint := ""
	if cfg.Observability.TracingEnabled {
		traceEndpoint = cfg.Observability.OTLPEndpoint
	}
	shutdownTracer, err := observability.SetupTracing(ctx, observability.TraceConfig{
		ServiceName:    "conductor",
		ServiceVersion: version,
		Endpoint:       traceEndpoint,
		Insecure:       true,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	app, err := buildApp(cfg, metrics, logger)
	if err != nil {
		return err
	}
	defer app.stores.Close()

	scheduler := schedule.NewScheduler(app.recorder, logger)
	if err := scheduler.Start(cfg.Schedule.Jobs); err != nil {
		return err
	}
	defer scheduler.Stop()

	srv := server.New(server.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.HTTPPort,
	}, app.chat, app.recorder, app.engine, app.workflows, &app.stores, metrics, logger)

	if err := srv.Start(); err != nil {
		return err
	}

	metricsSrv := startMetricsServer(cfg, logger)

	logger.Info("conductor started",
		"version", version,
		"addr", srv.Addr(),
		"provider", cfg.LLM.DefaultProvider,
		"database", databaseLabel(cfg),
	)

	// Block until a shutdown signal arrives.
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", "error", err)
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics shutdown error", "error", err)
		}
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		logger.Warn("tracer shutdown error", "error", err)
	}
	return nil
}

// startMetricsServer exposes /metrics on its own port when one is
// configured, in addition to the main API's /metrics route.
func startMetricsServer(cfg *config.Config, logger *slog.Logger) *http.Server {
	if cfg.Server.MetricsPort == 0 || cfg.Server.MetricsPort == cfg.Server.HTTPPort || !cfg.Observability.MetricsEnabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", "error", err)
		}
	}()
	logger.Info("metrics server listening", "addr", srv.Addr)
	return srv
}

// loadConfig loads the file at path, falling back to built-in defaults
// when the default config name does not exist. An explicit path that
// is missing is still an error.
func loadConfig(path string) (*config.Config, error) {
	if path == defaultConfigName {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return config.Default(), nil
		}
	}
	return config.Load(path)
}

func databaseLabel(cfg *config.Config) string {
	if cfg.Database.Path == "" {
		return "memory"
	}
	return cfg.Database.Path
}
