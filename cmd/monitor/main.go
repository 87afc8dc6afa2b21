package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"repost_monitor/internal/api"
	"repost_monitor/internal/bot"
	"repost_monitor/internal/config"
	"repost_monitor/internal/metrics"
	"repost_monitor/internal/monitor"
	"repost_monitor/internal/platform/xclient"
	"repost_monitor/internal/publisher"
	"repost_monitor/internal/scheduler"
	"repost_monitor/internal/storage/file"
	"repost_monitor/internal/storage/postgres"
	"repost_monitor/internal/storage/postgres/migrations"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := setupLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	watermarks, cleanup, err := setupWatermarks(cfg, logger)
	if err != nil {
		logger.Error("failed to set up watermark storage", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	var sink monitor.ResultSink
	if cfg.RabbitMQ.Enabled {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			logger.Error("failed to connect to rabbitmq", "error", err)
			os.Exit(1)
		}
		defer rabbitMQ.Close()
		sink = rabbitMQ
	}

	collector := metrics.NewCollector()
	locks := monitor.NewAccountLocks()
	registry := bot.NewRegistry()

	newRun := func(runID string, creds monitor.Credentials, handles []string, tag string, interval time.Duration) *bot.Controller {
		platform := xclient.New(xclient.Config{
			BaseURL:        cfg.Platform.BaseURL,
			Timeout:        cfg.Platform.Timeout,
			MaxAttempts:    cfg.Platform.Retry.MaxAttempts,
			InitialBackoff: cfg.Platform.Retry.InitialBackoff,
			MaxBackoff:     cfg.Platform.Retry.MaxBackoff,
		}, logger)

		session := monitor.NewSessionManager(platform, creds, monitor.SessionConfig{
			StepUpPollInterval: cfg.Monitor.StepUpPollInterval,
			MaxStepUpWait:      cfg.Monitor.MaxStepUpWait,
		}, logger)

		processor := monitor.NewAccountProcessor(platform, session, watermarks, locks, logger)

		sched := scheduler.New(processor, scheduler.Config{
			Interval:          interval,
			InitialFetchLimit: cfg.Monitor.InitialFetchLimit,
			MonitorFetchLimit: cfg.Monitor.MonitorFetchLimit,
		}, logger)

		return bot.New(runID, creds.Username, handles, tag, session, sched, sink, collector, logger)
	}

	server := api.NewServer(api.Config{
		Port:            cfg.HTTP.Port,
		DefaultInterval: cfg.Monitor.Interval,
	}, registry, newRun, collector, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-errCh:
		logger.Error("http server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	registry.StopAll(shutdownCtx)
	logger.Info("shutdown complete")
}

// setupWatermarks builds the configured watermark backend and returns it
// with its cleanup function.
func setupWatermarks(cfg *config.Config, logger *slog.Logger) (monitor.WatermarkStore, func(), error) {
	switch cfg.Storage.Backend {
	case "postgres":
		db, err := sqlx.Connect("postgres", cfg.Database.DSN())
		if err != nil {
			return nil, nil, err
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, nil, err
		}
		if err := migrations.Run(db.DB); err != nil {
			db.Close()
			return nil, nil, err
		}
		logger.Info("connected to database")
		return postgres.NewWatermarkStore(db), func() { db.Close() }, nil
	default:
		store, err := file.NewWatermarkStore(cfg.Storage.FilePath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using file watermark store", "path", cfg.Storage.FilePath)
		return store, func() {}, nil
	}
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
