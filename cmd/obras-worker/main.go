package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"obras/internal/config"
	applog "obras/internal/log"
	"obras/internal/notify"
	"obras/internal/storage"
	"obras/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentWorker)
	applog.SetDefault(logger)

	logger.Info("Starting obras-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Primary store is read-only for the worker.
	primary := storage.NewSQLiteStore(cfg.SQLiteDBPath)
	if err := primary.Open(ctx); err != nil {
		logger.Error("Failed to open primary store", applog.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer primary.Close()

	replica := storage.NewSQLiteStore(cfg.ReplicaDBPath)
	if err := replica.Open(ctx); err != nil {
		logger.Error("Failed to open replica store", applog.FieldError, err, "path", cfg.ReplicaDBPath)
		os.Exit(1)
	}
	defer replica.Close()

	client, err := notify.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	w := worker.NewReplicaWorker(primary, replica, logger)

	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, client)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			logger.Warn("Shutdown timeout reached")
		}
	case err := <-done:
		// No automatic reconnect: a lost broker connection ends the run.
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Change consumption failed", applog.FieldError, err)
			os.Exit(1)
		}
	}
	logger.Info("Worker shutdown complete")
}
