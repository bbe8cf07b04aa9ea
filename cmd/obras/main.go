package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"obras/internal/backend"
	"obras/internal/config"
	apphttp "obras/internal/http"
	applog "obras/internal/log"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Backend configuration failed", applog.FieldError, err)
		os.Exit(1)
	}
	if err := backendCfg.Validate(); err != nil {
		logger.Error("Backend configuration invalid", applog.FieldError, err)
		os.Exit(1)
	}

	factory := backend.NewFactory(logger.Logger)
	result, err := factory.CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to create backend", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if result.Cleanup != nil {
			if err := result.Cleanup(); err != nil {
				logger.Error("Backend cleanup failed", applog.FieldError, err)
			}
		}
	}()

	var publisher apphttp.ChangePublisher
	if result.Notifier != nil {
		publisher = result.Notifier
		defer result.Notifier.Close()
	}

	srv := apphttp.NewServer(":"+cfg.Port, result.Store, publisher, apphttp.Options{
		CacheSize: cfg.CacheSize,
		CacheTTL:  cfg.CacheTTL,
	})

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		cancel()
	}()

	logger.Info("Starting obras server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
