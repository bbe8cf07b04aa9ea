package backend

import (
	"context"
	"fmt"
	"log/slog"

	"obras/internal/notify"
	"obras/internal/storage"
	"obras/internal/store/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if !config.Type.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", config.Type)
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	st := storage.NewSQLiteStore(config.SQLiteDBPath)
	if err := st.Open(ctx); err != nil {
		return nil, fmt.Errorf("failed to open SQLite store: %w", err)
	}

	client := f.createNotifyClient(config)

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"amqp_enabled", client != nil)

	return &BackendResult{
		Store:    st,
		Notifier: client,
		Cleanup:  st.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	st := memory.New()
	client := f.createNotifyClient(config)

	f.logger.Info("Initialized memory backend", "amqp_enabled", client != nil)

	return &BackendResult{
		Store:    st,
		Notifier: client,
		Cleanup:  nil, // No cleanup needed for memory backend
	}, nil
}

// createNotifyClient dials the broker when configured. A broker that is
// down at startup is not fatal: the app runs without the change feed.
func (f *DefaultFactory) createNotifyClient(config Config) *notify.Client {
	if config.AMQPURL == "" {
		return nil
	}

	client, err := notify.NewClient(config.AMQPURL, config.AMQPExchange, "")
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without change feed", "error", err)
		return nil
	}

	f.logger.Info("Initialized AMQP client", "exchange", config.AMQPExchange)
	return client
}
