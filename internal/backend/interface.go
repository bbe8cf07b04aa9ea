package backend

import (
	"context"

	"obras/internal/notify"
	"obras/internal/store"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the opened store, the optional change publisher
// and an optional cleanup function
type BackendResult struct {
	Store    store.Store
	Notifier *notify.Client
	Cleanup  CleanupFunc
}

// Factory creates record-store backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// AMQP change feed (optional). Factory clients publish and hold
	// session subscriptions on private queues; the replica worker's named
	// durable queue is configured on the worker itself.
	AMQPURL      string
	AMQPExchange string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
