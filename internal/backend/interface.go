// Package backend builds the key-value store and optional change publisher
// the record store runs on.
package backend

import (
	"context"

	"financeiro/internal/amqp"
	"financeiro/internal/kv"
	"financeiro/internal/services"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result contains the store, the optional AMQP client and a cleanup
// function releasing both.
type Result struct {
	Type    BackendType
	Store   kv.Store
	AMQP    *amqp.Client
	Cleanup CleanupFunc
}

// Publisher returns the change publisher, or nil when AMQP is disabled.
func (r *Result) Publisher() services.ChangePublisher {
	if r.AMQP == nil {
		return nil
	}
	return r.AMQP
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific; AMQP is only used with SQLite, the one backend
	// another process can read.
	SQLiteDBPath string
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Memory specific; optional directory of <key>.json seed files
	SeedDir string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
