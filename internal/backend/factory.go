package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"financeiro/internal/amqp"
	"financeiro/internal/kv/memory"
	applog "financeiro/internal/log"
	"financeiro/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger   *slog.Logger
	observer amqp.PublishObserver
}

// NewFactory creates a backend factory. observer may be nil.
func NewFactory(logger *slog.Logger, observer amqp.PublishObserver) *DefaultFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger:   logger.With(applog.FieldComponent, applog.ComponentBackend),
		observer: observer,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*Result, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	// AMQP is optional; records stay usable without notifications
	var client *amqp.Client
	if config.AMQPURL != "" {
		opts := []amqp.Option{amqp.WithLogger(f.logger.With(applog.FieldComponent, applog.ComponentAMQP))}
		if f.observer != nil {
			opts = append(opts, amqp.WithObserver(f.observer))
		}
		client, err = amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, opts...)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without notifications",
				applog.FieldError, err)
			client = nil
		} else {
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	f.logger.InfoContext(ctx, "Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"amqp_enabled", client != nil)

	return &Result{
		Type:  SQLiteBackend,
		Store: repo,
		AMQP:  client,
		Cleanup: func() error {
			var errs []error
			if client != nil {
				errs = append(errs, client.Close())
			}
			errs = append(errs, repo.Close())
			return errors.Join(errs...)
		},
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(ctx context.Context, config Config) (*Result, error) {
	store := memory.New()
	if config.SeedDir != "" {
		seeded, err := memory.NewFromDir(config.SeedDir)
		if err != nil {
			return nil, fmt.Errorf("failed to seed memory backend: %w", err)
		}
		store = seeded
	}

	f.logger.InfoContext(ctx, "Initialized memory backend",
		"seed_dir", config.SeedDir,
		"entries", store.Len())

	return &Result{
		Type:    MemoryBackend,
		Store:   store,
		Cleanup: func() error { return nil },
	}, nil
}
