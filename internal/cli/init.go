// Package cli provides the financeiro command tree and the initialization
// shared by cmd/financeiro and cmd/financeiro-worker.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"financeiro/internal/backend"
	"financeiro/internal/config"
	applog "financeiro/internal/log"
	"financeiro/internal/metrics"
	"financeiro/internal/services"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetupLogger builds the configured logger and sets it as the default.
func SetupLogger(cfg *config.Config, out io.Writer, component string) (*applog.Logger, error) {
	level, err := applog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := applog.New(applog.Config{
		Level:     level,
		Format:    cfg.LogFormat,
		Component: component,
		Output:    out,
	})
	applog.SetDefault(logger)
	return logger, nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// OpenRecordStore creates the configured backend and a record store on top
// of it. The returned result owns the backend's resources.
func OpenRecordStore(ctx context.Context, cfg *config.Config, logger *applog.Logger, m *metrics.Metrics) (*services.RecordStore, *backend.Result, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	res, err := backend.NewFactory(logger.Logger, m).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s backend: %w", bcfg.Type, err)
	}

	opts := []services.Option{
		services.WithLogger(logger.WithComponent(applog.ComponentStore).Logger),
		services.WithObserver(m),
	}
	if p := res.Publisher(); p != nil {
		opts = append(opts, services.WithPublisher(p))
	}
	return services.NewRecordStore(res.Store, opts...), res, nil
}
