package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"financeiro/internal/backend"
	"financeiro/internal/cli"
	"financeiro/internal/config"
	applog "financeiro/internal/log"
	"financeiro/internal/metrics"
	"financeiro/internal/scheduler"
	"financeiro/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration validation failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := cli.SetupLogger(cfg, os.Stdout, applog.ComponentWorker)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logger setup failed: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext(context.Background())
	err = run(ctx, cfg, logger)
	stop()
	if err != nil {
		logger.Error("Worker stopped with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *applog.Logger) error {
	logger.Info("Starting financeiro-worker",
		"backend", cfg.DataBackend,
		"export_dir", cfg.ExportDir,
		"backup_dir", cfg.BackupDir)
	if !backend.BackendType(cfg.DataBackend).Shared() {
		logger.Warn("Worker is not sharing a database with the CLI; exports reflect only seeded data",
			"backend", cfg.DataBackend)
	}

	m := metrics.New()
	store, res, err := cli.OpenRecordStore(ctx, cfg, logger, m)
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", applog.FieldError, err)
		}
	}()

	exports := worker.NewExportWorker(store, cfg.ExportDir, logger.Logger, m)
	if err := exports.StartupSync(ctx); err != nil {
		// Keep running; the next notification or refresh retries.
		logger.Error("Startup sync failed", applog.FieldError, err)
	}

	sched := scheduler.New(logger.WithComponent(applog.ComponentScheduler).Logger, m)
	if cfg.BackupSchedule != "" {
		backup := &worker.BackupJob{
			Source: store,
			Dir:    cfg.BackupDir,
			Retain: cfg.BackupRetain,
			Logger: logger.Logger,
		}
		if err := sched.AddJob(cfg.BackupSchedule, backup); err != nil {
			return err
		}
	}
	if cfg.RefreshSchedule != "" {
		if err := sched.AddJob(cfg.RefreshSchedule, exports); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(ctx) })

	if res.AMQP != nil {
		g.Go(func() error {
			err := res.AMQP.Consume(ctx, exports.HandleChange)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		logger.Info("Change notifications disabled; relying on scheduled refresh",
			"refresh_schedule", cfg.RefreshSchedule)
	}

	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           metricsMux(m),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("Serving worker metrics", "addr", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

func metricsMux(m *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", m.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
