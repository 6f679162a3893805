package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	apphttp "financeiro/internal/http"
	applog "financeiro/internal/log"
)

const shutdownTimeout = 30 * time.Second

func (a *app) serveCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web UI and the report/export API",
		Long: `serve starts the stateless HTTP server. Clients post their records as an
export document and receive reports, dashboards and exports computed from it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = ":" + a.cfg.Port
			}
			srv, err := apphttp.NewServer(apphttp.Options{
				Addr:               addr,
				Version:            a.cfg.Version,
				Environment:        a.cfg.Environment,
				RateLimitPerMinute: a.cfg.RateLimitPerMinute,
				MaxBodyBytes:       a.cfg.MaxBodyBytes,
				CacheSize:          a.cfg.CacheSize,
				CacheTTL:           a.cfg.CacheTTL,
				CORSOrigins:        a.cfg.CORSOrigins,
				Logger:             a.logger,
				Metrics:            a.metrics,
				Now:                a.opts.Now,
			})
			if err != nil {
				return err
			}
			return a.runServer(cmd.Context(), srv)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default :PORT)")
	return cmd
}

func (a *app) runServer(ctx context.Context, srv *apphttp.Server) error {
	ctx, stop := SignalContext(ctx)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	srv.Start(ctx)

	g.Go(func() error {
		a.logger.Info("Starting financeiro server", "addr", srv.Addr, "environment", a.cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		a.logger.Info("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("Server shutdown error", applog.FieldError, err)
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	a.logger.Info("Server stopped gracefully")
	return nil
}
