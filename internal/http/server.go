// Package http hosts the application shell and the stateless report and
// export endpoints. Clients post their records with each request; the
// server keeps nothing between requests.
package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"financeiro/internal/cache"
	applog "financeiro/internal/log"
	"financeiro/internal/metrics"
	"financeiro/internal/middleware/ratelimit"
	"financeiro/internal/middleware/security"
	appweb "financeiro/web"
)

const AppName = "Controle Financeiro Comercial"

// Options configure a Server. Zero values fall back to defaults.
type Options struct {
	Addr               string
	Version            string
	Environment        string
	RateLimitPerMinute int
	MaxBodyBytes       int64
	CacheSize          int
	CacheTTL           time.Duration
	CORSOrigins        []string
	Logger             *applog.Logger
	Metrics            *metrics.Metrics
	Now                func() time.Time
}

type Server struct {
	http.Server

	opts      Options
	logger    *applog.Logger
	metrics   *metrics.Metrics
	templates *template.Template
	limiter   *ratelimit.Limiter
	reports   *cache.Memo[[]byte]
	caches    *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(opts Options) (*Server, error) {
	if opts.Version == "" {
		opts.Version = "1.0.0"
	}
	if opts.Environment == "" {
		opts.Environment = "development"
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 5 << 20
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig())
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	reportCache := cache.NewLRUCache[[]byte](opts.CacheSize, opts.CacheTTL).WithClock(opts.Now)
	s := &Server{
		opts:      opts,
		logger:    opts.Logger.WithComponent(applog.ComponentHTTP),
		metrics:   opts.Metrics,
		templates: t,
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		reports:   cache.NewMemo[[]byte](reportCache, opts.Metrics),
		caches:    cache.NewManager(opts.Logger.Logger),
	}
	s.caches.Register(reportCache)

	handler, err := s.routes()
	if err != nil {
		return nil, err
	}
	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() (http.Handler, error) {
	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("mount static assets: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(applog.Middleware(s.logger))
	r.Use(s.metrics.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)

	r.Get("/", s.handleIndex)
	r.With(security.StaticAssetMiddleware(3600)).
		Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	r.Get("/healthz", handleHealthz)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		if len(s.opts.CORSOrigins) > 0 {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins: s.opts.CORSOrigins,
				AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
				AllowedHeaders: []string{"Content-Type"},
				ExposedHeaders: []string{"Content-Disposition"},
				MaxAge:         300,
			}))
		}
		r.Get("/health", s.handleHealth)
		r.Get("/config", s.handleConfig)

		r.Group(func(r chi.Router) {
			r.Use(s.limiter.Middleware(security.ClientIP, s.onRateLimited))
			r.Post("/reports/monthly", s.handleMonthly)
			r.Post("/reports/dashboard", s.handleDashboard)
			r.Post("/reports/evolution", s.handleEvolution)
			r.Post("/export/{format}", s.handleExport)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusNotFound, "not found").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Write(w)
	})
	return r, nil
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, security.ClientIP(r),
		applog.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.").Write(w)
}

// Start begins periodic cache cleanup; ListenAndServe is called separately.
func (s *Server) Start(ctx context.Context) {
	s.caches.StartCleanup(ctx, 10*time.Minute)
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
