// Package httpapi expone el analizador por HTTP:
//
//	GET  /health
//	GET  /metrics        Prometheus
//	POST /api/analyze    {"trades":[...]} o CSV (text/csv) → Report
//	POST /api/compare    {"trade":{...},"benchmark":"^GSPC"} → BenchmarkComparison
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/alejandrodnm/coeus/internal/domain"
	"github.com/alejandrodnm/coeus/internal/observability"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Analyzer es lo que el servidor necesita del motor.
type Analyzer interface {
	Run(ctx context.Context, rows []domain.RawTrade) (domain.Report, error)
	CompareRaw(ctx context.Context, raw domain.RawTrade, benchmarkSymbol string) (domain.BenchmarkComparison, error)
}

// Config del servidor. Los campos a cero usan los valores por defecto.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxBodyBytes int64
}

// Server es el API HTTP.
type Server struct {
	router   *chi.Mux
	server   *http.Server
	analyzer Analyzer
	metrics  *observability.Metrics
	maxBody  int64
	log      *slog.Logger
}

// New crea el servidor con sus rutas. m puede ser nil (sin /metrics).
func New(cfg Config, analyzer Analyzer, m *observability.Metrics) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 2 * time.Minute
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 5 << 20
	}

	s := &Server{
		router:   chi.NewRouter(),
		analyzer: analyzer,
		metrics:  m,
		maxBody:  cfg.MaxBodyBytes,
		log:      slog.With("component", "httpapi"),
	}
	s.setupMiddleware(cfg.WriteTimeout)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler devuelve el router (tests con httptest).
func (s *Server) Handler() http.Handler { return s.router }

// Start bloquea sirviendo peticiones hasta Shutdown.
func (s *Server) Start() error {
	s.log.Info("starting HTTP server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown para el servidor esperando a las peticiones en curso.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) setupMiddleware(timeout time.Duration) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(timeout))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/analyze", s.handleAnalyze)
		r.Post("/compare", s.handleCompare)
	})
}

// loggingMiddleware registra cada petición y la cuenta en métricas.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		s.metrics.ObserveHTTP(route, ww.Status())
		s.log.Debug("http request",
			"method", r.Method,
			"route", route,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).Round(time.Millisecond),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
