package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/sync/singleflight"

	"dividi/internal/cache"
	"dividi/internal/log"
	"dividi/internal/metrics"
	"dividi/internal/middleware/ratelimit"
	"dividi/internal/middleware/security"
	"dividi/internal/middleware/trace"
	"dividi/internal/services"
)

const (
	idempotencyCacheSize = 1000
	readyTimeout         = 2 * time.Second
)

// Config collects what NewServer needs. Zero values pick defaults.
type Config struct {
	Addr           string
	Service        *services.LedgerService
	Metrics        *metrics.Metrics
	Logger         *log.Logger
	RateLimit      ratelimit.Config
	IdempotencyTTL time.Duration
	AllowedOrigins []string
	TrustedProxies []string
}

type Server struct {
	http.Server
	svc      *services.LedgerService
	metrics  *metrics.Metrics
	limiter  *ratelimit.Limiter
	detector *security.Detector
	logger   *log.Logger

	// Responses to POST /api/settlements keyed by Idempotency-Key.
	idempotency *cache.LRUCache[storedResponse]
	inflight    singleflight.Group
	caches      *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(cfg Config) *Server {
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 10 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = log.FromContext(context.Background())
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}

	s := &Server{
		svc:         cfg.Service,
		metrics:     cfg.Metrics,
		limiter:     ratelimit.NewLimiter(cfg.RateLimit),
		detector:    security.NewDetector(),
		logger:      cfg.Logger.WithComponent(log.ComponentHTTP),
		idempotency: cache.NewLRUCache[storedResponse](idempotencyCacheSize, cfg.IdempotencyTTL),
		caches:      cache.NewManager(),
	}
	for _, cidr := range cfg.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			s.logger.Warn("Ignoring trusted proxy", "cidr", cidr, "error", err)
		}
	}

	s.caches.Register(s.idempotency)
	if err := s.metrics.RegisterCache("idempotency", s.idempotency.Stats); err != nil {
		s.logger.Warn("Cache metrics unavailable", log.FieldError, err)
	}
	s.caches.StartCleanup(time.Minute)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(cfg.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(origins []string) http.Handler {
	r := chi.NewRouter()

	tracer := trace.NewMiddleware(s.detector.ExtractClientIP, s.observe)

	r.Use(chimiddleware.Recoverer)
	r.Use(tracer.Middleware)
	r.Use(log.Middleware(s.logger))
	r.Use(log.RequestIDMiddleware(func(r *http.Request) string {
		return trace.GetRequestID(r.Context())
	}))
	r.Use(s.detector.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPatch,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"Idempotency-Key",
			trace.RequestIDHeader,
		},
		ExposedHeaders: []string{trace.RequestIDHeader, "Retry-After"},
		MaxAge:         300,
	}))
	r.Use(s.limiter.Middleware(s.detector.ExtractClientIP, ratelimit.WritesOnly, writeRateLimited))

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/participants", s.handleListParticipants)
		r.Post("/participants", s.handleCreateParticipant)
		r.Get("/participants/{ref}", s.handleGetParticipant)
		r.Patch("/participants/{ref}", s.handleRenameParticipant)

		r.Get("/expenses", s.handleListExpenses)
		r.Post("/expenses", s.handleCreateExpense)
		r.Get("/expenses/{id}", s.handleGetExpense)
		r.Post("/expenses/settle", s.handleMarkSettled)

		r.Get("/balances", s.handleBalances)
		r.Get("/summary", s.handleSummary)

		r.Get("/settlements/plan", s.handleSettlementPlan)
		r.Post("/settlements", s.handleRecordSettlement)

		r.Post("/ledger/close", s.handleCloseOut)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, ErrorBody{Error: "no such route", Code: CodeNotFound})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorBody{Error: "method not allowed", Code: CodeBadRequest})
	})

	return r
}

// observe feeds request metrics with the matched chi route pattern, so
// that ids in the path do not explode label cardinality.
func (s *Server) observe(r *http.Request, status int, d time.Duration) {
	route := ""
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		route = rctx.RoutePattern()
	}
	s.metrics.ObserveHTTP(r.Method, route, status, d)
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

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := s.svc.Ping(ctx); err != nil {
		log.FromContextOr(ctx, s.logger).WarnContext(ctx, "Readiness check failed", log.FieldError, err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
