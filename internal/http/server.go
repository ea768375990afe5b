// Package http serves the JSON API under /api plus health, readiness and
// metrics endpoints.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"atlas/internal/auth"
	applog "atlas/internal/log"
	"atlas/internal/middleware/ratelimit"
	"atlas/internal/middleware/security"
	"atlas/internal/middleware/trace"
	"atlas/internal/services"
)

// Config configures the API server.
type Config struct {
	Addr               string
	RateLimitPerMinute int
	// Registry receives the request metrics and backs /metrics. A fresh
	// registry is used when nil.
	Registry *prometheus.Registry
	// Ready reports whether dependencies are reachable; nil means always ready.
	Ready func(ctx context.Context) error
}

// Server is the JSON API.
type Server struct {
	http.Server
	finance  *services.FinanceService
	auth     *auth.Service
	limiter  *ratelimit.Limiter
	detector *security.Detector
	logger   *applog.Logger
	ready    func(ctx context.Context) error

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(cfg Config, finance *services.FinanceService, authSvc *auth.Service, logger *applog.Logger) *Server {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	rejected := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "atlas",
		Subsystem: "http",
		Name:      "rate_limited_total",
		Help:      "Mutating requests rejected by the per-client rate limit.",
	})
	registry.MustRegister(rejected)

	s := &Server{
		finance:  finance,
		auth:     authSvc,
		detector: security.NewDetector(),
		logger:   logger.WithComponent(applog.ComponentHTTP),
		ready:    cfg.Ready,
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: cfg.RateLimitPerMinute,
			Rejected:          rejected,
		}),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(trace.NewMiddleware(s.logger, s.detector.ExtractClientIP, trace.NewMetrics(registry)).Middleware)
	r.Use(middleware.Recoverer)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.detector.Middleware)

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Use(s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request, retry int) {
			s.logger.WarnContext(r.Context(), "Rate limit exceeded",
				applog.FieldClientIP, s.detector.ExtractClientIP(r),
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path)
			TooManyRequestsError(retry).Write(w)
		}))

		r.Post("/auth/signup", s.handleSignUp)
		r.Post("/auth/signin", s.handleSignIn)
		r.Post("/auth/password/reset", s.handleRequestPasswordReset)
		r.Post("/auth/password/reset/confirm", s.handleResetPassword)

		r.Group(func(r chi.Router) {
			r.Use(s.RequireSession)

			r.Post("/auth/signout", s.handleSignOut)
			r.Get("/auth/session", s.handleSession)
			r.Put("/auth/password", s.handleUpdatePassword)

			r.Get("/snapshot", s.handleSnapshot)

			r.Get("/categories", s.handleListCategories)
			r.Post("/categories", s.handleCreateCategory)
			r.Put("/categories/{id}", s.handleUpdateCategory)
			r.Delete("/categories/{id}", s.handleDeleteCategory)

			r.Get("/entries", s.handleListEntries)
			r.Post("/entries", s.handleCreateEntry)
			r.Put("/entries/{id}", s.handleUpdateEntry)
			r.Delete("/entries/{id}", s.handleDeleteEntry)

			r.Get("/vehicles", s.handleListVehicles)
			r.Post("/vehicles", s.handleCreateVehicle)
			r.Put("/vehicles/{id}", s.handleUpdateVehicle)
			r.Delete("/vehicles/{id}", s.handleDeleteVehicle)
			r.Get("/vehicles/{id}/metrics", s.handleVehicleMetrics)
			r.Get("/vehicles/{id}/renewal", s.handleRenewalDefaults)
			r.Post("/vehicles/{id}/renew", s.handleRenewContract)

			r.Get("/dashboard", s.handleDashboard)
			r.Get("/reports", s.handleReport)
			r.Get("/reports/export.xlsx", s.handleExportReport)
		})
	})

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Shutdown gracefully shuts down the server and the limiter cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// owner returns the user id of the authenticated session.
func owner(r *http.Request) string {
	s, _ := SessionFromContext(r.Context())
	return s.UserID
}

// parseBody reads the request body, answering 400 on malformed input.
func parseBody(w http.ResponseWriter, r *http.Request) (*RequestBodyParser, bool) {
	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		BadRequestError("Formato da requisição inválido.").Write(w)
		return nil, false
	}
	return p, true
}
