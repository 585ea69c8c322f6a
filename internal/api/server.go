package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/terra-clan/assessment-engine/internal/assessment"
	"github.com/terra-clan/assessment-engine/internal/auth"
	"github.com/terra-clan/assessment-engine/internal/config"
	"github.com/terra-clan/assessment-engine/internal/health"
	"github.com/terra-clan/assessment-engine/internal/metrics"
	"github.com/terra-clan/assessment-engine/internal/models"
)

// Server represents the HTTP API server
type Server struct {
	config         config.ServerConfig
	router         *chi.Mux
	engine         *assessment.Engine
	issuer         auth.Issuer
	health         *health.Registry
	metrics        *metrics.Metrics
	authMiddleware *AuthMiddleware
	seb            config.SEBConfig
}

// NewServer creates a new API server
func NewServer(
	cfg config.ServerConfig,
	engine *assessment.Engine,
	issuer auth.Issuer,
	registry *health.Registry,
	m *metrics.Metrics,
	seb config.SEBConfig,
) *Server {
	if registry == nil {
		registry = health.NewRegistry(0)
	}

	s := &Server{
		config:         cfg,
		engine:         engine,
		issuer:         issuer,
		health:         registry,
		metrics:        m,
		authMiddleware: NewAuthMiddleware(issuer),
		seb:            seb,
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	origins := s.config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	headers := []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"}
	if s.seb.Header != "" {
		headers = append(headers, s.seb.Header)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   headers,
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/refresh", s.handleRefresh)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware.Authenticate)

			r.Route("/assessments", func(r chi.Router) {
				r.Use(s.authMiddleware.RequireRole(models.RoleStudent))

				r.Get("/eligibility", s.handleEligibility)

				r.Group(func(r chi.Router) {
					r.Use(s.requireExamBrowser)
					r.Post("/start", s.handleStartAssessment)
					r.Post("/{id}/submit", s.handleSubmitAssessment)
				})
			})

			r.Get("/certifications/me", s.handleMyCertification)
		})
	})

	s.router = r
}

// loggingMiddleware logs HTTP requests using slog and records their latency
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			elapsed := time.Since(start)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			s.metrics.ObserveHTTP(r.Method, route, ww.Status(), elapsed)

			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", elapsed.Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
