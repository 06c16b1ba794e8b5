package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/terra-clan/ballot-kiosk/internal/config"
	"github.com/terra-clan/ballot-kiosk/internal/events"
	"github.com/terra-clan/ballot-kiosk/internal/models"
	"github.com/terra-clan/ballot-kiosk/internal/results"
	"github.com/terra-clan/ballot-kiosk/internal/voting"
)

// Pinger is a dependency checked by /ready
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP API server
type Server struct {
	config         config.ServerConfig
	router         *chi.Mux
	controller     *voting.Controller
	hub            *events.Hub
	results        *results.Aggregator
	authMiddleware *AuthMiddleware
	checks         map[string]Pinger
}

// NewServer creates a new API server. checks are pinged by /ready.
func NewServer(
	cfg config.ServerConfig,
	controller *voting.Controller,
	hub *events.Hub,
	aggregator *results.Aggregator,
	clients []models.ApiClient,
	checks map[string]Pinger,
) *Server {
	s := &Server{
		config:         cfg,
		controller:     controller,
		hub:            hub,
		results:        aggregator,
		authMiddleware: NewAuthMiddleware(clients),
		checks:         checks,
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

	timeout := s.config.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	origins := s.config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check (outside versioned API - public)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	r.Route("/api/v1", func(r chi.Router) {
		// Long-lived stream, no request timeout
		r.Get("/events", s.handleEvents)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(timeout))

			// Voter routes (public, kiosk-local)
			r.Get("/catalog", s.handleGetCatalog)
			r.Post("/token/verify", s.handleVerifyToken)

			r.Route("/ballot", func(r chi.Router) {
				r.Get("/", s.handleGetBallot)
				r.Post("/submit", s.handleSubmitBallot)
				r.Post("/categories/{categoryId}/selections", s.handleSelectNominee)
				r.Delete("/categories/{categoryId}/selections/{personId}", s.handleDeselectNominee)
			})

			// Admin routes (protected by API key)
			r.Route("/admin", func(r chi.Router) {
				r.Use(s.authMiddleware.Authenticate)

				r.With(s.authMiddleware.RequirePermission(config.PermResultsRead)).Get("/results", s.handleGetResults)

				r.Route("/settings/results-gateway", func(r chi.Router) {
					r.With(s.authMiddleware.RequirePermission(config.PermSettingsRead)).Get("/", s.handleGetResultsGateway)
					r.With(s.authMiddleware.RequirePermission(config.PermSettingsWrite)).Put("/", s.handlePutResultsGateway)
				})
			})
		})
	})

	s.router = r
}

// loggingMiddleware logs each request once it completes. Server errors
// log at warn level; health probes only at debug.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		level := slog.LevelInfo
		switch {
		case ww.Status() >= http.StatusInternalServerError:
			level = slog.LevelWarn
		case r.URL.Path == "/health" || r.URL.Path == "/ready":
			level = slog.LevelDebug
		}

		slog.Log(r.Context(), level, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
			"remote_addr", r.RemoteAddr,
		)
	})
}
