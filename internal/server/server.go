// Package server provides the HTTP server and routing for Coindeck.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/coindeck/internal/database"
	"github.com/aristath/coindeck/internal/events"
	accounthandlers "github.com/aristath/coindeck/internal/modules/account/handlers"
	balancehandlers "github.com/aristath/coindeck/internal/modules/balance/handlers"
	markethandlers "github.com/aristath/coindeck/internal/modules/market/handlers"
	movershandlers "github.com/aristath/coindeck/internal/modules/movers/handlers"
	portfoliohandlers "github.com/aristath/coindeck/internal/modules/portfolio/handlers"
	watchlisthandlers "github.com/aristath/coindeck/internal/modules/watchlist/handlers"
	"github.com/aristath/coindeck/internal/reliability"
)

// Handlers bundles the per-module HTTP handlers mounted by the server.
type Handlers struct {
	Portfolio *portfoliohandlers.Handler
	Account   *accounthandlers.Handler
	Balance   *balancehandlers.Handler
	Watchlist *watchlisthandlers.Handler
	Movers    *movershandlers.Handler
	Coins     *markethandlers.Handler
}

// Config holds server configuration
type Config struct {
	Port     int
	Log      zerolog.Logger
	DevMode  bool
	DataDir  string
	Handlers Handlers
	Bus      *events.Bus
	// Databases are exposed through the system stats endpoint.
	Databases []*database.DB
	// Backup is nil when backups are not configured.
	Backup *reliability.BackupService
}

// Server represents the HTTP server
type Server struct {
	router    *chi.Mux
	server    *http.Server
	log       zerolog.Logger
	dataDir   string
	handlers  Handlers
	bus       *events.Bus
	databases []*database.DB
	backup    *reliability.BackupService
	startup   time.Time
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		dataDir:   cfg.DataDir,
		handlers:  cfg.Handlers,
		bus:       cfg.Bus,
		databases: cfg.Databases,
		backup:    cfg.Backup,
		startup:   time.Now(),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// Timeout
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	// Health check
	s.router.Get("/health", s.handleHealth)

	// API routes
	s.router.Route("/api", func(r chi.Router) {
		r.Route("/portfolio", s.handlers.Portfolio.RegisterRoutes)
		r.Route("/account", s.handlers.Account.RegisterRoutes)
		r.Route("/balance", s.handlers.Balance.RegisterRoutes)
		r.Route("/watchlist", s.handlers.Watchlist.RegisterRoutes)
		r.Route("/movers", s.handlers.Movers.RegisterRoutes)
		r.Route("/coins", s.handlers.Coins.RegisterRoutes)

		// System
		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.handleSystemStatus)
			r.Get("/database/stats", s.handleDatabaseStats)
			r.Post("/backup", s.handleTriggerBackup)
		})

		// Event stream
		r.Get("/events/ws", s.handleEventsWS)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
