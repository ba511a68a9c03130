// Package server provides the HTTP server and routing for Lookout.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/lookout/internal/config"
	"github.com/aristath/lookout/internal/database"
	"github.com/aristath/lookout/internal/events"
	"github.com/aristath/lookout/internal/research"
	"github.com/aristath/lookout/internal/universe"
)

// Config holds server configuration.
type Config struct {
	Log       zerolog.Logger
	Config    *config.Config
	Research  *research.Service
	Universe  *universe.SecurityRepository
	Resolver  *universe.Resolver
	EventBus  *events.Bus
	Databases map[string]*database.DB
}

// Server represents the HTTP server.
type Server struct {
	router           *chi.Mux
	server           *http.Server
	log              zerolog.Logger
	cfg              *config.Config
	researchHandlers *ResearchHandlers
	universeHandlers *UniverseHandlers
	systemHandlers   *SystemHandlers
	eventsStream     *EventsStreamHandler
}

// New creates a new HTTP server.
func New(cfg Config) *Server {
	eventManager := events.NewManager(cfg.EventBus, cfg.Log)

	s := &Server{
		router:           chi.NewRouter(),
		log:              cfg.Log.With().Str("component", "server").Logger(),
		cfg:              cfg.Config,
		researchHandlers: NewResearchHandlers(cfg.Research, cfg.Log),
		universeHandlers: NewUniverseHandlers(cfg.Universe, cfg.Resolver, eventManager, cfg.Log),
		systemHandlers:   NewSystemHandlers(cfg.Config.DataDir, cfg.Databases, cfg.Log),
		eventsStream:     NewEventsStreamHandler(cfg.EventBus, cfg.Log),
	}

	s.setupMiddleware(cfg.Config.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Config.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		// Streaming endpoints stay outside the timeout middleware; a
		// progress stream lives as long as its batch.
		r.Get("/events/stream", s.eventsStream.ServeHTTP)
		r.Get("/research/batches/{batchID}/progress", s.researchHandlers.HandleProgressSocket)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Route("/research/batches", func(r chi.Router) {
				r.Post("/", s.researchHandlers.HandleSubmitBatch)
				r.Get("/{batchID}", s.researchHandlers.HandleBatchStatus)
				r.Post("/{batchID}/cancel", s.researchHandlers.HandleCancelBatch)
				r.Post("/{batchID}/resume", s.researchHandlers.HandleResumeBatch)
			})

			r.Route("/universe", func(r chi.Router) {
				r.Get("/", s.universeHandlers.HandleList)
				r.Post("/", s.universeHandlers.HandleAdd)
				r.Delete("/{symbol}", s.universeHandlers.HandleDeactivate)
			})

			r.Route("/system", func(r chi.Router) {
				r.Get("/status", s.systemHandlers.HandleSystemStatus)
				r.Get("/databases", s.systemHandlers.HandleDatabaseStats)
			})
		})
	})
}

// handleHealth handles the health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
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
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
