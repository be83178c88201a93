package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/karimelassali/baraka-dispatch/internal/audience"
	"github.com/karimelassali/baraka-dispatch/internal/config"
	"github.com/karimelassali/baraka-dispatch/internal/history"
	"github.com/karimelassali/baraka-dispatch/internal/metrics"
	"github.com/karimelassali/baraka-dispatch/internal/progress"
	"github.com/karimelassali/baraka-dispatch/internal/sequencer"
	"github.com/karimelassali/baraka-dispatch/internal/store"
)

// Server is the operator-facing HTTP API.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	cfg        *config.Config
	logger     *slog.Logger

	resolver  *audience.Resolver
	store     *store.CampaignStore
	sequencer *sequencer.Manager
	progress  *progress.Presenter
	history   *history.Aggregator
	metrics   *metrics.Metrics
}

// Deps bundles the server's collaborators.
type Deps struct {
	Resolver  *audience.Resolver
	Store     *store.CampaignStore
	Sequencer *sequencer.Manager
	Progress  *progress.Presenter
	History   *history.Aggregator
	Metrics   *metrics.Metrics
}

// NewServer creates the API server and wires its routes.
func NewServer(cfg *config.Config, deps Deps, logger *slog.Logger) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		cfg:       cfg,
		logger:    logger.With("component", "api"),
		resolver:  deps.Resolver,
		store:     deps.Store,
		sequencer: deps.Sequencer,
		progress:  deps.Progress,
		history:   deps.History,
		metrics:   deps.Metrics,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/audience/preview", s.handlePreview)
		r.Post("/campaigns", s.handleCreateCampaign)
		r.Get("/campaigns", s.handleListCampaigns)
		r.Get("/campaigns/{id}", s.handleGetCampaign)
		r.Get("/campaigns/{id}/progress", s.handleProgress)
		r.Post("/campaigns/{id}/resume", s.handleResume)
		r.Post("/campaigns/{id}/cancel", s.handleCancel)
	})
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.Server.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP API server", "addr", s.cfg.Server.ListenAddr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP API server")
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
