// Package server exposes the ingestion coordinator over an HTTP JSON API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/tarlanaraujo/TarlanTV/internal/metrics"
	"github.com/tarlanaraujo/TarlanTV/internal/models"
	"github.com/tarlanaraujo/TarlanTV/internal/service"
)

// Coordinator is the part of service.Coordinator the API calls.
type Coordinator interface {
	Submit(ctx context.Context, sourceURL string) (int64, error)
	JobStatus(ctx context.Context, jobID int64) (*models.Job, error)
	ListJobs(ctx context.Context, limit int) ([]models.Job, error)
	JobChannels(ctx context.Context, jobID int64) ([]service.CategoryGroup, error)
	RetestChannel(ctx context.Context, channelID int64) error
	ExportWorkingChannels(ctx context.Context, jobID int64) (*models.PlaylistExport, error)
	DiscoverLinks(ctx context.Context, pageURL string) ([]string, error)
}

// Server holds dependencies for the HTTP API.
type Server struct {
	coord  Coordinator
	port   string
	logger *zap.Logger
	router chi.Router
}

// New creates a Server and registers routes.
func New(coord Coordinator, port string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	srv := &Server{coord: coord, port: port, logger: logger, router: chi.NewRouter()}
	srv.routes()
	return srv
}

func (s *Server) routes() {
	r := s.router
	r.Use(chimw.RealIP)
	r.Use(withRequestID)
	r.Use(s.withLogging)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		ExposedHeaders: []string{"Content-Disposition", requestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/metrics", metrics.Handler().ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", s.handleListJobs)
			r.Post("/", s.handleSubmitJob)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetJob)
				r.Get("/channels", s.handleJobChannels)
				r.Get("/export", s.handleExport)
			})
		})

		r.Post("/channels/{id}/retest", s.handleRetestChannel)
		r.Get("/links", s.handleDiscoverLinks)

		r.Get("/docs", handleSwaggerUI)
		r.Get("/docs/openapi.yaml", handleOpenAPISpec)
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe starts the HTTP server on the configured port.
// It blocks until the server is shut down or ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := ":" + s.port
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("server shutdown", zap.Error(err))
		}
	}()

	s.logger.Info("listening", zap.String("addr", addr))
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("ListenAndServe: %w", err)
	}
	return nil
}
