// Package server provides the HTTP API for the note processing pipeline.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/notedrop/seiri/internal/config"
	"github.com/notedrop/seiri/internal/history"
	"github.com/notedrop/seiri/internal/models"
)

// Processor runs images through the pipeline. Satisfied by pipeline.Pipeline.
type Processor interface {
	ProcessImage(ctx context.Context, imagePath string) models.ProcessingResult
	ProcessBatch(ctx context.Context, imagePaths []string) []models.ProcessingResult
	Flush(ctx context.Context) ([]string, error)
	Pending() int
}

// History reads back recorded processing results.
type History interface {
	Recent(ctx context.Context, limit int) ([]models.ProcessingResult, error)
	Summary(ctx context.Context) (history.Stats, error)
}

// Prober checks reachability of the completion model endpoint.
type Prober interface {
	Probe(ctx context.Context) error
}

// WatchService manages watched inbox directories. Satisfied by
// watcher.Watcher.
type WatchService interface {
	Directories() []string
	AddDirectory(path string, syncExisting bool) error
	RemoveDirectory(path string) error
}

// Server is the HTTP server for the pipeline API.
type Server struct {
	processor Processor
	history   History
	prober    Prober
	watch     WatchService
	cfg       *config.Config
	logger    *zap.Logger
	server    *http.Server

	configPath string
	configMu   sync.Mutex
}

// Option configures a Server.
type Option func(*Server)

// WithWatcher enables the watch-directory endpoints.
func WithWatcher(w WatchService) Option {
	return func(s *Server) { s.watch = w }
}

// WithConfigPath enables persisting watch directory changes back to the
// config file.
func WithConfigPath(path string) Option {
	return func(s *Server) { s.configPath = path }
}

// WithProber enables the model reachability check on the status endpoint.
func WithProber(p Prober) Option {
	return func(s *Server) { s.prober = p }
}

// NewServer creates a server with the given dependencies.
func NewServer(processor Processor, hist History, cfg *config.Config, logger *zap.Logger, opts ...Option) *Server {
	s := &Server{
		processor: processor,
		history:   hist,
		cfg:       cfg,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Minute))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/process", s.handleProcess)
	r.Post("/api/v1/batch", s.handleBatch)
	r.Post("/api/v1/flush", s.handleFlush)
	r.Get("/api/v1/results", s.handleResults)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/api/v1/watch/directories", s.handleWatchDirectoriesList)
	r.Post("/api/v1/watch/directories", s.handleWatchDirectoriesAdd)
	r.Delete("/api/v1/watch/directories", s.handleWatchDirectoriesRemove)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
