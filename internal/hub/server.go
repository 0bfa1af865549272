// Package hub is the robot-facing HTTP surface: binding lookup, scan
// ingestion, and the command polling protocol.
package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agrohub.dev/garden-hub/internal/command"
	"agrohub.dev/garden-hub/internal/ingest"
	"agrohub.dev/garden-hub/internal/notify"
	"agrohub.dev/garden-hub/internal/store"
	"agrohub.dev/garden-hub/pkg/metrics"
)

// Directory is the slice of the record store the HTTP handlers need.
// *store.Store satisfies it.
type Directory interface {
	TelegramIDForRobot(ctx context.Context, robotID string) (string, error)
	OwnerForRobot(ctx context.Context, robotID string) (*store.User, error)
}

// Ingester processes scan submissions. *ingest.Service satisfies it.
type Ingester interface {
	Process(ctx context.Context, sub ingest.Submission) error
}

// Server represents the hub HTTP server.
type Server struct {
	logger     *slog.Logger
	httpServer *http.Server
	config     *ServerConfig
}

// ServerConfig holds the configuration for the Server.
type ServerConfig struct {
	Logger *slog.Logger

	// HTTP server configuration
	HTTPPort int

	// FilesDir is the directory scan images are served from, under /files/.
	FilesDir string

	Directory Directory
	Commands  command.Store
	Ingest    Ingester
	Publisher *notify.Publisher
	Metrics   *metrics.HubMetrics
}

// NewServer creates a new hub Server instance.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.HTTPPort <= 0 {
		return nil, errors.New("HTTP port must be positive")
	}

	if cfg.Directory == nil {
		return nil, errors.New("directory cannot be nil")
	}

	if cfg.Commands == nil {
		return nil, errors.New("command store cannot be nil")
	}

	if cfg.Ingest == nil {
		return nil, errors.New("ingest service cannot be nil")
	}

	if cfg.Publisher == nil {
		return nil, errors.New("publisher cannot be nil")
	}

	return &Server{
		logger: cfg.Logger,
		config: cfg,
	}, nil
}

// Run starts the hub server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting hub server")

	// Create context with cancellation
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	// Create HTTP router
	mux := s.setupRoutes()

	// Create HTTP server
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.HTTPPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("starting HTTP server", "address", s.httpServer.Addr)

	// Start HTTP server in goroutine
	httpErr := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- fmt.Errorf("HTTP server error: %w", err)
		}
		close(httpErr)
	}()

	s.logger.Info("hub server started successfully")

	// Wait for shutdown signal or HTTP error
	select {
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	case <-ctx.Done():
		s.logger.Info("context canceled")
	case err := <-httpErr:
		if err != nil {
			s.logger.Error("HTTP server error", "error", err)
			cancel()
			return err
		}
	}

	// Shutdown
	return s.Shutdown()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down hub server")

	if s.httpServer != nil {
		s.logger.Info("stopping HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("failed to shutdown HTTP server", "error", err)
			return fmt.Errorf("HTTP server shutdown error: %w", err)
		}
		s.logger.Info("HTTP server stopped")
	}

	s.logger.Info("hub server shutdown completed successfully")
	return nil
}

// Handler returns the hub's HTTP handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// setupRoutes configures the HTTP routes.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Health check and metrics
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())

	// Robot-facing API
	mux.HandleFunc("GET /api/get_user", s.instrument("get_user", s.handleGetUser))
	mux.HandleFunc("POST /api/scan", s.instrument("scan", s.handleScan))
	mux.HandleFunc("GET /api/command", s.instrument("command", s.handleCommand))
	mux.HandleFunc("POST /api/update_command", s.instrument("update_command", s.handleUpdateCommand))
	mux.HandleFunc("POST /api/clear_command", s.instrument("clear_command", s.handleClearCommand))

	// Status-cell aliases for deployments that separate command from status
	mux.HandleFunc("GET /api/scan_status", s.instrument("scan_status", s.handleCommand))
	mux.HandleFunc("POST /api/scan_status", s.instrument("scan_status", s.handleUpdateCommand))
	mux.HandleFunc("POST /api/update_status", s.instrument("update_status", s.handleUpdateCommand))

	// Scan images referenced by notification photo URLs
	if s.config.FilesDir != "" {
		mux.Handle("GET /files/",
			http.StripPrefix("/files/", http.FileServer(http.Dir(s.config.FilesDir))))
	}

	return mux
}
