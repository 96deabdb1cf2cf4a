package http

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/custodia-labs/ansa-core/internal/core/ports/driven"
	"github.com/custodia-labs/ansa-core/internal/core/ports/driving"
	"github.com/custodia-labs/ansa-core/internal/runtime"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string
	logger     *slog.Logger

	// Services
	ingestionService driving.IngestionService
	retrievalService driving.RetrievalService
	contextBuilder   driving.ContextBuilder
	documentStore    driven.DocumentStore
	services         *runtime.Services

	// Infrastructure
	db          Pinger // PostgreSQL health check
	redisClient Pinger // Redis health check (optional)
}

// Config holds server configuration
type Config struct {
	Host    string
	Port    int
	Version string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:    "0.0.0.0",
		Port:    8080,
		Version: "dev",
	}
}

// NewServer creates a new HTTP server
func NewServer(
	cfg Config,
	ingestionService driving.IngestionService,
	retrievalService driving.RetrievalService,
	contextBuilder driving.ContextBuilder,
	documentStore driven.DocumentStore,
	services *runtime.Services,
	logger *slog.Logger,
	db Pinger,
	redisClient Pinger, // can be nil
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		router:           http.NewServeMux(),
		version:          cfg.Version,
		logger:           logger,
		ingestionService: ingestionService,
		retrievalService: retrievalService,
		contextBuilder:   contextBuilder,
		documentStore:    documentStore,
		services:         services,
		db:               db,
		redisClient:      redisClient,
	}

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:     s.handler(),
		ReadTimeout: 60 * time.Second,
		// No WriteTimeout: answer streaming holds the response open for
		// as long as generation takes.
		IdleTimeout: 60 * time.Second,
	}

	s.setupRoutes()
	return s
}

// handler wraps the router in the middleware chain.
func (s *Server) handler() http.Handler {
	return RequestID(Recover(s.logger, RequestLogger(s.logger, s.router)))
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health endpoints
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)

	// Document endpoints
	s.router.HandleFunc("POST /api/v1/documents", s.handleUploadDocument)

	// Query endpoint
	s.router.HandleFunc("POST /api/v1/query", s.handleQuery)
}

// Start starts the HTTP server with graceful shutdown
func (s *Server) Start() error {
	// Channel to listen for OS signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		log.Printf("Starting server on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-stop
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Println("Server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
