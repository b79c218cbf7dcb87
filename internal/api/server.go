package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"tradeserver/internal/adapters/config"
	"tradeserver/internal/api/handlers"
	"tradeserver/internal/api/health"
	"tradeserver/internal/metrics"
	"tradeserver/pkg/logger"
)

// Server wraps the HTTP server with health checks and the trading API
type Server struct {
	server      *http.Server
	log         *logger.Logger
	serviceName string
	version     string
}

// Config holds HTTP server configuration
type Config struct {
	Server      config.ServerConfig
	ServiceName string
	Version     string
}

// NewServer creates a new HTTP server with all routes registered
func NewServer(cfg Config, healthHandler *health.Handler, positions *handlers.PositionHandler, log *logger.Logger) *Server {
	mux := http.NewServeMux()

	// Health endpoints
	mux.HandleFunc("GET /health", healthHandler.HandleHealth)
	mux.HandleFunc("GET /ready", healthHandler.HandleReadiness)
	mux.HandleFunc("GET /live", healthHandler.HandleLiveness)

	// Prometheus metrics
	mux.Handle("GET /metrics", metrics.Handler())

	// Trading API
	mux.Handle("POST /manage/{coin}", instrument("/manage", http.HandlerFunc(positions.HandleManage)))
	mux.Handle("GET /gettrades", instrument("/gettrades", http.HandlerFunc(positions.HandleGetTrades)))
	mux.Handle("GET /tables", instrument("/tables", http.HandlerFunc(positions.HandleTables)))
	mux.Handle("GET /getprice", instrument("/getprice", http.HandlerFunc(positions.HandleGetPrice)))
	mux.Handle("GET /getPositionCount/{coin}/{table}", instrument("/getPositionCount", http.HandlerFunc(positions.HandlePositionCount)))
	mux.Handle("GET /getbest", instrument("/getbest", http.HandlerFunc(positions.HandleGetBest)))

	mux.HandleFunc("GET /ping", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "pong")
	})

	// Root endpoint with service info
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"service": cfg.ServiceName,
			"version": cfg.Version,
			"status":  "running",
		})
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		server:      server,
		log:         log,
		serviceName: cfg.ServiceName,
		version:     cfg.Version,
	}
}

// Start begins listening for HTTP requests (blocking)
func (s *Server) Start() error {
	s.log.Infow("Starting HTTP server",
		"addr", s.server.Addr,
		"service", s.serviceName,
		"version", s.version,
	)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}

	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down HTTP server...")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}

	s.log.Info("HTTP server stopped")
	return nil
}

// statusRecorder captures the response code for metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument wraps a handler with per-route Prometheus metrics
func instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		metrics.RecordHTTPRequest(route, r.Method, rec.status, time.Since(start))
	})
}
