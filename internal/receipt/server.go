package receipt

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/zombor/expense-scanner/internal/metrics"
)

// Config holds optional server settings
type Config struct {
	// AllowedOrigin is the frontend origin allowed by CORS; "*" allows any origin
	AllowedOrigin string
	Metrics       *metrics.Metrics
	Logger        *slog.Logger
}

// Server handles HTTP requests for receipt extraction
type Server struct {
	extractor     Extractor
	allowedOrigin string
	metrics       *metrics.Metrics
	logger        *slog.Logger
	mux           *http.ServeMux
	handler       http.Handler
}

// NewServer creates a new Server with default mux
func NewServer(extractor Extractor, cfg Config) *Server {
	return NewServerWithMux(extractor, cfg, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(extractor Extractor, cfg Config, mux *http.ServeMux) *Server {
	if cfg.AllowedOrigin == "" {
		cfg.AllowedOrigin = "http://localhost:5173"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Server{
		extractor:     extractor,
		allowedOrigin: cfg.AllowedOrigin,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger,
		mux:           mux,
	}
	s.registerRoutes()
	s.handler = s.requestIDMiddleware(s.recoverMiddleware(s.corsMiddleware(s.mux)))
	return s
}

// registerRoutes registers all API routes on the server's mux
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /api/extract-receipt", s.handleExtractReceipt)
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.Handle("GET /metrics", s.metrics.Handler())
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", "address", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// ServeHTTP implements http.Handler, including all middleware
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
