package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Server serves the Prometheus scrape endpoint on its own port so the
// API surface and operational metrics stay separable.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a scrape server on the given port and path.
func NewServer(port int, path string, logger *slog.Logger) *Server {
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, Handler())

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		logger: logger.With("component", "metrics_server"),
	}
}

// Start blocks serving scrapes until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("metrics server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
