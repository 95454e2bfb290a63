package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/aigoflow/complaint-classifier/internal/handlers"
	"github.com/aigoflow/complaint-classifier/internal/services"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	httpAddr   string
	complaints *services.ComplaintService
}

func NewServer(httpAddr string, complaints *services.ComplaintService) *Server {
	return &Server{
		httpAddr:   httpAddr,
		complaints: complaints,
	}
}

// Handler returns the mux with every route registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	handlers.NewClassifierHandler(s.complaints).RegisterRoutes(mux)
	return mux
}

// Start listens on the configured address and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpAddr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve handles requests on ln. After ctx is cancelled it stops accepting
// connections and returns once in-flight requests have completed or the
// shutdown timeout expires.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("HTTP server starting",
		"addr", ln.Addr().String(),
		"endpoints", []string{"/api/Clasificador", "/Clasificador", "/healthz", "/readyz", "/logs"},
		"ready", s.complaints.Ready(),
		"model", s.complaints.ModelName())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	slog.Info("HTTP server stopped")
	return nil
}
