// Path: internal/delivery/rest/server.go
package rest

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Server is the HTTP server for the API and the HTML pages.
type Server struct {
	httpServer *http.Server
}

// NewServer creates and configures a new server.
func NewServer(port string, handler http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         ":" + port,
			Handler:      handler,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start runs the HTTP server. It returns nil after a graceful Stop.
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
