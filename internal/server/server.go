package server

import (
	"context"
	"net/http"
	"time"
)

// Server represents an HTTP server
type Server struct {
	srv *http.Server
}

// New creates a new server instance. The long write timeout leaves room
// for a delivery that walks the full backoff schedule before responding.
func New(handler http.Handler, port string) *Server {
	return &Server{
		srv: &http.Server{
			Addr:         ":" + port,
			Handler:      handler,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}
}

// Start starts the server
func (s *Server) Start() error {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			panic(err)
		}
	}()
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
