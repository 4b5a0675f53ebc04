// Path: internal/delivery/rest/server.go
package rest

import (
	"context"
	"net/http"
	"time"

	"chartwatch/internal/events"
)

// Server is the HTTP server for the stats API.
type Server struct {
	httpServer *http.Server
}

// NewServer creates and configures a new API server.
func NewServer(port string, service statsService, broker *events.Broker, metricsHandler http.Handler, adminSecret string, production bool) *Server {
	handlers := NewHandlers(service, broker, adminSecret, production)

	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux)
	mux.Handle("/metrics", metricsHandler)

	return &Server{
		httpServer: &http.Server{
			Addr:        ":" + port,
			Handler:     mux,
			ReadTimeout: 5 * time.Second,
			// No WriteTimeout: the event stream endpoint holds its
			// connection open indefinitely.
			IdleTimeout: 15 * time.Second,
		},
	}
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
