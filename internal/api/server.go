package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rig-control/rigproxy/internal/auth"
	"github.com/rig-control/rigproxy/internal/config"
)

// Server is the HTTP control API.
type Server struct {
	httpServer *http.Server
	session    SessionPort
	relay      RelayPort
	auth       *auth.Middleware
	cfg        config.ServerConfig
	startTime  time.Time
}

// NewServer creates the API server. authMW may be nil to disable
// authentication (development and single-operator deployments).
func NewServer(sess SessionPort, relayHub RelayPort, authMW *auth.Middleware, cfg config.ServerConfig) *Server {
	return &Server{
		session:   sess,
		relay:     relayHub,
		auth:      authMW,
		cfg:       cfg,
		startTime: time.Now(),
	}
}

// Start runs the listener until Stop or a listener error.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:      mux,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Stop shuts the listener down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// protect applies scope-based auth when configured; with auth disabled
// handlers run as-is.
func (s *Server) protect(scope string, h http.HandlerFunc) http.HandlerFunc {
	if s.auth == nil {
		return h
	}
	return s.auth.RequireScope(scope, h)
}
