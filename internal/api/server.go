// Package api exposes the access control domain over HTTP. Routes are
// versioned under /api/v1; everything except health requires a JWT.
package api

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"building-access-service/internal/config"
)

// Server represents the HTTP API server
type Server struct {
	config      *config.Config
	logger      *logrus.Logger
	router      *mux.Router
	httpServer  *http.Server
	handlers    *Handlers
	rateLimiter *rateLimiter
}

// NewServer creates a new API server instance
func NewServer(cfg *config.Config, logger *logrus.Logger, handlers *Handlers) *Server {
	server := &Server{
		config:   cfg,
		logger:   logger,
		router:   mux.NewRouter(),
		handlers: handlers,
	}

	server.setupMiddleware()
	server.setupRoutes()

	server.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	if cfg.Server.TLSEnabled {
		server.httpServer.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	return server
}

// Router returns the configured router, mainly for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until the context is cancelled
// or the server fails
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithFields(logrus.Fields{
		"addr":        s.httpServer.Addr,
		"tls_enabled": s.config.Server.TLSEnabled,
	}).Info("Starting API server")

	if s.handlers.wsHub != nil {
		s.handlers.wsHub.Start(ctx)
	}

	errChan := make(chan error, 1)
	go func() {
		var err error
		if s.config.Server.TLSEnabled {
			err = s.httpServer.ListenAndServeTLS(s.config.Server.TLSCertFile, s.config.Server.TLSKeyFile)
		} else {
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		return s.Shutdown()
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.handlers.wsHub != nil {
		s.handlers.wsHub.Stop()
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.WithError(err).Error("Error during server shutdown")
		return err
	}

	s.logger.Info("API server shutdown complete")
	return nil
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.recoveryMiddleware)
	s.router.Use(s.rateLimitMiddleware)
	s.router.Use(s.corsMiddleware)
	s.router.Use(s.securityHeadersMiddleware)
}

// setupRoutes configures API routes
func (s *Server) setupRoutes() {
	s.router.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Health endpoint (no auth required)
	api.HandleFunc("/health", s.handlers.HealthCheck).Methods("GET")

	protected := api.PathPrefix("").Subrouter()
	protected.Use(s.authenticationMiddleware)

	// Building registry
	protected.Handle("/buildings", s.authorize("building:write", s.handlers.CreateBuilding)).Methods("POST")
	protected.Handle("/buildings", s.authorize("building:read", s.handlers.ListBuildings)).Methods("GET")
	protected.Handle("/buildings/{id}", s.authorize("building:read", s.handlers.GetBuilding)).Methods("GET")
	protected.Handle("/buildings/{id}", s.authorize("building:write", s.handlers.UpdateBuilding)).Methods("PUT")
	protected.Handle("/buildings/{id}", s.authorize("building:write", s.handlers.DeleteBuilding)).Methods("DELETE")

	// Door registry
	protected.Handle("/buildings/{id}/doors", s.authorize("door:write", s.handlers.CreateDoor)).Methods("POST")
	protected.Handle("/buildings/{id}/doors", s.authorize("door:read", s.handlers.ListDoors)).Methods("GET")
	protected.Handle("/doors/{id}", s.authorize("door:read", s.handlers.GetDoor)).Methods("GET")
	protected.Handle("/doors/{id}", s.authorize("door:write", s.handlers.UpdateDoor)).Methods("PUT")
	protected.Handle("/doors/{id}", s.authorize("door:write", s.handlers.DeleteDoor)).Methods("DELETE")
	protected.Handle("/doors/{id}/status", s.authorize("door:report", s.handlers.ReportDoorStatus)).Methods("POST")

	// Access grants
	protected.Handle("/access/grants", s.authorize("access:create", s.handlers.GeneratePIN)).Methods("POST")
	protected.Handle("/access/grants", s.authorize("access:read", s.handlers.ListGrants)).Methods("GET")
	protected.Handle("/access/grants/{id}", s.authorize("access:read", s.handlers.GetGrant)).Methods("GET")
	protected.Handle("/access/grants/{id}/suspend", s.authorize("access:manage", s.handlers.SuspendGrant)).Methods("POST")
	protected.Handle("/access/grants/{id}/revoke", s.authorize("access:manage", s.handlers.RevokeGrant)).Methods("POST")
	protected.Handle("/access/grants/{id}/reactivate", s.authorize("access:manage", s.handlers.ReactivateGrant)).Methods("POST")
	protected.Handle("/access/grants/bulk/suspend", s.authorize("access:manage", s.handlers.BulkSuspendGrants)).Methods("POST")
	protected.Handle("/access/grants/bulk/revoke", s.authorize("access:manage", s.handlers.BulkRevokeGrants)).Methods("POST")

	// Access validation, called by door hardware
	protected.Handle("/access/validate", s.authorize("access:validate", s.handlers.ValidateAccess)).Methods("POST")

	// Visitors
	protected.Handle("/visitors", s.authorize("visitor:write", s.handlers.ScheduleVisitor)).Methods("POST")
	protected.Handle("/visitors", s.authorize("visitor:read", s.handlers.ListVisitors)).Methods("GET")
	protected.Handle("/visitors/{id}", s.authorize("visitor:read", s.handlers.GetVisitor)).Methods("GET")
	protected.Handle("/visitors/{id}/checkin", s.authorize("visitor:checkin", s.handlers.CheckInVisitor)).Methods("POST")
	protected.Handle("/visitors/{id}/checkout", s.authorize("visitor:checkin", s.handlers.CheckOutVisitor)).Methods("POST")
	protected.Handle("/visitors/{id}/cancel", s.authorize("visitor:write", s.handlers.CancelVisitor)).Methods("POST")

	// Access logs
	protected.Handle("/access/logs", s.authorize("log:read", s.handlers.QueryAccessLogs)).Methods("GET")
	protected.Handle("/access/logs/stats", s.authorize("log:read", s.handlers.AccessLogStats)).Methods("GET")
	protected.Handle("/access/logs/export", s.authorize("log:export", s.handlers.ExportAccessLogs)).Methods("GET")

	// WebSocket event stream for dashboards
	protected.Handle("/ws", s.authorize("log:read", s.handlers.WebSocketHandler)).Methods("GET")
	protected.Handle("/ws/status", s.authorize("log:read", s.handlers.WebSocketStatus)).Methods("GET")
}
