// Package connectionapi implements the Connection API (server) of
// spec.md §4.5: the inbound REST surface the coordinator uses to control
// which peer associations this worker has. Router setup, middleware
// stack, and the respondJSON/respondError helpers are adapted from
// nf/nrf/internal/server's chi.Router pattern (RequestID, RealIP, a
// logging middleware, Recoverer, Timeout), generalized from NF
// registration endpoints to connect_amf/disconnect_amf.
package connectionapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Capability is the subset of the worker's capability set the Connection
// API needs: triggering NG Setup against a new AMF address, and reporting
// whether it is already connected (for the idempotency requirement of
// spec.md §4.5).
type Capability interface {
	ConnectAMF(ctx context.Context, amfAddress string) error
	DisconnectAMF(ctx context.Context) error
	NGIsUp() bool
}

// Server is the Connection API's HTTP server.
type Server struct {
	cap        Capability
	router     *chi.Mux
	httpServer *http.Server
	logger     *zap.Logger
}

// NewServer constructs a Connection API server over cap.
func NewServer(cap Capability, logger *zap.Logger) *Server {
	s := &Server{cap: cap, router: chi.NewRouter(), logger: logger}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/ready", s.handleReady)

	s.router.Route("/connection", func(r chi.Router) {
		r.Post("/connect-amf", s.handleConnectAMF)
		r.Post("/disconnect-amf", s.handleDisconnectAMF)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("connection api request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// connectAMFRequest is the body of POST /connection/connect-amf.
type connectAMFRequest struct {
	AMFAddress string `json:"amf_address"`
}

// handleConnectAMF triggers the NG Setup workflow. Per spec.md §4.5, a
// connect request for an already-connected peer succeeds without
// reopening the association.
func (s *Server) handleConnectAMF(w http.ResponseWriter, r *http.Request) {
	var req connectAMFRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if s.cap.NGIsUp() {
		s.respondJSON(w, http.StatusOK, map[string]string{"status": "already connected"})
		return
	}

	if err := s.cap.ConnectAMF(r.Context(), req.AMFAddress); err != nil {
		s.respondError(w, http.StatusBadGateway, "connect to AMF failed", err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{"status": "connected"})
}

// handleDisconnectAMF tears down the NG association; idempotent if it is
// already down.
func (s *Server) handleDisconnectAMF(w http.ResponseWriter, r *http.Request) {
	if !s.cap.NGIsUp() {
		s.respondJSON(w, http.StatusOK, map[string]string{"status": "already disconnected"})
		return
	}

	if err := s.cap.DisconnectAMF(r.Context()); err != nil {
		s.respondError(w, http.StatusInternalServerError, "disconnect from AMF failed", err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{"status": "disconnected"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string, err error) {
	s.logger.Warn(message, zap.Error(err))
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"status":%d,"title":%q,"detail":%q}`, status, message, err.Error())
}

// Start runs the server on addr; it blocks until the server stops.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	s.logger.Info("starting connection api server", zap.String("address", addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
