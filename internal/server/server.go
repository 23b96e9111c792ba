// Package server exposes the article API over HTTP, including the SSE
// stream observers use to follow status transitions.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/demon607/Summarization-Service-Build/internal/events"
	"github.com/demon607/Summarization-Service-Build/internal/service"
)

type Server struct {
	svc       *service.Service
	hub       *events.Hub
	log       *zap.Logger
	router    *mux.Router
	server    *http.Server
	sanitizer *bluemonday.Policy
}

func NewServer(svc *service.Service, hub *events.Hub, log *zap.Logger) *Server {
	s := &Server{
		svc:       svc,
		hub:       hub,
		log:       log,
		router:    mux.NewRouter(),
		sanitizer: bluemonday.UGCPolicy(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/articles", s.handleSubmit).Methods(http.MethodPost)
	api.HandleFunc("/articles", s.handleList).Methods(http.MethodGet)
	api.HandleFunc("/articles/{id}", s.handleGet).Methods(http.MethodGet)
	api.HandleFunc("/articles/{id}", s.handleDelete).Methods(http.MethodDelete)
	api.HandleFunc("/articles/{id}/retry", s.handleRetry).Methods(http.MethodPost)
	api.HandleFunc("/articles/{id}/snapshot", s.handleSnapshot).Methods(http.MethodGet)
	api.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)

	s.router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)
}

// Handler returns the full middleware chain for tests and for Start.
func (s *Server) Handler() http.Handler {
	return handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{s.log}))(
		s.requestLogging(s.router))
}

// Start launches the HTTP server and blocks until it stops.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: the SSE stream is long-lived.
	}
	s.log.Info("web server listening", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type recoveryLogger struct {
	log *zap.Logger
}

func (r recoveryLogger) Println(v ...interface{}) {
	r.log.Error("panic in handler", zap.Any("details", v))
}
