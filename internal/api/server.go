// Package api exposes the optional debug HTTP surface served while a
// run is in flight.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server wires the health and metrics handlers.
type Server struct {
	router chi.Router
	logger *zap.Logger
}

// NewServer constructs a Server with its routes.
func NewServer(logger *zap.Logger) *Server {
	s := &Server{logger: logger}
	r := chi.NewRouter()
	r.Get("/healthz", s.healthz)
	r.Handle("/metrics", promhttp.Handler())
	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
		s.logger.Error("write healthz response", zap.Error(err))
	}
}
