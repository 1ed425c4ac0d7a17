// README: API gateway; wires module services into the gin router.
package http

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"quickfix/internal/http/handlers"
	"quickfix/internal/infra"
	"quickfix/internal/logger"
	"quickfix/internal/modules/request"
	"quickfix/internal/modules/users"
)

type ServerDeps struct {
	Requests *request.Service
	Users    *users.Service
	// ETA is optional; without it the eta endpoint answers 503.
	ETA      handlers.ETAEstimator
	Verifier infra.TokenVerifier
	Gatherer prometheus.Gatherer
	Log      logger.Logger
}

type Server struct {
	deps ServerDeps
}

func NewServer(deps ServerDeps) *Server {
	if deps.Log == nil {
		deps.Log = logger.Nop{}
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	return &Server{deps: deps}
}

func (s *Server) Routes() http.Handler {
	return s.router()
}

// HTTPServer returns a server for addr with conservative timeouts.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
	}
}
