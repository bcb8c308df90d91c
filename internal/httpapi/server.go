// Package httpapi implements the node's HTTP façade (§1 AMBIENT STACK): a
// chi-routed health check, a Prometheus /metrics mount, and the narrow
// IS-04 self/receivers endpoints internal/nmos defines. It mirrors
// flowpbx-flowpbx's chi.Router-in-a-Server-struct layout — routes() mounts
// everything once at construction time.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ravennakit/ravennakit/internal/node"
)

// Server holds the HTTP handler dependencies and the chi router.
type Server struct {
	router *chi.Mux
	n      *node.Node
}

// NewServer creates the HTTP handler with all routes mounted.
func NewServer(n *node.Node) *Server {
	s := &Server{
		router: chi.NewRouter(),
		n:      n,
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := s.router

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", s.n.Metrics.Handler())

	r.Route("/x-nmos/node/v1.3", func(r chi.Router) {
		r.Get("/self", s.handleSelf)
		r.Get("/receivers", s.handleReceivers)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"port_state": s.n.Port.State().String(),
	})
}

func (s *Server) handleSelf(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.n.Self())
}

func (s *Server) handleReceivers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.n.Receivers())
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
