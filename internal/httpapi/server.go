// Package httpapi exposes the asynchronous HTTP surface: one POST
// {endpoint}/run per registered workflow, a run-status GET by id, and a
// health check. Request-ID and JSON-content-type middleware wrap every
// route.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/ShaharBand/fluxly/internal/logging"
	"github.com/ShaharBand/fluxly/internal/registry"
	"github.com/ShaharBand/fluxly/internal/workflow"
)

const maxRequestBody = 1 << 20 // 1MB

type contextKey string

const requestIDKey contextKey = "requestID"

// Server wires registered workflow templates to the run registry and
// exposes them over HTTP.
type Server struct {
	registry  *registry.Registry
	logger    logging.Service
	endpoints map[string]*workflow.Workflow
}

// NewServer creates a Server backed by reg. Register workflow endpoints
// with RegisterEndpoint before calling LoadRoutes.
func NewServer(reg *registry.Registry, logger logging.Service) *Server {
	if logger == nil {
		logger = logging.NewSlogService(nil)
	}
	return &Server{registry: reg, logger: logger, endpoints: make(map[string]*workflow.Workflow)}
}

// RegisterEndpoint exposes template at /{name}/run and /{name}/runs/{run_id}.
func (s *Server) RegisterEndpoint(name string, template *workflow.Workflow) {
	s.endpoints[name] = template
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func reqID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey).(string)
	return id
}

// LoadRoutes mounts every registered endpoint plus the shared /runs/{id}
// and /health routes onto parentRouter.
func (s *Server) LoadRoutes(parentRouter *mux.Router) {
	router := parentRouter.NewRoute().Subrouter()
	router.Use(requestIDMiddleware)
	router.Use(jsonMiddleware)

	for name := range s.endpoints {
		router.HandleFunc("/"+name+"/run", s.handleRun(name)).Methods(http.MethodPost)
		router.HandleFunc("/"+name+"/runs/{run_id}", s.handleGetRun(name)).Methods(http.MethodGet)
	}
	router.HandleFunc("/runs/{run_id}", s.handleGetRun("")).Methods(http.MethodGet)
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
}

func writeErrorJSON(w http.ResponseWriter, code, message string, httpStatus int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(map[string]any{"code": code, "message": message})
}
