package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/cuemby/joyride/pkg/health"
	"github.com/cuemby/joyride/pkg/lifecycle"
	"github.com/cuemby/joyride/pkg/metrics"
	"github.com/cuemby/joyride/pkg/records"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthResponse represents the /health response
type HealthResponse struct {
	Status    health.Status            `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version,omitempty"`
	LastRound time.Time                `json:"last_round,omitzero"`
	Checks    map[string]health.Status `json:"checks,omitempty"`
}

// ReadyResponse represents the /ready response
type ReadyResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
	Message   string            `json:"message,omitempty"`
}

// RecordsResponse represents the /records response
type RecordsResponse struct {
	Count   int              `json:"count"`
	Records []records.Record `json:"records"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/health", s.healthHandler)
	r.Get("/ready", s.readyHandler)
	r.Get("/components", s.componentsHandler)
	r.Get("/components/{name}", s.componentHandler)
	r.Get("/records", s.recordsHandler)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	return r
}

// healthHandler is a liveness check: it answers 200 while the process
// serves, and reports the latest monitor round for information
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    health.StatusHealthy,
		Timestamp: time.Now(),
		Version:   s.sources.Version,
	}

	if s.sources.Health != nil {
		results := s.sources.Health.LastResults()
		if len(results) > 0 {
			response.Checks = results
			response.Status = health.Worst(values(results)...)
		}
		response.LastRound = s.sources.Health.LastRound()
	}

	writeJSON(w, http.StatusOK, response)
}

// readyHandler answers 200 when every component is started and no
// component was unhealthy in the last monitor round
func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	ready := true
	var message string

	if s.sources.Components == nil {
		ready = false
		message = "orchestrator not initialized"
	} else {
		for name, status := range s.sources.Components.Status() {
			checks[name] = string(status.State)
			if status.State != lifecycle.StateStarted {
				ready = false
				if message == "" {
					message = "components not started"
				}
			}
		}
	}

	if s.sources.Health != nil {
		for name, status := range s.sources.Health.LastResults() {
			if status == health.StatusUnhealthy {
				checks[name] = string(status)
				ready = false
				if message == "" {
					message = "components unhealthy"
				}
			}
		}
	}

	response := ReadyResponse{
		Status:    "ready",
		Timestamp: time.Now(),
		Checks:    checks,
		Message:   message,
	}
	code := http.StatusOK
	if !ready {
		response.Status = "not ready"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, response)
}

func (s *Server) componentsHandler(w http.ResponseWriter, r *http.Request) {
	if s.sources.Components == nil {
		writeJSON(w, http.StatusOK, []lifecycle.ComponentStatus{})
		return
	}

	statuses := s.sources.Components.Status()
	out := make([]lifecycle.ComponentStatus, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) componentHandler(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if s.sources.Components != nil {
		if status, ok := s.sources.Components.Status()[name]; ok {
			writeJSON(w, http.StatusOK, status)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, errorResponse{Error: "component not found: " + name})
}

func (s *Server) recordsHandler(w http.ResponseWriter, r *http.Request) {
	response := RecordsResponse{Records: []records.Record{}}
	if s.sources.Records != nil {
		response.Records = s.sources.Records.List()
	}
	response.Count = len(response.Records)
	writeJSON(w, http.StatusOK, response)
}

// UpdateHealth mirrors a monitor round into the gRPC health service. Each
// component is a service name; the empty service name is the overall
// status.
func (s *Server) UpdateHealth(results map[string]health.Status) {
	overall := healthpb.HealthCheckResponse_SERVING
	for name, status := range results {
		serving := servingStatus(status)
		if serving == healthpb.HealthCheckResponse_NOT_SERVING {
			overall = serving
		}
		s.health.SetServingStatus(name, serving)
	}
	s.health.SetServingStatus("", overall)
}

func servingStatus(status health.Status) healthpb.HealthCheckResponse_ServingStatus {
	switch status {
	case health.StatusHealthy, health.StatusDegraded:
		return healthpb.HealthCheckResponse_SERVING
	case health.StatusUnhealthy:
		return healthpb.HealthCheckResponse_NOT_SERVING
	default:
		return healthpb.HealthCheckResponse_UNKNOWN
	}
}

func values(results map[string]health.Status) []health.Status {
	out := make([]health.Status, 0, len(results))
	for _, status := range results {
		out = append(out, status)
	}
	return out
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
