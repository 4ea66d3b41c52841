package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jgoulah/mindergas/internal/metrics"
	"github.com/jgoulah/mindergas/internal/mindergas"
	"github.com/jgoulah/mindergas/internal/sensor"
	"github.com/jgoulah/mindergas/internal/state"
	"github.com/jgoulah/mindergas/internal/updater"
	"github.com/jgoulah/mindergas/pkg/models"
)

// Actions are the on-demand triggers of an installation
type Actions interface {
	Refresh(ctx context.Context) updater.RefreshResult
	PostReading(ctx context.Context) error
}

// Server is the local HTTP API: health, metrics, sensor values and the
// refresh / post reading actions
type Server struct {
	cache   *state.Cache
	metrics *metrics.Collector
	logger  *slog.Logger

	mu      sync.RWMutex
	entries map[uuid.UUID]entry
}

type entry struct {
	inst    models.Installation
	actions Actions
}

// New creates a server reading state from cache
func New(cache *state.Cache, collector *metrics.Collector, logger *slog.Logger) *Server {
	return &Server{
		cache:   cache,
		metrics: collector,
		logger:  logger.With("component", "http"),
		entries: make(map[uuid.UUID]entry),
	}
}

// Register exposes an installation and its actions
func (s *Server) Register(inst models.Installation, actions Actions) {
	s.mu.Lock()
	s.entries[inst.ID] = entry{inst: inst, actions: actions}
	s.mu.Unlock()
}

// Unregister hides an installation
func (s *Server) Unregister(id uuid.UUID) {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// InstallationResponse describes a registered installation
type InstallationResponse struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	PostMeterReading  bool       `json:"post_meter_reading"`
	UpdateStats       bool       `json:"update_stats"`
	LastUpdated       *time.Time `json:"last_updated,omitempty"`
	PostMeterEntityID string     `json:"post_meter_entity_id,omitempty"`
}

// SensorResponse is the current value of one sensor
type SensorResponse struct {
	Key   string `json:"key"`
	Name  string `json:"name"`
	State string `json:"state"`
	Unit  string `json:"unit,omitempty"`
	Icon  string `json:"icon,omitempty"`
}

// RefreshResponse summarizes a refresh triggered over HTTP
type RefreshResponse struct {
	Result  string `json:"result"`
	Fetched int    `json:"fetched"`
	Empty   int    `json:"empty"`
	Failed  int    `json:"failed"`
}

// Router returns the HTTP handler
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	s.RegisterRoutes(router)
	return router
}

// RegisterRoutes registers all routes on router
func (s *Server) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/healthz", s.HealthCheck).Methods("GET")
	if reg := s.metrics.Registry(); reg != nil {
		router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods("GET")
	}

	router.HandleFunc("/api/installations", s.ListInstallations).Methods("GET")
	router.HandleFunc("/api/installations/{id}/sensors", s.GetSensors).Methods("GET")
	router.HandleFunc("/api/installations/{id}/refresh", s.Refresh).Methods("POST")
	router.HandleFunc("/api/installations/{id}/post-reading", s.PostReading).Methods("POST")

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.sendError(w, "no route for "+r.URL.Path, http.StatusNotFound)
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.sendError(w, r.Method+" not allowed on "+r.URL.Path, http.StatusMethodNotAllowed)
	})
}

// HealthCheck handles GET /healthz
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	n := len(s.entries)
	s.mu.RUnlock()

	s.sendJSON(w, map[string]interface{}{
		"status":        "healthy",
		"installations": n,
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	}, http.StatusOK)
}

// ListInstallations handles GET /api/installations
func (s *Server) ListInstallations(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	out := make([]InstallationResponse, 0, len(s.entries))
	for _, e := range s.entries {
		resp := InstallationResponse{
			ID:                e.inst.ID.String(),
			Name:              e.inst.DisplayName(),
			PostMeterReading:  e.inst.PostMeterReading,
			PostMeterEntityID: e.inst.PostMeterEntityID,
			UpdateStats:       e.inst.UpdateStats,
		}
		if st, ok := s.cache.Get(e.inst.ID); ok {
			if at := st.Snapshot().UpdatedAt; !at.IsZero() {
				resp.LastUpdated = &at
			}
		}
		out = append(out, resp)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	s.sendJSON(w, out, http.StatusOK)
}

// GetSensors handles GET /api/installations/{id}/sensors
func (s *Server) GetSensors(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(r)
	if !ok {
		s.sendError(w, "installation not found", http.StatusNotFound)
		return
	}
	st, ok := s.cache.Get(e.inst.ID)
	if !ok {
		s.sendError(w, "installation has no state", http.StatusNotFound)
		return
	}

	readings := sensor.Render(st.Snapshot())
	out := make([]SensorResponse, 0, len(readings))
	for _, rd := range readings {
		out = append(out, SensorResponse{
			Key:   rd.Key,
			Name:  rd.Name,
			State: rd.Value.State(),
			Unit:  rd.Value.Unit,
			Icon:  rd.Icon,
		})
	}
	s.sendJSON(w, out, http.StatusOK)
}

// Refresh handles POST /api/installations/{id}/refresh
func (s *Server) Refresh(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(r)
	if !ok {
		s.sendError(w, "installation not found", http.StatusNotFound)
		return
	}

	res := e.actions.Refresh(r.Context())
	s.sendJSON(w, RefreshResponse{
		Result:  res.Outcome(),
		Fetched: res.Fetched,
		Empty:   res.Empty,
		Failed:  res.Failed,
	}, http.StatusOK)
}

// PostReading handles POST /api/installations/{id}/post-reading
func (s *Server) PostReading(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookup(r)
	if !ok {
		s.sendError(w, "installation not found", http.StatusNotFound)
		return
	}

	err := e.actions.PostReading(r.Context())
	switch {
	case err == nil:
		s.sendJSON(w, map[string]string{"status": "posted"}, http.StatusOK)
	case errors.Is(err, updater.ErrNoMeterEntity), errors.Is(err, updater.ErrInvalidReading):
		s.sendError(w, err.Error(), http.StatusUnprocessableEntity)
	case mindergas.StatusCode(err) != 0:
		s.sendError(w, err.Error(), http.StatusBadGateway)
	default:
		s.sendError(w, err.Error(), http.StatusServiceUnavailable)
	}
}

// lookup resolves the {id} route variable, accepting the full ID or the
// short form shown in logs and MQTT topics
func (s *Server) lookup(r *http.Request) (entry, bool) {
	raw := mux.Vars(r)["id"]

	s.mu.RLock()
	defer s.mu.RUnlock()

	if id, err := uuid.Parse(raw); err == nil {
		e, ok := s.entries[id]
		return e, ok
	}
	for _, e := range s.entries {
		if e.inst.ShortID() == raw {
			return e, true
		}
	}
	return entry{}, false
}

// sendJSON sends a JSON response
func (s *Server) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("encoding response", "error", err)
	}
}

// sendError sends an error response
func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	s.sendJSON(w, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}, statusCode)
}
