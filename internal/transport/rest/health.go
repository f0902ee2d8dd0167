package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"
)

const probeTimeout = 3 * time.Second

// Check probes one dependency; a nil error means it is usable.
type Check func(ctx context.Context) error

// HealthHandler serves the liveness, readiness and health endpoints.
type HealthHandler struct {
	version string
	checks  map[string]Check
	names   []string
}

// NewHealthHandler creates a HealthHandler running checks by component name.
func NewHealthHandler(version string, checks map[string]Check) *HealthHandler {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	slices.Sort(names)
	return &HealthHandler{version: version, checks: checks, names: names}
}

// HealthResponse is the JSON response for /health and /ready.
type HealthResponse struct {
	Status     string                `json:"status"`
	Version    string                `json:"version,omitempty"`
	Components map[string]CompStatus `json:"components,omitempty"`
	Timestamp  time.Time             `json:"timestamp"`
}

// CompStatus is the status of an individual component.
type CompStatus struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Live is the liveness probe. Always returns 200.
func (h *HealthHandler) Live(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Timestamp: time.Now()})
}

// Ready is the readiness probe: 200 when every component is up, 503 otherwise.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	components := h.probe(r.Context())
	writeJSON(w, statusCode(components), HealthResponse{
		Status:    overall(components),
		Timestamp: time.Now(),
	})
}

// Health reports every component with its latency and the build version.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	components := h.probe(r.Context())
	writeJSON(w, statusCode(components), HealthResponse{
		Status:     overall(components),
		Version:    h.version,
		Components: components,
		Timestamp:  time.Now(),
	})
}

// probe runs all checks concurrently under one deadline.
func (h *HealthHandler) probe(ctx context.Context) map[string]CompStatus {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out = make(map[string]CompStatus, len(h.names))
	)
	for _, name := range h.names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			err := h.checks[name](ctx)
			st := CompStatus{Status: "ok", Latency: time.Since(start).String()}
			if err != nil {
				st = CompStatus{Status: "down", Error: err.Error()}
			}
			mu.Lock()
			out[name] = st
			mu.Unlock()
		}()
	}
	wg.Wait()
	return out
}

func overall(components map[string]CompStatus) string {
	for _, c := range components {
		if c.Status != "ok" {
			return "down"
		}
	}
	return "ok"
}

func statusCode(components map[string]CompStatus) int {
	if overall(components) != "ok" {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}
