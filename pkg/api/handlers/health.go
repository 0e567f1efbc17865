package handlers

import "net/http"

// SessionCounter reports how many semihosting sessions are currently
// tracked. Readiness only needs one to be wired up: the daemon is "ready"
// whenever a counter is present, with or without live sessions, and the
// count is reported in the response body.
type SessionCounter interface {
	Count() int
}

// HealthHandler handles the unauthenticated liveness/readiness probes.
type HealthHandler struct {
	sessions SessionCounter
}

// NewHealthHandler creates a health handler. sessions may be nil, in
// which case readiness always reports not-ready.
func NewHealthHandler(sessions SessionCounter) *HealthHandler {
	return &HealthHandler{sessions: sessions}
}

// Liveness handles GET /health: is the process running at all.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthyResponse(map[string]string{"service": "semihostd"}))
}

// Readiness handles GET /health/ready: is the session registry wired up.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.sessions == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("session registry not initialized"))
		return
	}
	writeJSON(w, http.StatusOK, healthyResponse(map[string]int{"sessions": h.sessions.Count()}))
}
