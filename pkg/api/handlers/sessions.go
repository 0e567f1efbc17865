package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// SessionInfo is the read-only snapshot of a live semihosting session
// exposed over GET /sessions/{id}.
type SessionInfo struct {
	ID          string `json:"id"`
	IntSize     int    `json:"int_size"`
	PtrSize     int    `json:"ptr_size"`
	OpenHandles int    `json:"open_handles"`
}

// SessionSource is the read-only view onto live sessions the handlers
// need; pkg/api.SessionRegistry implements it.
type SessionSource interface {
	Get(id string) (SessionInfo, bool)
	List() []SessionInfo
	HandleFDs(id string) ([]int32, bool)
}

type SessionHandler struct {
	sessions SessionSource
}

func NewSessionHandler(sessions SessionSource) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// List handles GET /sessions.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSONOK(w, h.sessions.List())
}

// Get handles GET /sessions/{id}.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	info, ok := h.sessions.Get(id)
	if !ok {
		NotFound(w, "session not found")
		return
	}
	writeJSONOK(w, info)
}

// Handles handles GET /sessions/{id}/handles.
func (h *SessionHandler) Handles(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	fds, ok := h.sessions.HandleFDs(id)
	if !ok {
		NotFound(w, "session not found")
		return
	}
	writeJSONOK(w, map[string]any{"session_id": id, "handles": fds})
}
