package api

import (
	"sync"

	"github.com/johnwbyrd/semihost/internal/host"
	"github.com/johnwbyrd/semihost/pkg/api/handlers"
)

// handleCounter is satisfied by internal/sandbox.Backend and
// pkg/backend/s3backend.Backend. A host.Backend that implements neither
// method (none in this tree) simply reports zero/empty for introspection.
type handleCounter interface {
	OpenHandles() int
}

type fdLister interface {
	HandleFDs() []int32
}

// SessionRegistry tracks every live internal/host.Session by ID under a
// mutex, the same register/lookup shape as the teacher's pkg/registry.
// cmd/semihostd registers a session when a device connection is
// accepted and unregisters it on disconnect. It implements
// handlers.SessionSource and handlers.SessionCounter.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*host.Session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*host.Session)}
}

func (r *SessionRegistry) Register(s *host.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
}

func (r *SessionRegistry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *SessionRegistry) Get(id string) (handlers.SessionInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return handlers.SessionInfo{}, false
	}
	return snapshot(s), true
}

func (r *SessionRegistry) List() []handlers.SessionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]handlers.SessionInfo, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, snapshot(s))
	}
	return out
}

// HandleFDs returns the open handle numbers for session id, and whether
// the session exists at all; a known session whose backend doesn't
// track handles reports (nil, true).
func (r *SessionRegistry) HandleFDs(id string) ([]int32, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	lister, ok := s.Backend.(fdLister)
	if !ok {
		return nil, true
	}
	return lister.HandleFDs(), true
}

func snapshot(s *host.Session) handlers.SessionInfo {
	info := handlers.SessionInfo{ID: s.ID, IntSize: s.IntSize, PtrSize: s.PtrSize}
	if hc, ok := s.Backend.(handleCounter); ok {
		info.OpenHandles = hc.OpenHandles()
	}
	return info
}
