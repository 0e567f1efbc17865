package api

import (
	"github.com/johnwbyrd/semihost/internal/audit"
	"github.com/johnwbyrd/semihost/pkg/api/handlers"
)

// auditAdapter adapts internal/audit.Log to handlers.AuditSource,
// converting between audit.Entry and handlers.AuditEntry so the
// handlers package never imports internal/audit.
type auditAdapter struct {
	log *audit.Log
}

func newAuditAdapter(log *audit.Log) *auditAdapter {
	return &auditAdapter{log: log}
}

func (a *auditAdapter) Recent(limit int) ([]handlers.AuditEntry, error) {
	entries, err := a.log.Recent(limit)
	if err != nil {
		return nil, err
	}
	out := make([]handlers.AuditEntry, len(entries))
	for i, e := range entries {
		out[i] = handlers.AuditEntry{Time: e.Time, SessionID: e.SessionID, Kind: e.Kind, Detail: e.Detail}
	}
	return out, nil
}
