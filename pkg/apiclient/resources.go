package apiclient

import (
	"context"
	"fmt"
)

// SessionInfo mirrors pkg/api/handlers.SessionInfo without importing it,
// the same boundary the handlers layer keeps against internal/host.
type SessionInfo struct {
	ID          string `json:"id"`
	IntSize     int    `json:"int_size"`
	PtrSize     int    `json:"ptr_size"`
	OpenHandles int    `json:"open_handles"`
}

// AuditEntry mirrors pkg/api/handlers.AuditEntry.
type AuditEntry struct {
	Time      int64  `json:"time"`
	SessionID string `json:"session_id"`
	Kind      string `json:"kind"`
	Detail    string `json:"detail"`
}

// PathRule mirrors pkg/api/handlers.PathRuleDTO.
type PathRule struct {
	Prefix     string `json:"prefix"`
	AllowWrite bool   `json:"allow_write"`
}

// PolicySet mirrors pkg/api/handlers.PolicySetDTO.
type PolicySet struct {
	Name  string     `json:"name"`
	Rules []PathRule `json:"rules"`
}

// Sessions fetches the live session list from GET /sessions.
func (c *Client) Sessions(ctx context.Context) ([]SessionInfo, error) {
	return getResource[[]SessionInfo](ctx, c, "/sessions")
}

// AuditEntries fetches the most recent audit entries from GET /audit.
func (c *Client) AuditEntries(ctx context.Context, limit int) ([]AuditEntry, error) {
	return getResource[[]AuditEntry](ctx, c, fmt.Sprintf("/audit?limit=%d", limit))
}

// GetPolicy fetches a named policy set from GET /policy?name=NAME.
func (c *Client) GetPolicy(ctx context.Context, name string) (PolicySet, error) {
	return getResource[PolicySet](ctx, c, fmt.Sprintf("/policy?name=%s", name))
}

// PutPolicy replaces a named policy set's rules wholesale via the
// admin-authenticated PUT /policy. Requires WithToken to have been called.
func (c *Client) PutPolicy(ctx context.Context, set PolicySet) (PolicySet, error) {
	var result PolicySet
	err := c.put(ctx, "/policy", set, &result)
	return result, err
}
