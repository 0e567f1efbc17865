package policystore

import (
	"context"
	"errors"
	"log/slog"

	"github.com/johnwbyrd/semihost/internal/sandbox"
)

// GORMPolicySource adapts a Store's rows for one policy set into
// internal/sandbox.PolicySource, so internal/host never has to know
// whether a session's rules came from the static in-memory list or this
// database-backed one.
type GORMPolicySource struct {
	store       *Store
	policySetID string
}

// NewGORMPolicySource binds a policy set by name, creating it if absent.
func NewGORMPolicySource(ctx context.Context, store *Store, policySetName string) (*GORMPolicySource, error) {
	set, err := store.GetPolicySet(ctx, policySetName)
	if errors.Is(err, ErrPolicySetNotFound) {
		set, err = store.CreatePolicySet(ctx, policySetName)
	}
	if err != nil {
		return nil, err
	}
	return &GORMPolicySource{store: store, policySetID: set.ID}, nil
}

// Rules implements internal/sandbox.PolicySource. A query failure is
// logged and treated as an empty rule set rather than propagated: the
// interface has no error return, and the sandbox root itself still
// applies, so a transient database hiccup degrades to "root-only access"
// rather than panicking the session.
func (g *GORMPolicySource) Rules() []sandbox.PathRule {
	rows, err := g.store.CachedRules(context.Background(), g.policySetID)
	if err != nil {
		slog.Error("policystore: failed to load path rules", "policy_set_id", g.policySetID, "error", err)
		return nil
	}
	rules := make([]sandbox.PathRule, len(rows))
	for i, row := range rows {
		rules[i] = sandbox.PathRule{Prefix: row.Prefix, AllowWrite: row.AllowWrite}
	}
	return rules
}
