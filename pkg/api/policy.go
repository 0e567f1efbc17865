package api

import (
	"context"
	"errors"

	"github.com/johnwbyrd/semihost/pkg/api/handlers"
	"github.com/johnwbyrd/semihost/pkg/policystore"
)

// policyAdapter adapts a policystore.Store to handlers.PolicyStore,
// converting between policystore's GORM models and the handlers
// package's wire DTOs so the handlers package never imports
// pkg/policystore directly.
type policyAdapter struct {
	store *policystore.Store
}

func newPolicyAdapter(store *policystore.Store) *policyAdapter {
	return &policyAdapter{store: store}
}

func (p *policyAdapter) GetPolicySet(name string) (handlers.PolicySetDTO, error) {
	ctx := context.Background()
	set, err := p.store.GetPolicySet(ctx, name)
	if err != nil {
		return handlers.PolicySetDTO{}, err
	}
	rows, err := p.store.ListRules(ctx, set.ID)
	if err != nil {
		return handlers.PolicySetDTO{}, err
	}
	dto := handlers.PolicySetDTO{Name: set.Name, Rules: make([]handlers.PathRuleDTO, len(rows))}
	for i, row := range rows {
		dto.Rules[i] = handlers.PathRuleDTO{Prefix: row.Prefix, AllowWrite: row.AllowWrite}
	}
	return dto, nil
}

func (p *policyAdapter) PutPolicySet(set handlers.PolicySetDTO) error {
	ctx := context.Background()
	existing, err := p.store.GetPolicySet(ctx, set.Name)
	if errors.Is(err, policystore.ErrPolicySetNotFound) {
		existing, err = p.store.CreatePolicySet(ctx, set.Name)
	}
	if err != nil {
		return err
	}
	rows := make([]policystore.PathRuleModel, len(set.Rules))
	for i, r := range set.Rules {
		rows[i] = policystore.PathRuleModel{Prefix: r.Prefix, AllowWrite: r.AllowWrite}
	}
	return p.store.ReplaceRules(ctx, existing.ID, rows)
}
