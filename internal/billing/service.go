package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tidemark-io/tidemark/internal/core/plan"
	"github.com/tidemark-io/tidemark/internal/core/storage"
)

// ErrUnknownPlan marks a plan name with no catalog template.
var ErrUnknownPlan = errors.New("unknown plan name")

// Service manages tenant subscription plans. Plans are created from catalog
// templates and never hard-deleted; a downgrade is an update.
type Service struct {
	plans   storage.PlanStore
	catalog plan.Catalog
}

// NewService creates the billing service.
func NewService(plans storage.PlanStore, catalog plan.Catalog) *Service {
	if plans == nil {
		panic("billing: plan store must not be nil")
	}
	if catalog == nil {
		panic("billing: plan catalog must not be nil")
	}
	return &Service{plans: plans, catalog: catalog}
}

// GetPlan returns the tenant's plan, falling back to the default basic plan
// when no subscription row exists. Reads never fail on billing gaps.
func (s *Service) GetPlan(ctx context.Context, tenantID string) (*plan.Plan, bool, error) {
	p, err := s.plans.GetPlan(ctx, tenantID)
	if errors.Is(err, storage.ErrNotFound) {
		return plan.DefaultBasic(tenantID), false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get plan: %w", err)
	}
	return p, true, nil
}

// Subscribe creates a subscription for a tenant from a catalog template.
// Returns storage.ErrDuplicate when the tenant already has a plan.
func (s *Service) Subscribe(ctx context.Context, tenantID, planName string) (*plan.Plan, error) {
	tpl, err := s.catalog.Get(planName)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlan, planName)
	}

	p := *tpl
	p.TenantID = tenantID
	if err := s.plans.CreatePlan(ctx, &p); err != nil {
		return nil, err
	}

	slog.Info("[Billing] Tenant subscribed",
		"tenant_id", tenantID,
		"plan", p.Name,
		"tier", p.Tier)
	return &p, nil
}

// ChangePlan moves the tenant to a different catalog template.
// Returns storage.ErrNotFound when the tenant has no subscription yet.
func (s *Service) ChangePlan(ctx context.Context, tenantID, planName string) (*plan.Plan, error) {
	tpl, err := s.catalog.Get(planName)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlan, planName)
	}

	p := *tpl
	p.TenantID = tenantID
	if err := s.plans.UpdatePlan(ctx, &p); err != nil {
		return nil, err
	}

	slog.Info("[Billing] Tenant plan changed",
		"tenant_id", tenantID,
		"plan", p.Name,
		"tier", p.Tier)
	return &p, nil
}

// AvailablePlans returns the catalog template names, sorted.
func (s *Service) AvailablePlans() []string {
	return s.catalog.Names()
}
