package aggregation

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tidemark-io/tidemark/internal/core/plan"
	"github.com/tidemark-io/tidemark/internal/core/storage"
)

// Resolver maps a tenant to its effective subscription plan.
//
// Resolution never fails: a tenant without a plan row gets the default basic
// plan, and a storage outage degrades to the same fallback rather than
// rejecting the event. Ingestion availability wins over billing accuracy.
type Resolver struct {
	plans storage.PlanStore
}

// NewResolver creates a plan resolver backed by the given store.
func NewResolver(plans storage.PlanStore) *Resolver {
	if plans == nil {
		panic("aggregation: plan store must not be nil")
	}
	return &Resolver{plans: plans}
}

// Resolve returns the tenant's plan snapshot for one operation.
// The snapshot is not re-read mid-operation, so a concurrent tier change
// takes effect on the next event.
func (r *Resolver) Resolve(ctx context.Context, tenantID string) *plan.Plan {
	p, err := r.plans.GetPlan(ctx, tenantID)
	if err == nil {
		return p
	}

	if errors.Is(err, storage.ErrNotFound) {
		// A tenant sending events with no subscription row is a billing
		// gap worth surfacing, not an ingestion failure.
		slog.Warn("[Resolver] No subscription plan for tenant, using default basic",
			"tenant_id", tenantID)
		return plan.DefaultBasic(tenantID)
	}

	slog.Error("[Resolver] Plan lookup failed, using default basic",
		"tenant_id", tenantID,
		"error", err)
	return plan.DefaultBasic(tenantID)
}
