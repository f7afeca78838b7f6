package aggregation

import (
	"context"
	"log/slog"
	"time"

	"github.com/tidemark-io/tidemark/internal/core/storage"
)

// sightingRetention is how long per-hour actor sightings are kept. The dedup
// index only needs to cover the window where late events can still land in an
// open hour bucket; 48 hours is generous.
const sightingRetention = 48 * time.Hour

// SweepResult summarizes one tenant's retention sweep.
type SweepResult struct {
	TenantID         string `json:"tenant_id"`
	RawEventsDeleted int64  `json:"raw_events_deleted"`
	RetentionDays    int    `json:"retention_days"`
}

// Sweeper enforces raw-event retention per tenant plan.
//
// Sweeping touches raw events only. Aggregate buckets built from the deleted
// events are the product the tenant keeps; they are never expired here.
type Sweeper struct {
	service   *Service
	resolver  *Resolver
	sightings storage.SightingStore
	nowFn     func() time.Time
}

// NewSweeper creates a retention sweeper on top of the aggregation service.
func NewSweeper(service *Service, sightings storage.SightingStore) *Sweeper {
	if service == nil {
		panic("aggregation: service must not be nil")
	}
	return &Sweeper{
		service:   service,
		resolver:  service.resolver,
		sightings: sightings,
		nowFn: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Sweep deletes one tenant's expired raw events per its plan retention.
// Plans with no retention window (basic, pro) own no raw events and sweep to
// zero trivially.
func (w *Sweeper) Sweep(ctx context.Context, tenantID string) (*SweepResult, error) {
	p := w.resolver.Resolve(ctx, tenantID)

	result := &SweepResult{
		TenantID:      tenantID,
		RetentionDays: p.RawRetentionDays,
	}

	deleted, err := w.service.CleanupExpiredRawData(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	result.RawEventsDeleted = deleted
	return result, nil
}

// PruneSightings drops dedup index rows older than the sighting retention
// window. Deployment-wide, not per tenant.
func (w *Sweeper) PruneSightings(ctx context.Context) (int64, error) {
	if w.sightings == nil {
		return 0, nil
	}

	cutoff := w.nowFn().Add(-sightingRetention).Truncate(24 * time.Hour)
	pruned, err := w.sightings.PruneSightingsBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	if pruned > 0 {
		slog.Info("[Sweeper] Pruned stale actor sightings",
			"pruned", pruned,
			"cutoff", cutoff.Format("2006-01-02"))
	}
	return pruned, nil
}
