package aggregation

import (
	"context"
	"log/slog"
	"time"

	"github.com/tidemark-io/tidemark/internal/core/storage"
)

// Scheduler runs retention sweeps on a periodic interval.
// It is stateless: each tick independently lists tenants and sweeps them, so
// a missed tick costs nothing but staleness.
type Scheduler struct {
	interval time.Duration
	plans    storage.PlanStore
	sweeper  *Sweeper
}

// NewScheduler creates the periodic retention scheduler.
func NewScheduler(interval time.Duration, plans storage.PlanStore, sweeper *Sweeper) *Scheduler {
	return &Scheduler{
		interval: interval,
		plans:    plans,
		sweeper:  sweeper,
	}
}

// Start begins periodic sweeping.
// Runs until context is cancelled, then does one final pass.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("[Scheduler] Starting retention sweep scheduler",
		"interval", s.interval)

	// Catch up immediately on startup instead of waiting a full interval.
	s.sweepAllTenants(ctx)

	for {
		select {
		case <-ticker.C:
			s.sweepAllTenants(ctx)
		case <-ctx.Done():
			slog.Info("[Scheduler] Stopping (context cancelled)")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			slog.Info("[Scheduler] Running final sweep before shutdown...")
			s.sweepAllTenants(shutdownCtx)
			slog.Info("[Scheduler] Final sweep complete")

			return nil
		}
	}
}

// sweepAllTenants sweeps every tenant with a subscription plan, then prunes
// stale sightings. Per-tenant failures are logged and skipped so one broken
// tenant cannot stall the rest.
func (s *Scheduler) sweepAllTenants(ctx context.Context) {
	tenants, err := s.plans.ListTenantIDs(ctx)
	if err != nil {
		slog.Error("[Scheduler] Failed to list tenants for sweep", "error", err)
		return
	}

	var swept, failed int
	var totalDeleted int64
	for _, tenantID := range tenants {
		select {
		case <-ctx.Done():
			slog.Info("[Scheduler] Sweep interrupted by context cancellation",
				"tenants_swept", swept)
			return
		default:
		}

		result, err := s.sweeper.Sweep(ctx, tenantID)
		if err != nil {
			slog.Error("[Scheduler] Tenant sweep failed",
				"tenant_id", tenantID,
				"error", err)
			failed++
			continue
		}
		swept++
		totalDeleted += result.RawEventsDeleted
	}

	if _, err := s.sweeper.PruneSightings(ctx); err != nil {
		slog.Error("[Scheduler] Sighting prune failed", "error", err)
	}

	if totalDeleted > 0 || failed > 0 {
		slog.Info("[Scheduler] Sweep cycle complete",
			"tenants_swept", swept,
			"tenants_failed", failed,
			"raw_events_deleted", totalDeleted)
	}
}
