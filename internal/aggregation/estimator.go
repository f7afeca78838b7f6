package aggregation

import (
	"context"
	"fmt"

	"github.com/tidemark-io/tidemark/internal/core/bucket"
	"github.com/tidemark-io/tidemark/internal/core/plan"
	"github.com/tidemark-io/tidemark/internal/core/storage"
)

// UniqueUserEstimator decides whether an event's actor should increment the
// unique_users counter of its bucket.
type UniqueUserEstimator interface {
	// FirstSeen reports whether this is the actor's first event in the hour
	// scope. Actors with no identifier never count.
	FirstSeen(ctx context.Context, scope bucket.HourlyKey, actorID string) (bool, error)
}

// BlindIncrement treats every identified actor as new. Cheap and wrong in the
// known direction: it over-counts repeat actors. Used for plans that keep no
// per-actor state.
type BlindIncrement struct{}

func (BlindIncrement) FirstSeen(_ context.Context, _ bucket.HourlyKey, actorID string) (bool, error) {
	return actorID != "", nil
}

// HistoryCheckedIncrement dedups actors per hour via the sighting store's
// atomic insert-if-absent. Exact within an hour scope regardless of whether
// the plan retains raw events.
type HistoryCheckedIncrement struct {
	sightings storage.SightingStore
}

// NewHistoryCheckedIncrement creates the deduping estimator.
func NewHistoryCheckedIncrement(sightings storage.SightingStore) *HistoryCheckedIncrement {
	if sightings == nil {
		panic("aggregation: sighting store must not be nil")
	}
	return &HistoryCheckedIncrement{sightings: sightings}
}

func (h *HistoryCheckedIncrement) FirstSeen(ctx context.Context, scope bucket.HourlyKey, actorID string) (bool, error) {
	if actorID == "" {
		return false, nil
	}
	first, err := h.sightings.RecordSighting(ctx, scope, actorID)
	if err != nil {
		return false, fmt.Errorf("record sighting: %w", err)
	}
	return first, nil
}

// estimatorFor selects the estimation strategy the plan pays for.
func estimatorFor(p *plan.Plan, blind UniqueUserEstimator, checked UniqueUserEstimator) UniqueUserEstimator {
	if p.DedupUniqueUsers() {
		return checked
	}
	return blind
}
