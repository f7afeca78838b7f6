package aggregation

import (
	"context"
	"fmt"

	"github.com/tidemark-io/tidemark/internal/core/bucket"
	"github.com/tidemark-io/tidemark/internal/core/event"
	"github.com/tidemark-io/tidemark/internal/core/plan"
	"github.com/tidemark-io/tidemark/internal/core/storage"
)

// Accumulator folds single events into their aggregate buckets according to
// the tenant's plan.
type Accumulator struct {
	buckets     storage.BucketStore
	blind       UniqueUserEstimator
	checked     UniqueUserEstimator
	conversions bucket.ConversionSet
}

// NewAccumulator wires the accumulator with both estimation strategies; the
// plan picks one per event.
func NewAccumulator(buckets storage.BucketStore, sightings storage.SightingStore, conversions bucket.ConversionSet) *Accumulator {
	if buckets == nil {
		panic("aggregation: bucket store must not be nil")
	}
	if conversions == nil {
		conversions = bucket.DefaultConversionSet()
	}
	return &Accumulator{
		buckets:     buckets,
		blind:       BlindIncrement{},
		checked:     NewHistoryCheckedIncrement(sightings),
		conversions: conversions,
	}
}

// Apply folds one normalized event into the daily bucket, and into the hourly
// bucket when the plan includes hourly granularity. The unique-user decision
// is made once and reused so both buckets move together. Any storage failure
// aborts the apply and propagates; partially applied buckets are reconciled
// by the next full re-aggregation.
func (a *Accumulator) Apply(ctx context.Context, p *plan.Plan, evt *event.Normalized) error {
	hourKey := bucket.HourlyKeyFor(evt.TenantID, evt.CampaignID, evt.Timestamp)

	// The sighting commits before the bucket writes. If a bucket write fails
	// and the caller retries the same event, FirstSeen reports false on the
	// retry and that actor's unique increment is lost for the hour. The live
	// path accepts this class of lost update; re-aggregation rebuilds uniques
	// exactly from raw history.
	est := estimatorFor(p, a.blind, a.checked)
	countUnique, err := est.FirstSeen(ctx, hourKey, evt.ActorID())
	if err != nil {
		return fmt.Errorf("unique estimate: %w", err)
	}

	dayKey := bucket.DailyKeyFor(evt.TenantID, evt.CampaignID, evt.Timestamp)
	if err := a.buckets.ApplyDaily(ctx, dayKey, func(c *bucket.Counters) {
		c.Record(evt, countUnique, a.conversions)
	}); err != nil {
		return fmt.Errorf("apply daily bucket: %w", err)
	}

	if !p.HourlyBucketsEnabled() {
		return nil
	}

	if err := a.buckets.ApplyHourly(ctx, hourKey, func(c *bucket.Counters) {
		c.Record(evt, countUnique, a.conversions)
	}); err != nil {
		return fmt.Errorf("apply hourly bucket: %w", err)
	}
	return nil
}
