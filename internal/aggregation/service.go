package aggregation

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tidemark-io/tidemark/internal/core/bucket"
	"github.com/tidemark-io/tidemark/internal/core/event"
	"github.com/tidemark-io/tidemark/internal/core/storage"
)

// Storage tier labels reported back to ingestion clients.
const (
	StorageTierRawAndAggregated = "raw_and_aggregated"
	StorageTierAggregatedOnly   = "aggregated_only"
)

// ProcessResult summarizes how one event was handled under the tenant's plan.
type ProcessResult struct {
	TenantID             string  `json:"tenant_id"`
	CampaignID           string  `json:"campaign_id"`
	EventName            string  `json:"event_name"`
	PlanTier             int     `json:"plan_tier"`
	AggregationFrequency string  `json:"aggregation_frequency"`
	RawEventStored       bool    `json:"raw_event_stored"`
	RawEventID           string  `json:"raw_event_id,omitempty"`
	StorageTier          string  `json:"storage_tier"`
	ProcessingTime       float64 `json:"processing_time_seconds"`
}

// Service is the aggregation pipeline: plan resolution, normalization,
// tier-gated raw persistence, and bucket accumulation.
type Service struct {
	resolver    *Resolver
	accumulator *Accumulator
	rawEvents   storage.RawEventStore
	buckets     storage.BucketStore
	conversions bucket.ConversionSet
	nowFn       func() time.Time
}

// NewService wires the aggregation pipeline.
func NewService(
	plans storage.PlanStore,
	rawEvents storage.RawEventStore,
	buckets storage.BucketStore,
	sightings storage.SightingStore,
	conversions bucket.ConversionSet,
) *Service {
	if rawEvents == nil {
		panic("aggregation: raw event store must not be nil")
	}
	if conversions == nil {
		conversions = bucket.DefaultConversionSet()
	}
	return &Service{
		resolver:    NewResolver(plans),
		accumulator: NewAccumulator(buckets, sightings, conversions),
		rawEvents:   rawEvents,
		buckets:     buckets,
		conversions: conversions,
		nowFn: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// ProcessEvent runs one event through the pipeline.
//
// The plan is resolved once and treated as a snapshot: raw persistence and
// granularity decisions for this event all come from the same plan read.
// Raw persistence happens before accumulation so a bucket failure never
// leaves an aggregate counted without its raw record on raw-entitled plans.
func (s *Service) ProcessEvent(ctx context.Context, tenantID string, in event.Incoming) (*ProcessResult, error) {
	started := s.nowFn()

	p := s.resolver.Resolve(ctx, tenantID)
	evt := event.Normalize(tenantID, in, started)

	result := &ProcessResult{
		TenantID:             tenantID,
		CampaignID:           evt.CampaignID,
		EventName:            evt.EventName,
		PlanTier:             p.Tier,
		AggregationFrequency: p.AggregationFrequency,
		StorageTier:          StorageTierAggregatedOnly,
	}

	if p.RawPersistenceEnabled() {
		raw := rawEventFrom(&evt, uuid.NewString(), started)
		if err := s.rawEvents.SaveRawEvent(ctx, raw); err != nil {
			return nil, err
		}
		result.RawEventStored = true
		result.RawEventID = raw.ID
		result.StorageTier = StorageTierRawAndAggregated
	}

	if err := s.accumulator.Apply(ctx, p, &evt); err != nil {
		return nil, err
	}

	result.ProcessingTime = s.nowFn().Sub(started).Seconds()

	slog.Debug("[Aggregation] Event processed",
		"tenant_id", tenantID,
		"campaign_id", evt.CampaignID,
		"event_name", evt.EventName,
		"plan_tier", p.Tier,
		"raw_stored", result.RawEventStored)

	return result, nil
}

// AggregateExistingData rebuilds aggregate buckets from stored raw events for
// a tenant/campaign date range. Only raw-entitled tenants have input data, but
// the operation is harmless for others: an empty range yields a zero summary,
// not an error.
func (s *Service) AggregateExistingData(ctx context.Context, tenantID, campaignID string, start, end time.Time) (*ReaggregateResult, error) {
	started := s.nowFn()

	p := s.resolver.Resolve(ctx, tenantID)
	result, err := s.reaggregate(ctx, p, tenantID, campaignID, start, end)
	if err != nil {
		return nil, err
	}

	result.ProcessingTime = s.nowFn().Sub(started).Seconds()
	return result, nil
}

// CleanupExpiredRawData deletes the tenant's raw events that have outlived
// the plan's retention window. Returns the number of rows deleted.
func (s *Service) CleanupExpiredRawData(ctx context.Context, tenantID string) (int64, error) {
	p := s.resolver.Resolve(ctx, tenantID)

	if p.RawRetentionDays <= 0 {
		slog.Debug("[Aggregation] No retention window for tenant, nothing to clean",
			"tenant_id", tenantID,
			"plan_tier", p.Tier)
		return 0, nil
	}

	cutoff := s.nowFn().AddDate(0, 0, -p.RawRetentionDays)
	deleted, err := s.rawEvents.DeleteRawEventsBefore(ctx, tenantID, cutoff)
	if err != nil {
		return 0, err
	}

	if deleted > 0 {
		slog.Info("[Aggregation] Expired raw events deleted",
			"tenant_id", tenantID,
			"deleted", deleted,
			"cutoff", cutoff.Format(time.RFC3339),
			"retention_days", p.RawRetentionDays)
	}
	return deleted, nil
}

// rawEventFrom materializes the storage row for a normalized event.
func rawEventFrom(evt *event.Normalized, id string, ingestedAt time.Time) *storage.RawEvent {
	return &storage.RawEvent{
		ID:             id,
		TenantID:       evt.TenantID,
		CampaignID:     evt.CampaignID,
		EventName:      evt.EventName,
		EventType:      evt.EventType,
		UserID:         evt.UserID,
		AnonymousID:    evt.AnonymousID,
		SessionID:      evt.SessionID,
		Properties:     evt.Properties,
		Country:        evt.Country,
		Region:         evt.Region,
		City:           evt.City,
		IPAddress:      evt.IPAddress,
		EventTimestamp: evt.Timestamp,
		IngestedAt:     ingestedAt,
	}
}
