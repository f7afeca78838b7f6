package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/tidemark-io/tidemark/internal/aggregation"
	"github.com/tidemark-io/tidemark/internal/core/plan"
	"github.com/tidemark-io/tidemark/internal/core/storage"
)

const (
	// maxRawLimit caps raw event reads per request.
	maxRawLimit     = 10000
	defaultRawLimit = 100

	// Storage estimate factors, matching the re-aggregation savings math.
	rawEventMBEstimate  = 0.001
	bucketRowMBEstimate = 0.01
)

// Service is the tier-routed read side. Reads mirror the write-side gating:
// a tenant can only query the granularity its plan writes.
type Service struct {
	resolver  *aggregation.Resolver
	buckets   storage.BucketStore
	rawEvents storage.RawEventStore
	nowFn     func() time.Time
}

// NewService creates the analytics read service.
func NewService(plans storage.PlanStore, buckets storage.BucketStore, rawEvents storage.RawEventStore) *Service {
	return &Service{
		resolver:  aggregation.NewResolver(plans),
		buckets:   buckets,
		rawEvents: rawEvents,
		nowFn: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Daily returns daily buckets for the range. Available on every tier.
func (s *Service) Daily(ctx context.Context, tenantID, campaignID string, start, end time.Time) (*DailyReport, error) {
	buckets, err := s.buckets.QueryDaily(ctx, tenantID, campaignID, start, end)
	if err != nil {
		return nil, fmt.Errorf("query daily buckets: %w", err)
	}

	report := &DailyReport{
		TenantID:   tenantID,
		CampaignID: campaignID,
		StartDate:  start.Format("2006-01-02"),
		EndDate:    end.Format("2006-01-02"),
		Buckets:    make([]DailyBucketView, 0, len(buckets)),
	}
	for _, b := range buckets {
		report.Buckets = append(report.Buckets, dailyBucketView(b))
	}
	return report, nil
}

// Hourly returns hourly buckets for the range. Pro and above.
func (s *Service) Hourly(ctx context.Context, tenantID, campaignID string, start, end time.Time) (*HourlyReport, error) {
	p := s.resolver.Resolve(ctx, tenantID)
	if !p.HourlyBucketsEnabled() {
		return nil, &EntitlementError{
			Feature:      "hourly analytics",
			RequiredTier: plan.TierPro,
			ActualTier:   p.Tier,
		}
	}

	buckets, err := s.buckets.QueryHourly(ctx, tenantID, campaignID, start, end)
	if err != nil {
		return nil, fmt.Errorf("query hourly buckets: %w", err)
	}

	report := &HourlyReport{
		TenantID:   tenantID,
		CampaignID: campaignID,
		StartDate:  start.Format("2006-01-02"),
		EndDate:    end.Format("2006-01-02"),
		Buckets:    make([]HourlyBucketView, 0, len(buckets)),
	}
	for _, b := range buckets {
		report.Buckets = append(report.Buckets, hourlyBucketView(b))
	}
	return report, nil
}

// Raw returns recent raw events, newest first. Enterprise only; limit is
// clamped to the per-request cap.
func (s *Service) Raw(ctx context.Context, tenantID, campaignID string, start, end time.Time, limit int) (*RawReport, error) {
	p := s.resolver.Resolve(ctx, tenantID)
	if !p.RawPersistenceEnabled() {
		return nil, &EntitlementError{
			Feature:      "raw event access",
			RequiredTier: plan.TierEnterprise,
			ActualTier:   p.Tier,
		}
	}

	if limit <= 0 {
		limit = defaultRawLimit
	}
	if limit > maxRawLimit {
		limit = maxRawLimit
	}

	events, err := s.rawEvents.QueryRecentRawEvents(ctx, tenantID, campaignID, start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("query raw events: %w", err)
	}

	report := &RawReport{
		TenantID:   tenantID,
		CampaignID: campaignID,
		Limit:      limit,
		Events:     make([]RawEventView, 0, len(events)),
	}
	for _, e := range events {
		report.Events = append(report.Events, rawEventView(e))
	}
	return report, nil
}

// Storage reports the tenant's storage footprint from live row counts.
func (s *Service) Storage(ctx context.Context, tenantID string) (*StorageReport, error) {
	p := s.resolver.Resolve(ctx, tenantID)

	rawRows, err := s.rawEvents.CountRawEvents(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("count raw events: %w", err)
	}
	daily, hourly, err := s.buckets.CountBuckets(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("count buckets: %w", err)
	}

	rawMB := float64(rawRows) * rawEventMBEstimate
	aggMB := float64(daily+hourly) * bucketRowMBEstimate

	return &StorageReport{
		TenantID:              tenantID,
		PlanTier:              p.Tier,
		RawEventRows:          rawRows,
		DailyBucketRows:       daily,
		HourlyBucketRows:      hourly,
		RawStorageMB:          rawMB,
		AggregatedStorageMB:   aggMB,
		EstimatedSavingsMB:    rawMB - aggMB,
		RawRetentionDays:      p.RawRetentionDays,
		RawPersistenceEnabled: p.RawPersistenceEnabled(),
	}, nil
}
