package analytics

import (
	"fmt"
	"time"

	"github.com/tidemark-io/tidemark/internal/core/storage"
)

// CounterView is the JSON shape of one bucket's counters.
type CounterView struct {
	EventCounts      map[string]int64 `json:"event_counts"`
	CountryBreakdown map[string]int64 `json:"country_breakdown"`
	RegionBreakdown  map[string]int64 `json:"region_breakdown"`
	CityBreakdown    map[string]int64 `json:"city_breakdown"`
	TotalEvents      int64            `json:"total_events"`
	UniqueUsers      int64            `json:"unique_users"`
	RevenueTotal     string           `json:"revenue_total"`
	ConversionRate   float64          `json:"conversion_rate"`
}

// DailyBucketView is one daily aggregate row.
type DailyBucketView struct {
	Date string `json:"date"`
	CounterView
}

// HourlyBucketView is one hourly aggregate row.
type HourlyBucketView struct {
	Date string `json:"date"`
	Hour int    `json:"hour"`
	CounterView
}

// DailyReport is the daily analytics response.
type DailyReport struct {
	TenantID   string            `json:"tenant_id"`
	CampaignID string            `json:"campaign_id"`
	StartDate  string            `json:"start_date"`
	EndDate    string            `json:"end_date"`
	Buckets    []DailyBucketView `json:"buckets"`
}

// HourlyReport is the hourly analytics response.
type HourlyReport struct {
	TenantID   string             `json:"tenant_id"`
	CampaignID string             `json:"campaign_id"`
	StartDate  string             `json:"start_date"`
	EndDate    string             `json:"end_date"`
	Buckets    []HourlyBucketView `json:"buckets"`
}

// RawEventView is one raw event row in the raw analytics response.
type RawEventView struct {
	ID             string                 `json:"id"`
	CampaignID     string                 `json:"campaign_id"`
	EventName      string                 `json:"event_name"`
	EventType      string                 `json:"event_type,omitempty"`
	UserID         string                 `json:"user_id,omitempty"`
	AnonymousID    string                 `json:"anonymous_id,omitempty"`
	SessionID      string                 `json:"session_id,omitempty"`
	Properties     map[string]interface{} `json:"properties,omitempty"`
	Country        string                 `json:"country,omitempty"`
	Region         string                 `json:"region,omitempty"`
	City           string                 `json:"city,omitempty"`
	EventTimestamp time.Time              `json:"event_timestamp"`
	IngestedAt     time.Time              `json:"ingested_at"`
}

// RawReport is the raw events response, newest first.
type RawReport struct {
	TenantID   string         `json:"tenant_id"`
	CampaignID string         `json:"campaign_id"`
	Limit      int            `json:"limit"`
	Events     []RawEventView `json:"events"`
}

// StorageReport summarizes a tenant's storage footprint and the estimated
// savings of the aggregate-only representation.
type StorageReport struct {
	TenantID               string  `json:"tenant_id"`
	PlanTier               int     `json:"plan_tier"`
	RawEventRows           int64   `json:"raw_event_rows"`
	DailyBucketRows        int64   `json:"daily_bucket_rows"`
	HourlyBucketRows       int64   `json:"hourly_bucket_rows"`
	RawStorageMB           float64 `json:"raw_storage_mb"`
	AggregatedStorageMB    float64 `json:"aggregated_storage_mb"`
	EstimatedSavingsMB     float64 `json:"estimated_savings_mb"`
	RawRetentionDays       int     `json:"raw_retention_days"`
	RawPersistenceEnabled  bool    `json:"raw_persistence_enabled"`
}

func dailyBucketView(b *storage.DailyBucket) DailyBucketView {
	return DailyBucketView{
		Date:        b.Key.Date.Format("2006-01-02"),
		CounterView: counterView(b),
	}
}

func hourlyBucketView(b *storage.HourlyBucket) HourlyBucketView {
	return HourlyBucketView{
		Date: b.Key.Date.Format("2006-01-02"),
		Hour: b.Key.Hour,
		CounterView: CounterView{
			EventCounts:      b.Counters.EventCounts,
			CountryBreakdown: b.Counters.CountryBreakdown,
			RegionBreakdown:  b.Counters.RegionBreakdown,
			CityBreakdown:    b.Counters.CityBreakdown,
			TotalEvents:      b.Counters.TotalEvents(),
			UniqueUsers:      b.Counters.UniqueUsers,
			RevenueTotal:     b.Counters.RevenueTotal.StringFixed(2),
			ConversionRate:   b.Counters.ConversionRate,
		},
	}
}

func counterView(b *storage.DailyBucket) CounterView {
	return CounterView{
		EventCounts:      b.Counters.EventCounts,
		CountryBreakdown: b.Counters.CountryBreakdown,
		RegionBreakdown:  b.Counters.RegionBreakdown,
		CityBreakdown:    b.Counters.CityBreakdown,
		TotalEvents:      b.Counters.TotalEvents(),
		UniqueUsers:      b.Counters.UniqueUsers,
		RevenueTotal:     b.Counters.RevenueTotal.StringFixed(2),
		ConversionRate:   b.Counters.ConversionRate,
	}
}

func rawEventView(e *storage.RawEvent) RawEventView {
	return RawEventView{
		ID:             e.ID,
		CampaignID:     e.CampaignID,
		EventName:      e.EventName,
		EventType:      e.EventType,
		UserID:         e.UserID,
		AnonymousID:    e.AnonymousID,
		SessionID:      e.SessionID,
		Properties:     e.Properties,
		Country:        e.Country,
		Region:         e.Region,
		City:           e.City,
		EventTimestamp: e.EventTimestamp,
		IngestedAt:     e.IngestedAt,
	}
}

// EntitlementError marks a read the tenant's plan does not include.
// Handlers translate it to HTTP 403.
type EntitlementError struct {
	Feature      string
	RequiredTier int
	ActualTier   int
}

func (e *EntitlementError) Error() string {
	return fmt.Sprintf("%s requires plan tier %d (tenant has tier %d)", e.Feature, e.RequiredTier, e.ActualTier)
}
