package plan

import (
	"time"

	"github.com/shopspring/decimal"
)

// Subscription tiers. Ordering is load-bearing: feature gates unlock
// monotonically with the tier ordinal.
const (
	TierBasic      = 1
	TierPro        = 2
	TierEnterprise = 3
)

// Aggregation frequencies. "hourly" and "real_time" both imply hourly buckets;
// "real_time" additionally marks Enterprise-grade processing in billing copy.
const (
	FrequencyDaily    = "daily"
	FrequencyHourly   = "hourly"
	FrequencyRealTime = "real_time"
)

// Plan is a tenant's effective subscription policy. Resolved once per
// operation and treated as an immutable snapshot downstream.
type Plan struct {
	TenantID                  string          `json:"tenant_id"`
	Name                      string          `json:"plan_name"`
	Tier                      int             `json:"plan_tier"`
	AggregationFrequency      string          `json:"aggregation_frequency"`
	RawRetentionDays          int             `json:"raw_data_retention_days"`
	MaxRawEventsPerMonth      int64           `json:"max_raw_events_per_month"`
	MaxAggregatedRowsPerMonth int64           `json:"max_aggregated_rows_per_month"`
	MonthlyPrice              decimal.Decimal `json:"monthly_price_usd"`
	CreatedAt                 time.Time       `json:"created_at"`
	UpdatedAt                 time.Time       `json:"updated_at"`
}

// RawPersistenceEnabled reports whether full raw event records are stored.
// Enterprise-only: this is the storage cost the tiering model exists to gate.
func (p *Plan) RawPersistenceEnabled() bool {
	return p.Tier >= TierEnterprise
}

// HourlyBucketsEnabled reports whether events roll into hourly buckets in
// addition to the daily bucket every tenant gets.
func (p *Plan) HourlyBucketsEnabled() bool {
	return p.AggregationFrequency == FrequencyHourly || p.AggregationFrequency == FrequencyRealTime
}

// DedupUniqueUsers reports whether the per-hour first-sighting dedup path is
// used for unique user counting. Tenants without it get the blind-increment
// heuristic, which over-counts.
func (p *Plan) DedupUniqueUsers() bool {
	return p.HourlyBucketsEnabled()
}

// DefaultBasic returns the hard-coded fallback plan used when a tenant has no
// subscription row. Ingestion must never fail merely because billing state is
// absent.
func DefaultBasic(tenantID string) *Plan {
	return &Plan{
		TenantID:                  tenantID,
		Name:                      "basic",
		Tier:                      TierBasic,
		AggregationFrequency:      FrequencyDaily,
		RawRetentionDays:          0,
		MaxRawEventsPerMonth:      0,
		MaxAggregatedRowsPerMonth: 100000,
		MonthlyPrice:              decimal.Zero,
	}
}
