package storage

import (
	"context"
	"errors"
	"time"

	"github.com/tidemark-io/tidemark/internal/core/bucket"
	"github.com/tidemark-io/tidemark/internal/core/event"
	"github.com/tidemark-io/tidemark/internal/core/plan"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a unique constraint rejects a write
// (e.g. a tenant that already has a subscription plan).
var ErrDuplicate = errors.New("already exists")

// RawEvent is the full, ungrouped record of a single SDK event.
// Materialized only for tenants whose plan enables raw persistence.
type RawEvent struct {
	ID             string
	TenantID       string
	CampaignID     string
	EventName      string
	EventType      string
	UserID         string
	AnonymousID    string
	SessionID      string
	Properties     map[string]interface{}
	Country        string
	Region         string
	City           string
	IPAddress      string
	EventTimestamp time.Time
	IngestedAt     time.Time
}

// Normalized converts a stored raw event back to the canonical event shape,
// used when replaying history through the aggregation merge rules.
func (r *RawEvent) Normalized() *event.Normalized {
	return &event.Normalized{
		TenantID:    r.TenantID,
		CampaignID:  r.CampaignID,
		EventName:   r.EventName,
		EventType:   r.EventType,
		UserID:      r.UserID,
		AnonymousID: r.AnonymousID,
		SessionID:   r.SessionID,
		Properties:  r.Properties,
		Country:     r.Country,
		Region:      r.Region,
		City:        r.City,
		IPAddress:   r.IPAddress,
		Timestamp:   r.EventTimestamp,
	}
}

// DailyBucket is a stored daily aggregate row.
type DailyBucket struct {
	Key       bucket.DailyKey
	Counters  bucket.Counters
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HourlyBucket is a stored hourly aggregate row.
type HourlyBucket struct {
	Key       bucket.HourlyKey
	Counters  bucket.Counters
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PlanStore persists subscription plans. Plans are never hard-deleted;
// billing history survives tier changes.
type PlanStore interface {
	// GetPlan returns the tenant's current plan, or ErrNotFound.
	GetPlan(ctx context.Context, tenantID string) (*plan.Plan, error)

	// CreatePlan inserts a plan for a tenant that has none.
	// Returns ErrDuplicate if the tenant already has a plan.
	CreatePlan(ctx context.Context, p *plan.Plan) error

	// UpdatePlan overwrites the tenant's existing plan fields.
	// Returns ErrNotFound if the tenant has no plan.
	UpdatePlan(ctx context.Context, p *plan.Plan) error

	// ListTenantIDs returns all tenants that have a subscription plan.
	// Used by the retention scheduler to iterate sweep targets.
	ListTenantIDs(ctx context.Context) ([]string, error)
}

// RawEventStore persists and retrieves raw event rows.
type RawEventStore interface {
	// SaveRawEvent inserts one raw event row.
	SaveRawEvent(ctx context.Context, e *RawEvent) error

	// QueryRawEvents fetches all raw events for a tenant/campaign within
	// [start, end) ordered by event_timestamp ASC. Used by re-aggregation.
	QueryRawEvents(ctx context.Context, tenantID, campaignID string, start, end time.Time) ([]*RawEvent, error)

	// QueryRecentRawEvents fetches up to limit raw events ordered by
	// event_timestamp DESC. Used by the raw analytics read path.
	QueryRecentRawEvents(ctx context.Context, tenantID, campaignID string, start, end time.Time, limit int) ([]*RawEvent, error)

	// DeleteRawEventsBefore removes all raw events for a tenant older than
	// cutoff and reports the number deleted. Irreversible.
	DeleteRawEventsBefore(ctx context.Context, tenantID string, cutoff time.Time) (int64, error)

	// CountRawEvents returns the tenant's raw event row count.
	CountRawEvents(ctx context.Context, tenantID string) (int64, error)
}

// BucketStore persists aggregate buckets.
//
// Apply* run the read-modify-write inside a single transaction with the
// bucket row locked (SELECT ... FOR UPDATE), so concurrent events into the
// same bucket serialize instead of clobbering each other's JSONB counters.
// Replace* overwrite all counters (the full-rebuild path).
type BucketStore interface {
	ApplyDaily(ctx context.Context, key bucket.DailyKey, apply func(c *bucket.Counters)) error
	ApplyHourly(ctx context.Context, key bucket.HourlyKey, apply func(c *bucket.Counters)) error

	ReplaceDaily(ctx context.Context, key bucket.DailyKey, c *bucket.Counters) error
	ReplaceHourly(ctx context.Context, key bucket.HourlyKey, c *bucket.Counters) error

	// QueryDaily fetches daily buckets for [start, end] inclusive,
	// ordered by date ASC.
	QueryDaily(ctx context.Context, tenantID, campaignID string, start, end time.Time) ([]*DailyBucket, error)

	// QueryHourly fetches hourly buckets for [start, end] inclusive,
	// ordered by date, hour ASC.
	QueryHourly(ctx context.Context, tenantID, campaignID string, start, end time.Time) ([]*HourlyBucket, error)

	// CountBuckets returns the tenant's daily and hourly bucket row counts.
	// Used by the storage-savings report.
	CountBuckets(ctx context.Context, tenantID string) (daily int64, hourly int64, err error)
}

// SightingStore tracks the first sighting of an actor per hour bucket.
// Backs the history-checked unique-user estimator with an atomic
// insert-if-absent primitive instead of a count-then-increment race.
type SightingStore interface {
	// RecordSighting registers the actor for the hour and reports whether
	// this was the first sighting.
	RecordSighting(ctx context.Context, key bucket.HourlyKey, actorID string) (first bool, err error)

	// PruneSightingsBefore deletes sighting rows for dates older than cutoff.
	// Sightings are an operational dedup index, not analytics data.
	PruneSightingsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
