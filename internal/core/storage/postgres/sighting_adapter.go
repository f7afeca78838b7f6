package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tidemark-io/tidemark/internal/core/bucket"
)

// SightingAdapter implements storage.SightingStore. A sighting row exists
// once an actor has been seen in an hour bucket; the insert outcome is the
// atomic first-sighting test.
type SightingAdapter struct {
	db *sql.DB
}

// NewSightingAdapter wraps an existing connection pool.
func NewSightingAdapter(db *sql.DB) *SightingAdapter {
	return &SightingAdapter{db: db}
}

// RecordSighting registers the actor for the hour bucket and reports whether
// this insert created the row. Safe under concurrent callers: the unique
// constraint guarantees exactly one caller observes first == true.
func (s *SightingAdapter) RecordSighting(ctx context.Context, key bucket.HourlyKey, actorID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, queryRecordSighting,
		key.TenantID, key.CampaignID, key.Date, key.Hour, actorID)
	if err != nil {
		return false, fmt.Errorf("failed to record sighting: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check sighting insert: %w", err)
	}
	return affected == 1, nil
}

// PruneSightingsBefore deletes sighting rows dated before cutoff.
func (s *SightingAdapter) PruneSightingsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, queryPruneSightings, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune sightings: %w", err)
	}

	pruned, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned sightings: %w", err)
	}
	return pruned, nil
}
