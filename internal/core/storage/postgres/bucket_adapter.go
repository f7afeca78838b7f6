package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/tidemark-io/tidemark/internal/core/bucket"
	"github.com/tidemark-io/tidemark/internal/core/storage"
)

// BucketAdapter implements storage.BucketStore against the daily and hourly
// analytics tables. It shares the main adapter's connection pool.
type BucketAdapter struct {
	db *sql.DB
}

// NewBucketAdapter wraps an existing connection pool.
func NewBucketAdapter(db *sql.DB) *BucketAdapter {
	return &BucketAdapter{db: db}
}

// ApplyDaily runs a locked read-modify-write against the tenant's daily
// bucket. The row is created first if absent, then read FOR UPDATE so
// concurrent appliers to the same bucket serialize.
func (b *BucketAdapter) ApplyDaily(ctx context.Context, key bucket.DailyKey, apply func(c *bucket.Counters)) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin daily bucket tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, queryInsertDailyBucket,
		key.TenantID, key.CampaignID, key.Date, now); err != nil {
		return fmt.Errorf("failed to ensure daily bucket: %w", err)
	}

	row := tx.QueryRowContext(ctx, querySelectDailyForUpdate,
		key.TenantID, key.CampaignID, key.Date)
	counters, err := scanCounters(row)
	if err != nil {
		return fmt.Errorf("failed to read daily bucket: %w", err)
	}

	apply(counters)

	eventCounts, countries, regions, cities, err := marshalCounters(counters)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, queryUpdateDailyBucket,
		key.TenantID, key.CampaignID, key.Date,
		eventCounts, countries, regions, cities,
		counters.UniqueUsers, counters.RevenueTotal, counters.ConversionRate,
		now,
	); err != nil {
		return fmt.Errorf("failed to update daily bucket: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit daily bucket: %w", err)
	}
	return nil
}

// ApplyHourly is the hourly counterpart of ApplyDaily.
func (b *BucketAdapter) ApplyHourly(ctx context.Context, key bucket.HourlyKey, apply func(c *bucket.Counters)) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin hourly bucket tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, queryInsertHourlyBucket,
		key.TenantID, key.CampaignID, key.Date, key.Hour, now); err != nil {
		return fmt.Errorf("failed to ensure hourly bucket: %w", err)
	}

	row := tx.QueryRowContext(ctx, querySelectHourlyForUpdate,
		key.TenantID, key.CampaignID, key.Date, key.Hour)
	counters, err := scanCounters(row)
	if err != nil {
		return fmt.Errorf("failed to read hourly bucket: %w", err)
	}

	apply(counters)

	eventCounts, countries, regions, cities, err := marshalCounters(counters)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, queryUpdateHourlyBucket,
		key.TenantID, key.CampaignID, key.Date, key.Hour,
		eventCounts, countries, regions, cities,
		counters.UniqueUsers, counters.RevenueTotal, counters.ConversionRate,
		now,
	); err != nil {
		return fmt.Errorf("failed to update hourly bucket: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit hourly bucket: %w", err)
	}
	return nil
}

// ReplaceDaily overwrites all counters of a daily bucket, creating the row
// if needed. Used by full rebuilds, where replayed totals supersede whatever
// the live path accumulated.
func (b *BucketAdapter) ReplaceDaily(ctx context.Context, key bucket.DailyKey, c *bucket.Counters) error {
	eventCounts, countries, regions, cities, err := marshalCounters(c)
	if err != nil {
		return err
	}

	_, err = b.db.ExecContext(ctx, queryReplaceDailyBucket,
		key.TenantID, key.CampaignID, key.Date,
		eventCounts, countries, regions, cities,
		c.UniqueUsers, c.RevenueTotal, c.ConversionRate,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to replace daily bucket: %w", err)
	}

	slog.Debug("[Postgres] Replaced daily bucket",
		"tenant_id", key.TenantID,
		"campaign_id", key.CampaignID,
		"date", key.Date.Format("2006-01-02"))
	return nil
}

// ReplaceHourly overwrites all counters of an hourly bucket.
func (b *BucketAdapter) ReplaceHourly(ctx context.Context, key bucket.HourlyKey, c *bucket.Counters) error {
	eventCounts, countries, regions, cities, err := marshalCounters(c)
	if err != nil {
		return err
	}

	_, err = b.db.ExecContext(ctx, queryReplaceHourlyBucket,
		key.TenantID, key.CampaignID, key.Date, key.Hour,
		eventCounts, countries, regions, cities,
		c.UniqueUsers, c.RevenueTotal, c.ConversionRate,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to replace hourly bucket: %w", err)
	}
	return nil
}

// QueryDaily fetches daily buckets for [start, end] inclusive, oldest first.
func (b *BucketAdapter) QueryDaily(ctx context.Context, tenantID, campaignID string, start, end time.Time) ([]*storage.DailyBucket, error) {
	rows, err := b.db.QueryContext(ctx, queryDailyRange, tenantID, campaignID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily buckets: %w", err)
	}
	defer rows.Close()

	var buckets []*storage.DailyBucket
	for rows.Next() {
		db, err := scanDailyBucketRow(rows)
		if err != nil {
			return nil, err
		}
		buckets = append(buckets, db)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily buckets: %w", err)
	}
	return buckets, nil
}

// QueryHourly fetches hourly buckets for [start, end] inclusive, oldest first.
func (b *BucketAdapter) QueryHourly(ctx context.Context, tenantID, campaignID string, start, end time.Time) ([]*storage.HourlyBucket, error) {
	rows, err := b.db.QueryContext(ctx, queryHourlyRange, tenantID, campaignID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query hourly buckets: %w", err)
	}
	defer rows.Close()

	var buckets []*storage.HourlyBucket
	for rows.Next() {
		hb, err := scanHourlyBucketRow(rows)
		if err != nil {
			return nil, err
		}
		buckets = append(buckets, hb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating hourly buckets: %w", err)
	}
	return buckets, nil
}

// CountBuckets returns the tenant's daily and hourly bucket row counts.
func (b *BucketAdapter) CountBuckets(ctx context.Context, tenantID string) (int64, int64, error) {
	var daily, hourly int64
	if err := b.db.QueryRowContext(ctx, queryCountDailyBuckets, tenantID).Scan(&daily); err != nil {
		return 0, 0, fmt.Errorf("failed to count daily buckets: %w", err)
	}
	if err := b.db.QueryRowContext(ctx, queryCountHourlyBuckets, tenantID).Scan(&hourly); err != nil {
		return 0, 0, fmt.Errorf("failed to count hourly buckets: %w", err)
	}
	return daily, hourly, nil
}

func scanDailyBucketRow(rows *sql.Rows) (*storage.DailyBucket, error) {
	var (
		db              storage.DailyBucket
		eventCountsJSON []byte
		countriesJSON   []byte
		regionsJSON     []byte
		citiesJSON      []byte
		revenueStr      string
	)

	if err := rows.Scan(
		&db.Key.TenantID,
		&db.Key.CampaignID,
		&db.Key.Date,
		&eventCountsJSON,
		&countriesJSON,
		&regionsJSON,
		&citiesJSON,
		&db.Counters.UniqueUsers,
		&revenueStr,
		&db.Counters.ConversionRate,
		&db.CreatedAt,
		&db.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to scan daily bucket row: %w", err)
	}

	if err := fillCounterMaps(&db.Counters, eventCountsJSON, countriesJSON, regionsJSON, citiesJSON, revenueStr); err != nil {
		return nil, err
	}
	return &db, nil
}

func scanHourlyBucketRow(rows *sql.Rows) (*storage.HourlyBucket, error) {
	var (
		hb              storage.HourlyBucket
		eventCountsJSON []byte
		countriesJSON   []byte
		regionsJSON     []byte
		citiesJSON      []byte
		revenueStr      string
	)

	if err := rows.Scan(
		&hb.Key.TenantID,
		&hb.Key.CampaignID,
		&hb.Key.Date,
		&hb.Key.Hour,
		&eventCountsJSON,
		&countriesJSON,
		&regionsJSON,
		&citiesJSON,
		&hb.Counters.UniqueUsers,
		&revenueStr,
		&hb.Counters.ConversionRate,
		&hb.CreatedAt,
		&hb.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to scan hourly bucket row: %w", err)
	}

	if err := fillCounterMaps(&hb.Counters, eventCountsJSON, countriesJSON, regionsJSON, citiesJSON, revenueStr); err != nil {
		return nil, err
	}
	return &hb, nil
}
