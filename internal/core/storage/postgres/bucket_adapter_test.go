package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/tidemark-io/tidemark/internal/core/bucket"
)

func counterRowColumns() []string {
	return []string{
		"event_counts",
		"country_breakdown",
		"region_breakdown",
		"city_breakdown",
		"unique_users",
		"revenue_total",
		"conversion_rate",
	}
}

func TestBucketAdapter_ApplyDaily(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	adapter := NewBucketAdapter(db)
	key := bucket.DailyKey{
		TenantID:   "tenant-1",
		CampaignID: "camp-1",
		Date:       time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(queryInsertDailyBucket)).
		WithArgs(key.TenantID, key.CampaignID, key.Date, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(querySelectDailyForUpdate)).
		WithArgs(key.TenantID, key.CampaignID, key.Date).
		WillReturnRows(sqlmock.NewRows(counterRowColumns()).
			AddRow([]byte(`{"page_view":4}`), []byte(`{"US":4}`), []byte(`{}`), []byte(`{}`),
				int64(2), "0.00", 0.0))
	mock.ExpectExec(regexp.QuoteMeta(queryUpdateDailyBucket)).
		WithArgs(key.TenantID, key.CampaignID, key.Date,
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			int64(3), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = adapter.ApplyDaily(context.Background(), key, func(c *bucket.Counters) {
		require.Equal(t, int64(4), c.EventCounts["page_view"])
		require.Equal(t, int64(2), c.UniqueUsers)
		c.EventCounts["page_view"]++
		c.UniqueUsers++
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBucketAdapter_ApplyDaily_RollsBackOnUpdateFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	adapter := NewBucketAdapter(db)
	key := bucket.DailyKey{
		TenantID:   "tenant-1",
		CampaignID: "camp-1",
		Date:       time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	updateErr := errors.New("connection reset")

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(queryInsertDailyBucket)).
		WithArgs(key.TenantID, key.CampaignID, key.Date, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(querySelectDailyForUpdate)).
		WithArgs(key.TenantID, key.CampaignID, key.Date).
		WillReturnRows(sqlmock.NewRows(counterRowColumns()).
			AddRow([]byte(`{}`), []byte(`{}`), []byte(`{}`), []byte(`{}`),
				int64(0), "0.00", 0.0))
	mock.ExpectExec(regexp.QuoteMeta(queryUpdateDailyBucket)).
		WillReturnError(updateErr)
	mock.ExpectRollback()

	err = adapter.ApplyDaily(context.Background(), key, func(c *bucket.Counters) {
		c.EventCounts["signup"]++
	})
	require.ErrorIs(t, err, updateErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBucketAdapter_ApplyHourly(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	adapter := NewBucketAdapter(db)
	key := bucket.HourlyKey{
		TenantID:   "tenant-1",
		CampaignID: "camp-1",
		Date:       time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Hour:       14,
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(queryInsertHourlyBucket)).
		WithArgs(key.TenantID, key.CampaignID, key.Date, key.Hour, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(querySelectHourlyForUpdate)).
		WithArgs(key.TenantID, key.CampaignID, key.Date, key.Hour).
		WillReturnRows(sqlmock.NewRows(counterRowColumns()).
			AddRow([]byte(`{}`), []byte(`{}`), []byte(`{}`), []byte(`{}`),
				int64(0), "0.00", 0.0))
	mock.ExpectExec(regexp.QuoteMeta(queryUpdateHourlyBucket)).
		WithArgs(key.TenantID, key.CampaignID, key.Date, key.Hour,
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			int64(1), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = adapter.ApplyHourly(context.Background(), key, func(c *bucket.Counters) {
		c.EventCounts["purchase"]++
		c.UniqueUsers++
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBucketAdapter_ReplaceDaily(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	adapter := NewBucketAdapter(db)
	key := bucket.DailyKey{
		TenantID:   "tenant-1",
		CampaignID: "camp-1",
		Date:       time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
	}

	c := bucket.NewCounters()
	c.EventCounts["page_view"] = 10
	c.UniqueUsers = 4

	mock.ExpectExec(regexp.QuoteMeta(queryReplaceDailyBucket)).
		WithArgs(key.TenantID, key.CampaignID, key.Date,
			[]byte(`{"page_view":10}`), []byte(`{}`), []byte(`{}`), []byte(`{}`),
			int64(4), c.RevenueTotal, 0.0, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, adapter.ReplaceDaily(context.Background(), key, c))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBucketAdapter_QueryDaily(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	adapter := NewBucketAdapter(db)
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 2)
	now := start.Add(26 * time.Hour)

	cols := []string{
		"tenant_id", "campaign_id", "analytics_date",
		"event_counts", "country_breakdown", "region_breakdown", "city_breakdown",
		"unique_users", "revenue_total", "conversion_rate",
		"created_at", "updated_at",
	}

	mock.ExpectQuery(regexp.QuoteMeta(queryDailyRange)).
		WithArgs("tenant-1", "camp-1", start, end).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("tenant-1", "camp-1", start,
				[]byte(`{"page_view":8,"purchase":2}`), []byte(`{"US":10}`), []byte(`{}`), []byte(`{}`),
				int64(5), "149.98", 0.2, now, now),
		).RowsWillBeClosed()

	buckets, err := adapter.QueryDaily(context.Background(), "tenant-1", "camp-1", start, end)
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	require.Equal(t, int64(2), buckets[0].Counters.EventCounts["purchase"])
	require.Equal(t, int64(5), buckets[0].Counters.UniqueUsers)
	require.Equal(t, "149.98", buckets[0].Counters.RevenueTotal.StringFixed(2))
	require.InDelta(t, 0.2, buckets[0].Counters.ConversionRate, 1e-9)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSightingAdapter_RecordSighting(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	adapter := NewSightingAdapter(db)
	key := bucket.HourlyKey{
		TenantID:   "tenant-1",
		CampaignID: "camp-1",
		Date:       time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Hour:       9,
	}

	// First sighting inserts a row.
	mock.ExpectExec(regexp.QuoteMeta(queryRecordSighting)).
		WithArgs(key.TenantID, key.CampaignID, key.Date, key.Hour, "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	first, err := adapter.RecordSighting(context.Background(), key, "user-1")
	require.NoError(t, err)
	require.True(t, first)

	// Repeat sighting conflicts away.
	mock.ExpectExec(regexp.QuoteMeta(queryRecordSighting)).
		WithArgs(key.TenantID, key.CampaignID, key.Date, key.Hour, "user-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	first, err = adapter.RecordSighting(context.Background(), key, "user-1")
	require.NoError(t, err)
	require.False(t, first)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSightingAdapter_PruneSightingsBefore(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	adapter := NewSightingAdapter(db)
	cutoff := time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta(queryPruneSightings)).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 77))

	pruned, err := adapter.PruneSightingsBefore(context.Background(), cutoff)
	require.NoError(t, err)
	require.Equal(t, int64(77), pruned)
	require.NoError(t, mock.ExpectationsWereMet())
}
