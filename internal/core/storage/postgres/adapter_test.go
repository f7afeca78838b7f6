package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/tidemark-io/tidemark/internal/core/plan"
	"github.com/tidemark-io/tidemark/internal/core/storage"
)

func TestAdapter_GetPlan(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		tenantID   string
		mockResult func(mock sqlmock.Sqlmock)
		assertions func(t *testing.T, p *plan.Plan, err error)
	}{
		{
			name:     "success parses price",
			tenantID: "tenant-1",
			mockResult: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(queryGetPlan)).
					WithArgs("tenant-1").
					WillReturnRows(sqlmock.NewRows(planRowColumns()).
						AddRow("tenant-1", "enterprise", 3, "real_time", 90, int64(10000000), int64(2000000), "499.00", now, now))
			},
			assertions: func(t *testing.T, p *plan.Plan, err error) {
				require.NoError(t, err)
				require.Equal(t, "enterprise", p.Name)
				require.Equal(t, plan.TierEnterprise, p.Tier)
				require.True(t, p.RawPersistenceEnabled())
				require.True(t, p.MonthlyPrice.Equal(decimal.NewFromInt(499)))
			},
		},
		{
			name:     "no row maps to ErrNotFound",
			tenantID: "tenant-missing",
			mockResult: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(queryGetPlan)).
					WithArgs("tenant-missing").
					WillReturnError(sql.ErrNoRows)
			},
			assertions: func(t *testing.T, p *plan.Plan, err error) {
				require.ErrorIs(t, err, storage.ErrNotFound)
				require.Nil(t, p)
			},
		},
		{
			name:     "bad price surfaces parse error",
			tenantID: "tenant-2",
			mockResult: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(queryGetPlan)).
					WithArgs("tenant-2").
					WillReturnRows(sqlmock.NewRows(planRowColumns()).
						AddRow("tenant-2", "basic", 1, "daily", 0, int64(0), int64(100000), "not-a-number", now, now))
			},
			assertions: func(t *testing.T, p *plan.Plan, err error) {
				require.Error(t, err)
				require.ErrorContains(t, err, "monthly_price_usd")
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			adapter, mock, db := newMockAdapter(t)
			defer db.Close()

			tc.mockResult(mock)

			p, err := adapter.GetPlan(context.Background(), tc.tenantID)
			tc.assertions(t, p, err)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAdapter_CreatePlan(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	p := plan.DefaultBasic("tenant-1")

	mock.ExpectExec(regexp.QuoteMeta(queryCreatePlan)).
		WithArgs("tenant-1", "basic", 1, "daily", 0, int64(0), int64(100000),
			p.MonthlyPrice, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, adapter.CreatePlan(context.Background(), p))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_CreatePlan_DuplicateMapsToErrDuplicate(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	p := plan.DefaultBasic("tenant-1")

	mock.ExpectExec(regexp.QuoteMeta(queryCreatePlan)).
		WithArgs("tenant-1", "basic", 1, "daily", 0, int64(0), int64(100000),
			p.MonthlyPrice, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := adapter.CreatePlan(context.Background(), p)
	require.ErrorIs(t, err, storage.ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_UpdatePlan_MissingMapsToErrNotFound(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	p := plan.DefaultBasic("tenant-unknown")

	mock.ExpectExec(regexp.QuoteMeta(queryUpdatePlan)).
		WithArgs("tenant-unknown", "basic", 1, "daily", 0, int64(0), int64(100000),
			p.MonthlyPrice, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := adapter.UpdatePlan(context.Background(), p)
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_SaveRawEvent(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	ts := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	e := &storage.RawEvent{
		ID:             "raw-1",
		TenantID:       "tenant-1",
		CampaignID:     "camp-1",
		EventName:      "purchase",
		EventType:      "track",
		UserID:         "user-1",
		Properties:     map[string]interface{}{"revenue": 49.99},
		Country:        "DE",
		EventTimestamp: ts,
		IngestedAt:     ts.Add(time.Second),
	}

	mock.ExpectExec(regexp.QuoteMeta(querySaveRawEvent)).
		WithArgs(
			"raw-1", "tenant-1", "camp-1", "purchase", "track",
			sql.NullString{String: "user-1", Valid: true},
			sql.NullString{},
			sql.NullString{},
			[]byte(`{"revenue":49.99}`),
			sql.NullString{String: "DE", Valid: true},
			sql.NullString{},
			sql.NullString{},
			sql.NullString{},
			ts,
			ts.Add(time.Second),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, adapter.SaveRawEvent(context.Background(), e))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_QueryRawEvents(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)
	ts := start.Add(9 * time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta(queryRawEventsRange)).
		WithArgs("tenant-1", "camp-1", start, end).
		WillReturnRows(sqlmock.NewRows(rawEventRowColumns()).
			AddRow("raw-1", "tenant-1", "camp-1", "page_view", "page",
				"user-1", nil, nil, []byte(`{"path":"/pricing"}`),
				"US", "CA", "San Francisco", nil, ts, ts.Add(time.Second)).
			AddRow("raw-2", "tenant-1", "camp-1", "purchase", "track",
				nil, "anon-9", nil, nil,
				nil, nil, nil, nil, ts.Add(time.Minute), ts.Add(time.Minute+time.Second)),
		).RowsWillBeClosed()

	events, err := adapter.QueryRawEvents(context.Background(), "tenant-1", "camp-1", start, end)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "page_view", events[0].EventName)
	require.Equal(t, "/pricing", events[0].Properties["path"])
	require.Equal(t, "San Francisco", events[0].City)
	require.Equal(t, "anon-9", events[1].AnonymousID)
	require.Empty(t, events[1].UserID)
	require.Nil(t, events[1].Properties)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_DeleteRawEventsBefore(t *testing.T) {
	adapter, mock, db := newMockAdapter(t)
	defer db.Close()

	cutoff := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta(queryDeleteRawEventsBefore)).
		WithArgs("tenant-1", cutoff).
		WillReturnResult(sqlmock.NewResult(0, 1234))

	deleted, err := adapter.DeleteRawEventsBefore(context.Background(), "tenant-1", cutoff)
	require.NoError(t, err)
	require.Equal(t, int64(1234), deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdapter_CloseReturnsDBCloseError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	dbCloseErr := errors.New("db close failed")

	adapter := &Adapter{
		db:                  db,
		stmtGetPlan:         mustPrepareClosableStmt(t, db, mock, queryGetPlan),
		stmtSaveRawEvent:    mustPrepareClosableStmt(t, db, mock, querySaveRawEvent),
		stmtRawEventsRange:  mustPrepareClosableStmt(t, db, mock, queryRawEventsRange),
		stmtRecentRawEvents: mustPrepareClosableStmt(t, db, mock, queryRecentRawEvents),
		stmtDeleteRawBefore: mustPrepareClosableStmt(t, db, mock, queryDeleteRawEventsBefore),
		stmtCountRawEvents:  mustPrepareClosableStmt(t, db, mock, queryCountRawEvents),
	}

	mock.ExpectClose().WillReturnError(dbCloseErr)

	err = adapter.Close()
	require.Error(t, err)
	require.ErrorContains(t, err, "failed to close database")
	require.ErrorIs(t, err, dbCloseErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

func newMockAdapter(t *testing.T) (*Adapter, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	adapter := &Adapter{
		db:                  db,
		stmtGetPlan:         mustPrepareStmt(t, db, mock, queryGetPlan),
		stmtSaveRawEvent:    mustPrepareStmt(t, db, mock, querySaveRawEvent),
		stmtRawEventsRange:  mustPrepareStmt(t, db, mock, queryRawEventsRange),
		stmtRecentRawEvents: mustPrepareStmt(t, db, mock, queryRecentRawEvents),
		stmtDeleteRawBefore: mustPrepareStmt(t, db, mock, queryDeleteRawEventsBefore),
		stmtCountRawEvents:  mustPrepareStmt(t, db, mock, queryCountRawEvents),
	}

	return adapter, mock, db
}

func mustPrepareStmt(t *testing.T, db *sql.DB, mock sqlmock.Sqlmock, query string) *sql.Stmt {
	t.Helper()

	mock.ExpectPrepare(regexp.QuoteMeta(query))
	stmt, err := db.Prepare(query)
	require.NoError(t, err)

	return stmt
}

func mustPrepareClosableStmt(t *testing.T, db *sql.DB, mock sqlmock.Sqlmock, query string) *sql.Stmt {
	t.Helper()

	mock.ExpectPrepare(regexp.QuoteMeta(query)).WillBeClosed()
	stmt, err := db.Prepare(query)
	require.NoError(t, err)

	return stmt
}

func planRowColumns() []string {
	return []string{
		"tenant_id",
		"plan_name",
		"plan_tier",
		"aggregation_frequency",
		"raw_retention_days",
		"max_raw_events_per_month",
		"max_aggregated_rows_per_month",
		"monthly_price_usd",
		"created_at",
		"updated_at",
	}
}

func rawEventRowColumns() []string {
	return []string{
		"id",
		"tenant_id",
		"campaign_id",
		"event_name",
		"event_type",
		"user_id",
		"anonymous_id",
		"session_id",
		"properties",
		"country",
		"region",
		"city",
		"ip_address",
		"event_timestamp",
		"ingested_at",
	}
}
