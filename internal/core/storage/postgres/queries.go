package postgres

// SQL queries for the tiered analytics storage layer.

const (
	queryGetPlan = `
		SELECT
			tenant_id, plan_name, plan_tier, aggregation_frequency,
			raw_retention_days, max_raw_events_per_month,
			max_aggregated_rows_per_month, monthly_price_usd,
			created_at, updated_at
		FROM subscription_plans
		WHERE tenant_id = $1
	`

	// queryCreatePlan inserts a tenant's plan.
	// ON CONFLICT DO NOTHING signals a duplicate via zero rows affected.
	queryCreatePlan = `
		INSERT INTO subscription_plans (
			tenant_id, plan_name, plan_tier, aggregation_frequency,
			raw_retention_days, max_raw_events_per_month,
			max_aggregated_rows_per_month, monthly_price_usd,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (tenant_id) DO NOTHING
	`

	queryUpdatePlan = `
		UPDATE subscription_plans
		SET plan_name = $2,
			plan_tier = $3,
			aggregation_frequency = $4,
			raw_retention_days = $5,
			max_raw_events_per_month = $6,
			max_aggregated_rows_per_month = $7,
			monthly_price_usd = $8,
			updated_at = $9
		WHERE tenant_id = $1
	`

	queryListTenantIDs = `
		SELECT tenant_id FROM subscription_plans ORDER BY tenant_id ASC
	`

	querySaveRawEvent = `
		INSERT INTO raw_events (
			id, tenant_id, campaign_id, event_name, event_type,
			user_id, anonymous_id, session_id, properties,
			country, region, city, ip_address,
			event_timestamp, ingested_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	// queryRawEventsRange fetches the re-aggregation input set:
	// [start, end) in chronological order.
	queryRawEventsRange = `
		SELECT
			id, tenant_id, campaign_id, event_name, event_type,
			user_id, anonymous_id, session_id, properties,
			country, region, city, ip_address,
			event_timestamp, ingested_at
		FROM raw_events
		WHERE tenant_id = $1
		  AND campaign_id = $2
		  AND event_timestamp >= $3
		  AND event_timestamp < $4
		ORDER BY event_timestamp ASC
	`

	// queryRecentRawEvents serves the Enterprise raw read path, newest first.
	queryRecentRawEvents = `
		SELECT
			id, tenant_id, campaign_id, event_name, event_type,
			user_id, anonymous_id, session_id, properties,
			country, region, city, ip_address,
			event_timestamp, ingested_at
		FROM raw_events
		WHERE tenant_id = $1
		  AND campaign_id = $2
		  AND event_timestamp >= $3
		  AND event_timestamp < $4
		ORDER BY event_timestamp DESC
		LIMIT $5
	`

	queryDeleteRawEventsBefore = `
		DELETE FROM raw_events
		WHERE tenant_id = $1
		  AND event_timestamp < $2
	`

	queryCountRawEvents = `
		SELECT COUNT(*) FROM raw_events WHERE tenant_id = $1
	`
)

// Bucket queries. Apply* runs insert-if-absent, then a locked read, then an
// update, all in one transaction. Replace* is a plain overwrite upsert used
// by the full-rebuild path.
const (
	queryInsertDailyBucket = `
		INSERT INTO campaign_analytics_daily (
			tenant_id, campaign_id, analytics_date,
			event_counts, country_breakdown, region_breakdown, city_breakdown,
			unique_users, revenue_total, conversion_rate,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, '{}', '{}', '{}', '{}', 0, 0, 0, $4, $4)
		ON CONFLICT (tenant_id, campaign_id, analytics_date) DO NOTHING
	`

	querySelectDailyForUpdate = `
		SELECT
			event_counts, country_breakdown, region_breakdown, city_breakdown,
			unique_users, revenue_total, conversion_rate
		FROM campaign_analytics_daily
		WHERE tenant_id = $1 AND campaign_id = $2 AND analytics_date = $3
		FOR UPDATE
	`

	queryUpdateDailyBucket = `
		UPDATE campaign_analytics_daily
		SET event_counts = $4,
			country_breakdown = $5,
			region_breakdown = $6,
			city_breakdown = $7,
			unique_users = $8,
			revenue_total = $9,
			conversion_rate = $10,
			updated_at = $11
		WHERE tenant_id = $1 AND campaign_id = $2 AND analytics_date = $3
	`

	queryReplaceDailyBucket = `
		INSERT INTO campaign_analytics_daily (
			tenant_id, campaign_id, analytics_date,
			event_counts, country_breakdown, region_breakdown, city_breakdown,
			unique_users, revenue_total, conversion_rate,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		ON CONFLICT (tenant_id, campaign_id, analytics_date)
		DO UPDATE SET
			event_counts = EXCLUDED.event_counts,
			country_breakdown = EXCLUDED.country_breakdown,
			region_breakdown = EXCLUDED.region_breakdown,
			city_breakdown = EXCLUDED.city_breakdown,
			unique_users = EXCLUDED.unique_users,
			revenue_total = EXCLUDED.revenue_total,
			conversion_rate = EXCLUDED.conversion_rate,
			updated_at = EXCLUDED.updated_at
	`

	queryDailyRange = `
		SELECT
			tenant_id, campaign_id, analytics_date,
			event_counts, country_breakdown, region_breakdown, city_breakdown,
			unique_users, revenue_total, conversion_rate,
			created_at, updated_at
		FROM campaign_analytics_daily
		WHERE tenant_id = $1
		  AND campaign_id = $2
		  AND analytics_date >= $3
		  AND analytics_date <= $4
		ORDER BY analytics_date ASC
	`

	queryInsertHourlyBucket = `
		INSERT INTO campaign_analytics_hourly (
			tenant_id, campaign_id, analytics_date, hour,
			event_counts, country_breakdown, region_breakdown, city_breakdown,
			unique_users, revenue_total, conversion_rate,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, '{}', '{}', '{}', '{}', 0, 0, 0, $5, $5)
		ON CONFLICT (tenant_id, campaign_id, analytics_date, hour) DO NOTHING
	`

	querySelectHourlyForUpdate = `
		SELECT
			event_counts, country_breakdown, region_breakdown, city_breakdown,
			unique_users, revenue_total, conversion_rate
		FROM campaign_analytics_hourly
		WHERE tenant_id = $1 AND campaign_id = $2 AND analytics_date = $3 AND hour = $4
		FOR UPDATE
	`

	queryUpdateHourlyBucket = `
		UPDATE campaign_analytics_hourly
		SET event_counts = $5,
			country_breakdown = $6,
			region_breakdown = $7,
			city_breakdown = $8,
			unique_users = $9,
			revenue_total = $10,
			conversion_rate = $11,
			updated_at = $12
		WHERE tenant_id = $1 AND campaign_id = $2 AND analytics_date = $3 AND hour = $4
	`

	queryReplaceHourlyBucket = `
		INSERT INTO campaign_analytics_hourly (
			tenant_id, campaign_id, analytics_date, hour,
			event_counts, country_breakdown, region_breakdown, city_breakdown,
			unique_users, revenue_total, conversion_rate,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
		ON CONFLICT (tenant_id, campaign_id, analytics_date, hour)
		DO UPDATE SET
			event_counts = EXCLUDED.event_counts,
			country_breakdown = EXCLUDED.country_breakdown,
			region_breakdown = EXCLUDED.region_breakdown,
			city_breakdown = EXCLUDED.city_breakdown,
			unique_users = EXCLUDED.unique_users,
			revenue_total = EXCLUDED.revenue_total,
			conversion_rate = EXCLUDED.conversion_rate,
			updated_at = EXCLUDED.updated_at
	`

	queryHourlyRange = `
		SELECT
			tenant_id, campaign_id, analytics_date, hour,
			event_counts, country_breakdown, region_breakdown, city_breakdown,
			unique_users, revenue_total, conversion_rate,
			created_at, updated_at
		FROM campaign_analytics_hourly
		WHERE tenant_id = $1
		  AND campaign_id = $2
		  AND analytics_date >= $3
		  AND analytics_date <= $4
		ORDER BY analytics_date ASC, hour ASC
	`

	queryCountDailyBuckets = `
		SELECT COUNT(*) FROM campaign_analytics_daily WHERE tenant_id = $1
	`

	queryCountHourlyBuckets = `
		SELECT COUNT(*) FROM campaign_analytics_hourly WHERE tenant_id = $1
	`
)

// Sighting queries. The insert-if-absent result (rows affected) is the
// atomic first-sighting test used by the unique-user dedup path.
const (
	queryRecordSighting = `
		INSERT INTO hourly_actor_sightings (
			tenant_id, campaign_id, analytics_date, hour, actor_id
		)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_id, campaign_id, analytics_date, hour, actor_id) DO NOTHING
	`

	queryPruneSightings = `
		DELETE FROM hourly_actor_sightings WHERE analytics_date < $1
	`
)
