package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tidemark-io/tidemark/internal/core/bucket"
	"github.com/tidemark-io/tidemark/internal/core/storage"
)

// marshalCountMap marshals a label->count histogram to JSONB bytes.
// Nil maps produce "{}" so bucket columns never go NULL.
func marshalCountMap(m map[string]int64) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal count map: %w", err)
	}
	return data, nil
}

// unmarshalCountMap parses JSONB bytes into a histogram; empty input yields
// an initialized empty map.
func unmarshalCountMap(data []byte) (map[string]int64, error) {
	if len(data) == 0 {
		return make(map[string]int64), nil
	}
	var m map[string]int64
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal count map: %w", err)
	}
	if m == nil {
		m = make(map[string]int64)
	}
	return m, nil
}

// marshalCounters marshals the four histogram maps of a bucket for binding
// into an insert/update statement.
func marshalCounters(c *bucket.Counters) (eventCounts, countries, regions, cities []byte, err error) {
	if eventCounts, err = marshalCountMap(c.EventCounts); err != nil {
		return nil, nil, nil, nil, err
	}
	if countries, err = marshalCountMap(c.CountryBreakdown); err != nil {
		return nil, nil, nil, nil, err
	}
	if regions, err = marshalCountMap(c.RegionBreakdown); err != nil {
		return nil, nil, nil, nil, err
	}
	if cities, err = marshalCountMap(c.CityBreakdown); err != nil {
		return nil, nil, nil, nil, err
	}
	return eventCounts, countries, regions, cities, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanCounters scans the seven counter columns of a bucket row.
// revenue_total is NUMERIC and scanned as a string for exact decimal parsing.
func scanCounters(row scanner) (*bucket.Counters, error) {
	var (
		eventCountsJSON []byte
		countriesJSON   []byte
		regionsJSON     []byte
		citiesJSON      []byte
		uniqueUsers     int64
		revenueStr      string
		conversionRate  float64
	)

	if err := row.Scan(
		&eventCountsJSON,
		&countriesJSON,
		&regionsJSON,
		&citiesJSON,
		&uniqueUsers,
		&revenueStr,
		&conversionRate,
	); err != nil {
		return nil, err
	}

	c := &bucket.Counters{
		UniqueUsers:    uniqueUsers,
		ConversionRate: conversionRate,
	}

	var err error
	if c.EventCounts, err = unmarshalCountMap(eventCountsJSON); err != nil {
		return nil, err
	}
	if c.CountryBreakdown, err = unmarshalCountMap(countriesJSON); err != nil {
		return nil, err
	}
	if c.RegionBreakdown, err = unmarshalCountMap(regionsJSON); err != nil {
		return nil, err
	}
	if c.CityBreakdown, err = unmarshalCountMap(citiesJSON); err != nil {
		return nil, err
	}

	if c.RevenueTotal, err = decimal.NewFromString(revenueStr); err != nil {
		return nil, fmt.Errorf("failed to parse revenue_total %q: %w", revenueStr, err)
	}

	return c, nil
}

// fillCounterMaps parses the JSONB histogram columns and the revenue string
// into an already partially scanned Counters value.
func fillCounterMaps(c *bucket.Counters, eventCountsJSON, countriesJSON, regionsJSON, citiesJSON []byte, revenueStr string) error {
	var err error
	if c.EventCounts, err = unmarshalCountMap(eventCountsJSON); err != nil {
		return err
	}
	if c.CountryBreakdown, err = unmarshalCountMap(countriesJSON); err != nil {
		return err
	}
	if c.RegionBreakdown, err = unmarshalCountMap(regionsJSON); err != nil {
		return err
	}
	if c.CityBreakdown, err = unmarshalCountMap(citiesJSON); err != nil {
		return err
	}
	if c.RevenueTotal, err = decimal.NewFromString(revenueStr); err != nil {
		return fmt.Errorf("failed to parse revenue_total %q: %w", revenueStr, err)
	}
	return nil
}

// marshalProperties marshals a raw event's free-form properties.
// Nil produces SQL NULL rather than the JSON string "null".
func marshalProperties(props map[string]interface{}) ([]byte, error) {
	if props == nil {
		return nil, nil
	}
	data, err := json.Marshal(props)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal properties: %w", err)
	}
	return data, nil
}

// scanRawEventRow scans one raw_events row.
// Compatible with both sql.Row (single) and sql.Rows (multiple).
func scanRawEventRow(row scanner) (*storage.RawEvent, error) {
	var (
		e              storage.RawEvent
		userID         sql.NullString
		anonymousID    sql.NullString
		sessionID      sql.NullString
		propertiesJSON []byte
		country        sql.NullString
		region         sql.NullString
		city           sql.NullString
		ipAddress      sql.NullString
	)

	if err := row.Scan(
		&e.ID,
		&e.TenantID,
		&e.CampaignID,
		&e.EventName,
		&e.EventType,
		&userID,
		&anonymousID,
		&sessionID,
		&propertiesJSON,
		&country,
		&region,
		&city,
		&ipAddress,
		&e.EventTimestamp,
		&e.IngestedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to scan raw event row: %w", err)
	}

	e.UserID = userID.String
	e.AnonymousID = anonymousID.String
	e.SessionID = sessionID.String
	e.Country = country.String
	e.Region = region.String
	e.City = city.String
	e.IPAddress = ipAddress.String

	if len(propertiesJSON) > 0 {
		if err := json.Unmarshal(propertiesJSON, &e.Properties); err != nil {
			return nil, fmt.Errorf("failed to unmarshal properties: %w", err)
		}
	}

	return &e, nil
}

// nullIfEmpty maps empty strings to SQL NULL for optional raw event columns.
func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
