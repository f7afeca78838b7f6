package bucket

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tidemark-io/tidemark/internal/core/event"
)

// DailyKey identifies one daily aggregate bucket.
// Date is truncated to UTC midnight.
type DailyKey struct {
	TenantID   string
	CampaignID string
	Date       time.Time
}

// HourlyKey identifies one hourly aggregate bucket.
type HourlyKey struct {
	TenantID   string
	CampaignID string
	Date       time.Time
	Hour       int
}

// DailyKeyFor derives the daily bucket key for an event timestamp.
func DailyKeyFor(tenantID, campaignID string, ts time.Time) DailyKey {
	return DailyKey{
		TenantID:   tenantID,
		CampaignID: campaignID,
		Date:       ts.UTC().Truncate(24 * time.Hour),
	}
}

// HourlyKeyFor derives the hourly bucket key for an event timestamp.
func HourlyKeyFor(tenantID, campaignID string, ts time.Time) HourlyKey {
	utc := ts.UTC()
	return HourlyKey{
		TenantID:   tenantID,
		CampaignID: campaignID,
		Date:       utc.Truncate(24 * time.Hour),
		Hour:       utc.Hour(),
	}
}

// Counters holds the streaming statistics of one aggregate bucket.
// Counts only increase on the live path; full re-aggregation rebuilds a
// Counters value from scratch.
type Counters struct {
	EventCounts      map[string]int64
	CountryBreakdown map[string]int64
	RegionBreakdown  map[string]int64
	CityBreakdown    map[string]int64
	UniqueUsers      int64
	RevenueTotal     decimal.Decimal
	ConversionRate   float64
}

// NewCounters returns an empty, fully-initialized Counters value.
func NewCounters() *Counters {
	return &Counters{
		EventCounts:      make(map[string]int64),
		CountryBreakdown: make(map[string]int64),
		RegionBreakdown:  make(map[string]int64),
		CityBreakdown:    make(map[string]int64),
		RevenueTotal:     decimal.Zero,
	}
}

// TotalEvents returns the sum of the event-name histogram.
func (c *Counters) TotalEvents() int64 {
	var total int64
	for _, n := range c.EventCounts {
		total += n
	}
	return total
}

// Record folds one normalized event into the bucket.
// countUnique is the estimator's decision for this event: whether the actor
// should increment unique_users. The conversion rate is recomputed from the
// cumulative histogram on every event so it never goes stale after
// non-conversion traffic.
func (c *Counters) Record(evt *event.Normalized, countUnique bool, conversions ConversionSet) {
	c.ensureMaps()

	c.EventCounts[evt.EventName]++

	// Absent geo fields are skipped entirely; no "Unknown" label at this layer.
	if evt.Country != "" {
		c.CountryBreakdown[evt.Country]++
	}
	if evt.Region != "" {
		c.RegionBreakdown[evt.Region]++
	}
	if evt.City != "" {
		c.CityBreakdown[evt.City]++
	}

	if countUnique && evt.ActorID() != "" {
		c.UniqueUsers++
	}

	if conversions.Contains(evt.EventName) {
		c.RevenueTotal = c.RevenueTotal.Add(evt.Revenue())
	}
	c.ConversionRate = c.conversionRate(conversions)
}

// FromEvents builds a fresh bucket from a complete raw event group.
// Unlike the live path, the full event list is in memory so unique users are
// counted by true set cardinality, no heuristic needed.
func FromEvents(events []*event.Normalized, conversions ConversionSet) *Counters {
	c := NewCounters()
	actors := make(map[string]struct{})

	for _, evt := range events {
		c.EventCounts[evt.EventName]++

		if evt.Country != "" {
			c.CountryBreakdown[evt.Country]++
		}
		if evt.Region != "" {
			c.RegionBreakdown[evt.Region]++
		}
		if evt.City != "" {
			c.CityBreakdown[evt.City]++
		}

		if actor := evt.ActorID(); actor != "" {
			actors[actor] = struct{}{}
		}

		if conversions.Contains(evt.EventName) {
			c.RevenueTotal = c.RevenueTotal.Add(evt.Revenue())
		}
	}

	c.UniqueUsers = int64(len(actors))
	c.ConversionRate = c.conversionRate(conversions)
	return c
}

// conversionRate derives the rate from the cumulative histogram: conversion
// events over total events, clamped by construction to [0, 1].
func (c *Counters) conversionRate(conversions ConversionSet) float64 {
	total := c.TotalEvents()
	if total == 0 {
		return 0
	}
	var converted int64
	for name, n := range c.EventCounts {
		if conversions.Contains(name) {
			converted += n
		}
	}
	return float64(converted) / float64(total)
}

// ensureMaps lazily initializes counter maps so Counters scanned from storage
// with NULL JSONB columns stay safe to mutate.
func (c *Counters) ensureMaps() {
	if c.EventCounts == nil {
		c.EventCounts = make(map[string]int64)
	}
	if c.CountryBreakdown == nil {
		c.CountryBreakdown = make(map[string]int64)
	}
	if c.RegionBreakdown == nil {
		c.RegionBreakdown = make(map[string]int64)
	}
	if c.CityBreakdown == nil {
		c.CityBreakdown = make(map[string]int64)
	}
}
