package event

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestNormalize_SynthesizesEventName(t *testing.T) {
	tests := []struct {
		name      string
		eventName string
		eventType string
		want      string
	}{
		{"explicit name wins", "checkout_completed", "track", "checkout_completed"},
		{"page type", "", "page", "page_view"},
		{"legacy page visit type", "", "PAGE_VISIT", "page_view"},
		{"track type", "", "track", "custom_event"},
		{"legacy track type", "", "TRACK", "custom_event"},
		{"location type", "", "LOCATION_DATA", "location_data_captured"},
		{"no name no type", "", "", "unknown_event"},
		{"unknown placeholder name", "unknown", "page", "page_view"},
		{"other type gets suffix", "", "impression", "impression_event"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Normalize("tenant-1", Incoming{EventName: tc.eventName, EventType: tc.eventType}, now)
			require.Equal(t, tc.want, got.EventName)
		})
	}
}

func TestNormalize_CampaignFallback(t *testing.T) {
	got := Normalize("tenant-42", Incoming{}, now)
	require.Equal(t, "tenant_tenant-42", got.CampaignID)

	got = Normalize("tenant-42", Incoming{CampaignID: "default"}, now)
	require.Equal(t, "tenant_tenant-42", got.CampaignID)

	got = Normalize("tenant-42", Incoming{CampaignID: "spring-sale"}, now)
	require.Equal(t, "spring-sale", got.CampaignID)
}

func TestNormalize_TimestampParsing(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"rfc3339", "2026-02-15T08:30:00Z", time.Date(2026, 2, 15, 8, 30, 0, 0, time.UTC)},
		{"rfc3339 with offset", "2026-02-15T08:30:00+02:00", time.Date(2026, 2, 15, 6, 30, 0, 0, time.UTC)},
		{"no timezone", "2026-02-15T08:30:00", time.Date(2026, 2, 15, 8, 30, 0, 0, time.UTC)},
		{"space separated", "2026-02-15 08:30:00", time.Date(2026, 2, 15, 8, 30, 0, 0, time.UTC)},
		{"bare date", "2026-02-15", time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)},
		{"garbage defaults to now", "next tuesday", now},
		{"empty defaults to now", "", now},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Normalize("tenant-1", Incoming{Timestamp: tc.input}, now)
			require.True(t, got.Timestamp.Equal(tc.want), "got %v, want %v", got.Timestamp, tc.want)
		})
	}
}

func TestNormalize_NeverFails(t *testing.T) {
	// Fully empty input still yields a usable event.
	got := Normalize("tenant-1", Incoming{}, now)

	require.Equal(t, "tenant-1", got.TenantID)
	require.Equal(t, "unknown_event", got.EventName)
	require.Equal(t, "tenant_tenant-1", got.CampaignID)
	require.Equal(t, now, got.Timestamp)
}

func TestActorID(t *testing.T) {
	n := &Normalized{UserID: "user-1", AnonymousID: "anon-1"}
	require.Equal(t, "user-1", n.ActorID())

	n = &Normalized{AnonymousID: "anon-1"}
	require.Equal(t, "anon-1", n.ActorID())

	n = &Normalized{}
	require.Empty(t, n.ActorID())
}

func TestRevenue(t *testing.T) {
	tests := []struct {
		name  string
		props map[string]interface{}
		want  decimal.Decimal
	}{
		{"float", map[string]interface{}{"revenue": 49.99}, decimal.NewFromFloat(49.99)},
		{"int", map[string]interface{}{"revenue": 50}, decimal.NewFromInt(50)},
		{"string amount", map[string]interface{}{"revenue": "12.34"}, decimal.NewFromFloat(12.34)},
		{"unparseable string", map[string]interface{}{"revenue": "lots"}, decimal.Zero},
		{"missing key", map[string]interface{}{"price": 10}, decimal.Zero},
		{"nil properties", nil, decimal.Zero},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			n := &Normalized{Properties: tc.props}
			require.True(t, n.Revenue().Equal(tc.want), "got %s, want %s", n.Revenue(), tc.want)
		})
	}
}
