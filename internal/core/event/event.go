package event

import (
	"time"

	"github.com/shopspring/decimal"
)

// Incoming is the raw SDK event shape as posted by clients. Every field is
// optional; normalization fills defaults rather than rejecting.
type Incoming struct {
	CampaignID  string                 `json:"campaign_id"`
	EventName   string                 `json:"event_name"`
	EventType   string                 `json:"event_type"`
	UserID      string                 `json:"user_id"`
	AnonymousID string                 `json:"anonymous_id"`
	SessionID   string                 `json:"session_id"`
	Properties  map[string]interface{} `json:"properties"`
	Country     string                 `json:"country"`
	Region      string                 `json:"region"`
	City        string                 `json:"city"`
	IPAddress   string                 `json:"ip_address"`
	Timestamp   string                 `json:"timestamp"`
}

// Normalized is the canonical event shape consumed by the aggregation core.
type Normalized struct {
	TenantID    string
	CampaignID  string
	EventName   string
	EventType   string
	UserID      string
	AnonymousID string
	SessionID   string
	Properties  map[string]interface{}
	Country     string
	Region      string
	City        string
	IPAddress   string
	Timestamp   time.Time
}

// ActorID returns the actor identifier used for unique-user counting:
// user_id when present, anonymous_id otherwise. Empty means no actor.
func (n *Normalized) ActorID() string {
	if n.UserID != "" {
		return n.UserID
	}
	return n.AnonymousID
}

// Revenue extracts the numeric revenue property, defaulting to zero.
// JSON numbers unmarshal to float64 in Go; string
// values are accepted too since some SDKs serialize amounts as strings.
func (n *Normalized) Revenue() decimal.Decimal {
	if n.Properties == nil {
		return decimal.Zero
	}
	switch v := n.Properties["revenue"].(type) {
	case float64:
		return decimal.NewFromFloat(v)
	case float32:
		return decimal.NewFromFloat(float64(v))
	case int:
		return decimal.NewFromInt(int64(v))
	case int64:
		return decimal.NewFromInt(v)
	case string:
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	}
	return decimal.Zero
}

// timestampLayouts are tried in order when parsing client timestamps.
// Clients send everything from full RFC3339 down to bare dates.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Normalize derives the canonical event shape from a raw incoming event.
// Pure, never fails: missing names are synthesized from the event type,
// a missing campaign degrades to per-tenant attribution, and an absent or
// unparseable timestamp defaults to ingestion time (UTC).
func Normalize(tenantID string, in Incoming, now time.Time) Normalized {
	name := in.EventName
	if name == "" || name == "unknown" {
		name = synthesizeName(in.EventType)
	}

	campaignID := in.CampaignID
	if campaignID == "" || campaignID == "default" {
		campaignID = "tenant_" + tenantID
	}

	ts := now.UTC()
	if in.Timestamp != "" {
		if parsed, ok := parseTimestamp(in.Timestamp); ok {
			ts = parsed.UTC()
		}
	}

	return Normalized{
		TenantID:    tenantID,
		CampaignID:  campaignID,
		EventName:   name,
		EventType:   in.EventType,
		UserID:      in.UserID,
		AnonymousID: in.AnonymousID,
		SessionID:   in.SessionID,
		Properties:  in.Properties,
		Country:     in.Country,
		Region:      in.Region,
		City:        in.City,
		IPAddress:   in.IPAddress,
		Timestamp:   ts,
	}
}

// synthesizeName maps an event type to a canonical event name when the client
// omitted one.
func synthesizeName(eventType string) string {
	switch eventType {
	case "page", "PAGE_VISIT":
		return "page_view"
	case "track", "TRACK":
		return "custom_event"
	case "LOCATION_DATA":
		return "location_data_captured"
	case "":
		return "unknown_event"
	default:
		return eventType + "_event"
	}
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
