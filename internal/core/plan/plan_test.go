package plan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlanGates(t *testing.T) {
	tests := []struct {
		name        string
		plan        Plan
		rawEnabled  bool
		hourly      bool
		dedupUnique bool
	}{
		{
			name:   "basic daily",
			plan:   Plan{Tier: TierBasic, AggregationFrequency: FrequencyDaily},
			hourly: false,
		},
		{
			name:        "pro hourly",
			plan:        Plan{Tier: TierPro, AggregationFrequency: FrequencyHourly},
			hourly:      true,
			dedupUnique: true,
		},
		{
			name:        "enterprise real time",
			plan:        Plan{Tier: TierEnterprise, AggregationFrequency: FrequencyRealTime},
			rawEnabled:  true,
			hourly:      true,
			dedupUnique: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.rawEnabled, tc.plan.RawPersistenceEnabled())
			require.Equal(t, tc.hourly, tc.plan.HourlyBucketsEnabled())
			require.Equal(t, tc.dedupUnique, tc.plan.DedupUniqueUsers())
		})
	}
}

func TestDefaultBasic(t *testing.T) {
	p := DefaultBasic("tenant-1")

	require.Equal(t, "tenant-1", p.TenantID)
	require.Equal(t, TierBasic, p.Tier)
	require.Equal(t, FrequencyDaily, p.AggregationFrequency)
	require.Zero(t, p.RawRetentionDays)
	require.False(t, p.RawPersistenceEnabled())
	require.True(t, p.MonthlyPrice.IsZero())
}

func TestFileSystemCatalog_BuiltinsWhenDirMissing(t *testing.T) {
	c, err := NewFileSystemCatalog(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)

	require.Equal(t, []string{"basic", "enterprise", "pro"}, c.Names())

	pro, err := c.Get("pro")
	require.NoError(t, err)
	require.Equal(t, TierPro, pro.Tier)
	require.Equal(t, FrequencyHourly, pro.AggregationFrequency)
	require.Zero(t, pro.RawRetentionDays)

	_, err = c.Get("platinum")
	require.Error(t, err)
}

func TestFileSystemCatalog_LoadsAndOverridesTemplates(t *testing.T) {
	dir := t.TempDir()
	tpl := `
name: startup
tier: 2
aggregation_frequency: hourly
raw_retention_days: 0
max_raw_events_per_month: 200000
max_aggregated_rows_per_month: 100000
monthly_price_usd: 49
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "startup.yaml"), []byte(tpl), 0o644))

	c, err := NewFileSystemCatalog(dir)
	require.NoError(t, err)

	startup, err := c.Get("startup")
	require.NoError(t, err)
	require.Equal(t, TierPro, startup.Tier)
	require.Equal(t, "49", startup.MonthlyPrice.String())

	// Builtins remain available alongside custom templates.
	require.Contains(t, c.Names(), "basic")
	require.Contains(t, c.Names(), "startup")
}

func TestFileSystemCatalog_RejectsInvalidTemplates(t *testing.T) {
	tests := []struct {
		name string
		tpl  string
	}{
		{
			name: "tier out of range",
			tpl:  "name: x\ntier: 5\naggregation_frequency: daily\n",
		},
		{
			name: "bad frequency",
			tpl:  "name: x\ntier: 1\naggregation_frequency: weekly\n",
		},
		{
			name: "retention below enterprise",
			tpl:  "name: x\ntier: 2\naggregation_frequency: hourly\nraw_retention_days: 30\n",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, "x.yaml"), []byte(tc.tpl), 0o644))

			_, err := NewFileSystemCatalog(dir)
			require.Error(t, err)
		})
	}
}
