package plan

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Catalog defines the interface for looking up plan templates by name.
// Billing uses it to materialize a tenant plan from a named tier
// ("basic", "pro", "enterprise") at onboarding or plan change.
type Catalog interface {
	// Get returns the template with the given name, or an error if not found.
	Get(name string) (*Plan, error)

	// Names returns all template names, sorted.
	Names() []string
}

// rawTemplate is the on-disk YAML shape of a plan template.
type rawTemplate struct {
	Name                      string  `yaml:"name"`
	Tier                      int     `yaml:"tier"`
	AggregationFrequency      string  `yaml:"aggregation_frequency"`
	RawRetentionDays          int     `yaml:"raw_retention_days"`
	MaxRawEventsPerMonth      int64   `yaml:"max_raw_events_per_month"`
	MaxAggregatedRowsPerMonth int64   `yaml:"max_aggregated_rows_per_month"`
	MonthlyPriceUSD           float64 `yaml:"monthly_price_usd"`
}

// FileSystemCatalog loads plan templates from *.yaml files in a directory.
// Each file contains exactly one template at the top level. Templates are
// loaded once at startup and cached in memory. No hot reload.
type FileSystemCatalog struct {
	dir       string
	templates map[string]Plan // keyed by Name
}

// NewFileSystemCatalog creates a catalog and eagerly loads all templates from
// dir. A missing directory yields the built-in defaults; a malformed template
// file is a startup error.
func NewFileSystemCatalog(dir string) (*FileSystemCatalog, error) {
	c := &FileSystemCatalog{
		dir:       dir,
		templates: builtinTemplates(),
	}
	if err := c.load(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *FileSystemCatalog) load() error {
	info, err := os.Stat(c.dir)
	if os.IsNotExist(err) {
		return nil // no catalog directory, built-in templates apply
	}
	if err != nil {
		return fmt.Errorf("plan catalog dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("plan catalog path %q is not a directory", c.dir)
	}

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("reading plan catalog dir: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || (!strings.HasSuffix(e.Name(), ".yaml") && !strings.HasSuffix(e.Name(), ".yml")) {
			continue
		}

		path := filepath.Join(c.dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading plan template %s: %w", path, err)
		}

		var raw rawTemplate
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("parsing plan template %s: %w", path, err)
		}
		if raw.Name == "" {
			continue // skip empty / comment-only files
		}

		if raw.Tier < TierBasic || raw.Tier > TierEnterprise {
			return fmt.Errorf("plan template %q: tier must be 1-3, got %d", raw.Name, raw.Tier)
		}
		switch raw.AggregationFrequency {
		case FrequencyDaily, FrequencyHourly, FrequencyRealTime:
		default:
			return fmt.Errorf("plan template %q: unsupported aggregation_frequency %q", raw.Name, raw.AggregationFrequency)
		}
		if raw.RawRetentionDays < 0 {
			return fmt.Errorf("plan template %q: raw_retention_days must be >= 0", raw.Name)
		}
		if raw.RawRetentionDays > 0 && raw.Tier < TierEnterprise {
			return fmt.Errorf("plan template %q: raw retention requires tier %d", raw.Name, TierEnterprise)
		}

		c.templates[raw.Name] = Plan{
			Name:                      raw.Name,
			Tier:                      raw.Tier,
			AggregationFrequency:      raw.AggregationFrequency,
			RawRetentionDays:          raw.RawRetentionDays,
			MaxRawEventsPerMonth:      raw.MaxRawEventsPerMonth,
			MaxAggregatedRowsPerMonth: raw.MaxAggregatedRowsPerMonth,
			MonthlyPrice:              decimal.NewFromFloat(raw.MonthlyPriceUSD),
		}
	}
	return nil
}

// Get returns the template with the given name, or an error if not found.
func (c *FileSystemCatalog) Get(name string) (*Plan, error) {
	tpl, ok := c.templates[name]
	if !ok {
		return nil, fmt.Errorf("plan template %q not found", name)
	}
	return &tpl, nil
}

// Names returns all template names, sorted.
func (c *FileSystemCatalog) Names() []string {
	names := make([]string, 0, len(c.templates))
	for name := range c.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// builtinTemplates are the stock basic/pro/enterprise tiers, used when no
// catalog directory is configured.
func builtinTemplates() map[string]Plan {
	return map[string]Plan{
		"basic": {
			Name:                      "basic",
			Tier:                      TierBasic,
			AggregationFrequency:      FrequencyDaily,
			RawRetentionDays:          0,
			MaxRawEventsPerMonth:      0,
			MaxAggregatedRowsPerMonth: 100000,
			MonthlyPrice:              decimal.Zero,
		},
		"pro": {
			Name:                      "pro",
			Tier:                      TierPro,
			AggregationFrequency:      FrequencyHourly,
			RawRetentionDays:          0,
			MaxRawEventsPerMonth:      1000000,
			MaxAggregatedRowsPerMonth: 500000,
			MonthlyPrice:              decimal.NewFromInt(99),
		},
		"enterprise": {
			Name:                      "enterprise",
			Tier:                      TierEnterprise,
			AggregationFrequency:      FrequencyRealTime,
			RawRetentionDays:          90,
			MaxRawEventsPerMonth:      10000000,
			MaxAggregatedRowsPerMonth: 2000000,
			MonthlyPrice:              decimal.NewFromInt(499),
		},
	}
}
