// Package config provides centralized configuration for timegrid runtime values.
//
// Every value has a default and can be overridden from the environment with
// the TIMEGRID_ prefix, for example TIMEGRID_CALENDAR_SLOT_MINUTES=30 or
// TIMEGRID_RECONCILE_RELOAD_MAX_ELAPSED=30s.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "TIMEGRID"

// RuntimeConfig holds all runtime configuration values. Leaf names are
// split on word boundaries, so Calendar.SlotMinutes reads
// TIMEGRID_CALENDAR_SLOT_MINUTES; no field falls back to an unprefixed name.
type RuntimeConfig struct {
	Grid      GridConfig
	Calendar  CalendarConfig
	Reconcile ReconcileConfig
	HTTP      HTTPConfig
	Storage   StorageConfig
	Webhook   WebhookConfig
}

// GridConfig holds planning grid configuration.
type GridConfig struct {
	// DefaultHours is the effort proposed for a drag-created allocation.
	// Default: 8
	DefaultHours float64 `split_words:"true" default:"8"`

	// WeekStart is the first day of a grid window.
	// Default: monday
	WeekStart string `split_words:"true" default:"monday"`

	// GroupBy picks the top-level rows: project or member.
	// Default: project
	GroupBy string `split_words:"true" default:"project"`

	// ShowEmpty keeps projects with no time in the window.
	// Default: true
	ShowEmpty bool `split_words:"true" default:"true"`
}

// CalendarConfig holds week/day calendar configuration.
type CalendarConfig struct {
	// SlotMinutes is the snapping unit; it must divide a day.
	// Default: 15
	SlotMinutes int `split_words:"true" default:"15"`

	// RowsPerSlot is how many terminal rows one slot takes.
	// Default: 1
	RowsPerSlot int `split_words:"true" default:"1"`

	// Mode is week or day.
	// Default: week
	Mode string `split_words:"true" default:"week"`

	// DayStartHour and DayEndHour bound the initially visible hours.
	// Default: 8 and 18
	DayStartHour int `split_words:"true" default:"8"`
	DayEndHour   int `split_words:"true" default:"18"`
}

// ReconcileConfig holds reconciler timing.
type ReconcileConfig struct {
	// CallTimeout bounds one persistence call.
	// Default: 15s
	CallTimeout time.Duration `split_words:"true" default:"15s"`

	// ReloadInitialInterval is the first delay between window reload attempts.
	// Default: 200ms
	ReloadInitialInterval time.Duration `split_words:"true" default:"200ms"`

	// ReloadMaxElapsed is how long a failing reload keeps retrying.
	// Default: 10s
	ReloadMaxElapsed time.Duration `split_words:"true" default:"10s"`
}

// HTTPConfig holds webhook HTTP client configuration.
type HTTPConfig struct {
	// Timeout is the per-request timeout.
	// Default: 30s
	Timeout time.Duration `split_words:"true" default:"30s"`

	// MaxRetries is the number of retries after the first attempt.
	// Default: 3
	MaxRetries int `split_words:"true" default:"3"`

	// RetryInitialDelay and RetryMaxDelay shape the exponential backoff.
	// Default: 1s and 30s
	RetryInitialDelay time.Duration `split_words:"true" default:"1s"`
	RetryMaxDelay     time.Duration `split_words:"true" default:"30s"`
}

// StorageConfig holds storage-related configuration.
type StorageConfig struct {
	// Path is the Badger directory. Empty uses the XDG data directory.
	Path string `split_words:"true"`

	// InMemory keeps everything in memory; nothing survives the process.
	InMemory bool `split_words:"true" default:"false"`

	// CheckIntegrity samples stored values when opening.
	// Default: true
	CheckIntegrity bool `split_words:"true" default:"true"`
}

// WebhookConfig holds the optional outbound notification webhook.
type WebhookConfig struct {
	// URL receives success and failure notifications. Empty disables webhooks.
	URL string `split_words:"true"`

	// Kind selects the payload shape: generic, slack, discord or teams.
	// Default: generic
	Kind string `split_words:"true" default:"generic"`

	// Template is an optional text/template for generic payloads.
	Template string `split_words:"true"`
}

// DefaultRuntimeConfig returns the default runtime configuration. It matches
// what Load returns with an empty environment.
func DefaultRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{
		Grid: GridConfig{
			DefaultHours: 8,
			WeekStart:    "monday",
			GroupBy:      "project",
			ShowEmpty:    true,
		},
		Calendar: CalendarConfig{
			SlotMinutes:  15,
			RowsPerSlot:  1,
			Mode:         "week",
			DayStartHour: 8,
			DayEndHour:   18,
		},
		Reconcile: ReconcileConfig{
			CallTimeout:           15 * time.Second,
			ReloadInitialInterval: 200 * time.Millisecond,
			ReloadMaxElapsed:      10 * time.Second,
		},
		HTTP: HTTPConfig{
			Timeout:           30 * time.Second,
			MaxRetries:        3,
			RetryInitialDelay: time.Second,
			RetryMaxDelay:     30 * time.Second,
		},
		Storage: StorageConfig{
			CheckIntegrity: true,
		},
		Webhook: WebhookConfig{
			Kind: "generic",
		},
	}
}

// Global holds the process-wide runtime configuration. It starts at the
// defaults and is replaced by Load in the command pre-run.
var Global = DefaultRuntimeConfig()

// Load reads the configuration from TIMEGRID_* environment variables and
// validates it.
func Load() (*RuntimeConfig, error) {
	var cfg RuntimeConfig
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the rest of the program cannot work with.
func (c *RuntimeConfig) Validate() error {
	if c.Grid.DefaultHours <= 0 {
		return fmt.Errorf("%s_GRID_DEFAULT_HOURS must be positive, got %v", EnvPrefix, c.Grid.DefaultHours)
	}
	if _, ok := ParseWeekday(c.Grid.WeekStart); !ok {
		return fmt.Errorf("%s_GRID_WEEK_START: unknown weekday %q", EnvPrefix, c.Grid.WeekStart)
	}
	switch c.Grid.GroupBy {
	case "project", "member":
	default:
		return fmt.Errorf("%s_GRID_GROUP_BY must be project or member, got %q", EnvPrefix, c.Grid.GroupBy)
	}
	if c.Calendar.SlotMinutes <= 0 || 1440%c.Calendar.SlotMinutes != 0 {
		return fmt.Errorf("%s_CALENDAR_SLOT_MINUTES must divide 1440, got %d", EnvPrefix, c.Calendar.SlotMinutes)
	}
	if c.Calendar.RowsPerSlot <= 0 {
		return fmt.Errorf("%s_CALENDAR_ROWS_PER_SLOT must be positive, got %d", EnvPrefix, c.Calendar.RowsPerSlot)
	}
	switch c.Calendar.Mode {
	case "week", "day":
	default:
		return fmt.Errorf("%s_CALENDAR_MODE must be week or day, got %q", EnvPrefix, c.Calendar.Mode)
	}
	if c.Calendar.DayStartHour < 0 || c.Calendar.DayEndHour > 24 || c.Calendar.DayStartHour >= c.Calendar.DayEndHour {
		return fmt.Errorf("%s_CALENDAR day hours must satisfy 0 <= start < end <= 24", EnvPrefix)
	}
	switch c.Webhook.Kind {
	case "generic", "slack", "discord", "teams":
	default:
		return fmt.Errorf("%s_WEBHOOK_KIND: unknown kind %q", EnvPrefix, c.Webhook.Kind)
	}
	return nil
}

// ParseWeekday accepts full or three-letter English day names in any case.
func ParseWeekday(s string) (time.Weekday, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || s == name[:3] {
			return d, true
		}
	}
	return time.Monday, false
}

// WeekStartDay returns the configured first day of a grid window.
func (c *RuntimeConfig) WeekStartDay() time.Weekday {
	d, _ := ParseWeekday(c.Grid.WeekStart)
	return d
}

// Reset resets the configuration to defaults.
// This is primarily useful for testing.
func (c *RuntimeConfig) Reset() {
	*c = *DefaultRuntimeConfig()
}
