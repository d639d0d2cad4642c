// Package runtime wires storage, the allocation store, the reconciler and its
// notifiers into the context every command runs with.
package runtime

import (
	"context"
	"math"

	"github.com/manav03panchal/timegrid/internal/aggregate"
	"github.com/manav03panchal/timegrid/internal/allocation"
	"github.com/manav03panchal/timegrid/internal/calendar"
	"github.com/manav03panchal/timegrid/internal/clock"
	"github.com/manav03panchal/timegrid/internal/config"
	"github.com/manav03panchal/timegrid/internal/drag"
	"github.com/manav03panchal/timegrid/internal/errors"
	"github.com/manav03panchal/timegrid/internal/logging"
	"github.com/manav03panchal/timegrid/internal/metrics"
	"github.com/manav03panchal/timegrid/internal/model"
	"github.com/manav03panchal/timegrid/internal/notify"
	"github.com/manav03panchal/timegrid/internal/output"
	"github.com/manav03panchal/timegrid/internal/planner"
	"github.com/manav03panchal/timegrid/internal/reconcile"
	"github.com/manav03panchal/timegrid/internal/storage"
)

// Context holds the application runtime context.
type Context struct {
	Config    *config.RuntimeConfig
	DB        *storage.DB
	Formatter *output.Formatter
	Clock     clock.Clock

	// Repositories
	Allocations *storage.AllocationRepo
	Directory   *storage.Directory

	Store      *allocation.Store
	Metrics    *metrics.Reconcile
	Reconciler *reconcile.Reconciler

	// Events receives reconciler outcomes for an interactive consumer.
	Events *notify.Channel
	// Webhook is nil unless a webhook URL is configured.
	Webhook *notify.Webhook

	// Debug mode
	Debug bool
}

// Options configures the runtime context. Empty fields fall back to Config.
type Options struct {
	DBPath    string
	InMemory  bool
	Format    output.Format
	ColorMode output.ColorMode
	Debug     bool

	Config *config.RuntimeConfig
	Clock  clock.Clock
	// EventBuffer sizes the Events channel.
	EventBuffer int
}

// DefaultOptions returns default runtime options.
func DefaultOptions() Options {
	return Options{
		Format:    output.FormatCLI,
		ColorMode: output.ColorAuto,
		Config:    config.Global,
	}
}

// New opens the database and builds the write path. The database path is
// taken from opts, then from the configuration, then from the XDG default.
func New(opts Options) (*Context, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Global
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.System{}
	}

	path := opts.DBPath
	if path == "" {
		path = cfg.Storage.Path
	}
	if path == "" {
		path = storage.DefaultPath()
	}

	webhook, err := notify.NewWebhook(cfg.Webhook, cfg.HTTP, clk)
	if err != nil {
		return nil, err
	}

	db, err := storage.Open(storage.Options{
		Path:           path,
		InMemory:       opts.InMemory || cfg.Storage.InMemory,
		CheckIntegrity: cfg.Storage.CheckIntegrity,
	})
	if err != nil {
		return nil, err
	}

	formatter := output.NewFormatter()
	if opts.Format != "" {
		formatter.Format = opts.Format
	}
	if opts.ColorMode != "" {
		formatter.ColorMode = opts.ColorMode
	}

	events := notify.NewChannel(opts.EventBuffer, clk)
	notifiers := notify.Fanout{notify.Log{}, events}
	if webhook != nil {
		notifiers = append(notifiers, webhook)
	}

	repo := storage.NewAllocationRepo(db)
	store := allocation.NewStore()
	m := metrics.NewReconcile()
	rec := reconcile.New(store, repo, reconcile.Options{
		Clock:                 clk,
		Notifier:              notifiers,
		Metrics:               m,
		CallTimeout:           cfg.Reconcile.CallTimeout,
		ReloadInitialInterval: cfg.Reconcile.ReloadInitialInterval,
		ReloadMaxElapsed:      cfg.Reconcile.ReloadMaxElapsed,
	})

	return &Context{
		Config:      cfg,
		DB:          db,
		Formatter:   formatter,
		Clock:       clk,
		Allocations: repo,
		Directory:   storage.NewDirectory(db),
		Store:       store,
		Metrics:     m,
		Reconciler:  rec,
		Events:      events,
		Webhook:     webhook,
		Debug:       opts.Debug,
	}, nil
}

// Close waits for in-flight persistence calls and webhook deliveries, then
// closes the database.
func (c *Context) Close() error {
	if c.Reconciler != nil {
		c.Reconciler.Wait()
	}
	if c.Webhook != nil {
		c.Webhook.Wait()
	}
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// PlannerConfig derives the grid configuration from the runtime config.
func (c *Context) PlannerConfig() planner.Config {
	pc := planner.DefaultConfig()
	pc.GroupBy = aggregate.GroupBy(c.Config.Grid.GroupBy)
	pc.WeekStart = c.Config.WeekStartDay()
	pc.DefaultHours = int(math.Round(c.Config.Grid.DefaultHours))
	pc.ShowEmpty = c.Config.Grid.ShowEmpty
	return pc
}

// Planner returns a grid view-model over the context's reconciler.
func (c *Context) Planner(cfg planner.Config) *planner.Planner {
	return planner.New(cfg, c.Directory, c.Reconciler, c.Clock)
}

// CalendarScale returns the configured calendar geometry.
func (c *Context) CalendarScale() calendar.Scale {
	return calendar.Scale{
		SlotMinutes: c.Config.Calendar.SlotMinutes,
		RowsPerSlot: c.Config.Calendar.RowsPerSlot,
	}
}

// Load replaces the in-memory store with the stored allocations in rng.
func (c *Context) Load(ctx context.Context, rng model.DateRange) error {
	return c.Reconciler.Load(ctx, rng)
}

// Submit commits req through the reconciler and waits for the persistence
// call. A request the reconciler dropped returns ErrStaleWindow.
func (c *Context) Submit(ctx context.Context, req drag.Request) (*reconcile.Ticket, error) {
	ctx = logging.WithCommit(ctx)
	t, err := c.Reconciler.Commit(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := t.Wait(ctx); err != nil {
		return t, err
	}
	if t.Dropped() {
		return t, errors.WithCategory(ErrStaleWindow, errors.CategoryUser)
	}
	return t, nil
}

// CLIFormatter returns a CLI formatter.
func (c *Context) CLIFormatter() *output.CLIFormatter {
	return output.NewCLIFormatter(c.Formatter)
}

// JSONFormatter returns a JSON formatter.
func (c *Context) JSONFormatter() *output.JSONFormatter {
	return output.NewJSONFormatter(c.Formatter)
}

// IsJSON returns true if output format is JSON.
func (c *Context) IsJSON() bool {
	return c.Formatter.IsJSON()
}

// Debugf logs at debug level when debug mode is enabled.
func (c *Context) Debugf(msg string, args ...any) {
	if c.Debug {
		logging.DebugLog(msg, args...)
	}
}
