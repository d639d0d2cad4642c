package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/manav03panchal/timegrid/internal/aggregate"
	"github.com/manav03panchal/timegrid/internal/logging"
	"github.com/manav03panchal/timegrid/internal/parser"
	"github.com/manav03panchal/timegrid/internal/tui"
)

// Plan command flags.
var (
	planFlagAnchor      string
	planFlagGroupBy     string
	planFlagMembers     bool
	planFlagHideEmpty   bool
	planFlagMetricsAddr string
)

// planCmd opens the planning grid.
var planCmd = &cobra.Command{
	Use:     "plan",
	Aliases: []string{"grid", "p"},
	Short:   "Open the three-week planning grid",
	Long: `Open the interactive planning grid. Drag across empty cells to plan
time, drag a bar to move it and drag its edges to resize it. Every change is
shown immediately and saved in the background.

Keys: h/l move the window, t jumps to today, enter expands a row,
g switches between project and member grouping, e edits and d deletes the
selected allocation, ? shows all keys.

Examples:
  timegrid plan
  timegrid plan --anchor "next week" --group-by member
  timegrid plan --metrics-addr 127.0.0.1:9090`,
	Args: cobra.NoArgs,
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVarP(&planFlagAnchor, "anchor", "a", "", "Show the window containing this date")
	planCmd.Flags().StringVarP(&planFlagGroupBy, "group-by", "g", "", "Top-level rows: project or member")
	planCmd.Flags().BoolVar(&planFlagMembers, "members", false, "List project members without allocations")
	planCmd.Flags().BoolVar(&planFlagHideEmpty, "hide-empty", false, "Hide projects with no time in the window")
	planCmd.Flags().StringVar(&planFlagMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	cctx := cmd.Context()

	pc := ctx.PlannerConfig()
	if planFlagGroupBy != "" {
		by, err := parseGroupBy(planFlagGroupBy)
		if err != nil {
			return err
		}
		pc.GroupBy = by
	}
	pc.IncludeMembers = planFlagMembers
	if planFlagHideEmpty {
		pc.ShowEmpty = false
	}

	restore, err := logToFile()
	if err != nil {
		return err
	}
	defer restore()

	if planFlagMetricsAddr != "" {
		stop, err := serveMetrics(cctx, planFlagMetricsAddr)
		if err != nil {
			return err
		}
		defer stop()
	}

	p := ctx.Planner(pc)
	if err := p.Open(cctx); err != nil {
		return err
	}
	if planFlagAnchor != "" {
		anchor, err := parser.ParseDate(planFlagAnchor, ctx.Clock.Now())
		if err != nil {
			return err
		}
		if err := p.GoTo(cctx, anchor); err != nil {
			return err
		}
	}

	logging.Info("opening planning grid",
		logging.KeyOperation, "plan", logging.KeyWindow, p.Window().String(), "group_by", string(pc.GroupBy))
	return tui.RunGrid(cctx, tui.GridOptions{
		Planner: p,
		Events:  ctx.Events.Events(),
		Clock:   ctx.Clock,
	})
}

func parseGroupBy(s string) (aggregate.GroupBy, error) {
	switch aggregate.GroupBy(s) {
	case aggregate.GroupByProject, aggregate.GroupByMember:
		return aggregate.GroupBy(s), nil
	}
	return "", fmt.Errorf("unknown group-by %q: use project or member", s)
}

// logToFile sends the global logger to the log file while a TUI owns the
// terminal. The returned func restores stderr logging.
func logToFile() (func(), error) {
	f, err := logging.OpenLogFile("")
	if err != nil {
		return nil, err
	}
	cfg := logging.DefaultConfig()
	if flagDebug {
		cfg = logging.DebugConfig()
	}
	cfg.Output = f
	logging.Init(cfg)

	return func() {
		cfg.Output = nil
		logging.Init(cfg)
		f.Close()
	}, nil
}

// serveMetrics exposes the reconciler metrics over HTTP until stop is called.
func serveMetrics(cctx context.Context, addr string) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	ctx.Metrics.RegisterRuntime()

	mux := http.NewServeMux()
	mux.Handle("/metrics", ctx.Metrics.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			logging.ErrorContext(cctx, "metrics server stopped", logging.KeyError, err)
		}
	}()
	logging.Info("serving metrics", "addr", ln.Addr().String())

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}, nil
}
