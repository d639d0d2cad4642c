package cmd

import (
	"github.com/spf13/cobra"

	"github.com/manav03panchal/timegrid/internal/aggregate"
	"github.com/manav03panchal/timegrid/internal/errors"
	"github.com/manav03panchal/timegrid/internal/model"
	"github.com/manav03panchal/timegrid/internal/output"
	"github.com/manav03panchal/timegrid/internal/parser"
)

// Totals command flags.
var (
	totalsFlagAnchor  string
	totalsFlagGroupBy string
	totalsFlagExpand  string
	totalsFlagDaily   bool
	totalsFlagMembers bool
	totalsFlagEmpty   bool
)

// totalsCmd prints the row totals of a grid window.
var totalsCmd = &cobra.Command{
	Use:     "totals",
	Aliases: []string{"report", "sum"},
	Short:   "Print the hours of every grid row",
	Long: `Print the rows of the planning grid with their total hours for the
window, optionally with one column per day.

--expand picks how deep the tree is printed: none, groups (clients or
members) or all.

Examples:
  timegrid totals
  timegrid totals --anchor "last week" --group-by member --daily
  timegrid totals --expand none -f json`,
	Args: cobra.NoArgs,
	RunE: runTotals,
}

func init() {
	totalsCmd.Flags().StringVarP(&totalsFlagAnchor, "anchor", "a", "", "Use the window containing this date")
	totalsCmd.Flags().StringVarP(&totalsFlagGroupBy, "group-by", "g", "", "Top-level rows: project or member")
	totalsCmd.Flags().StringVar(&totalsFlagExpand, "expand", "all", "Tree depth: none, groups or all")
	totalsCmd.Flags().BoolVarP(&totalsFlagDaily, "daily", "d", false, "Add one column per day")
	totalsCmd.Flags().BoolVar(&totalsFlagMembers, "members", false, "List project members without allocations")
	totalsCmd.Flags().BoolVar(&totalsFlagEmpty, "empty", false, "Keep projects with no time in the window")
	rootCmd.AddCommand(totalsCmd)
}

func runTotals(cmd *cobra.Command, args []string) error {
	cctx := cmd.Context()
	now := ctx.Clock.Now()

	by := aggregate.GroupBy(ctx.Config.Grid.GroupBy)
	if totalsFlagGroupBy != "" {
		var err error
		if by, err = parseGroupBy(totalsFlagGroupBy); err != nil {
			return err
		}
	}

	anchor := now
	if totalsFlagAnchor != "" {
		t, err := parser.ParseDate(totalsFlagAnchor, now)
		if err != nil {
			return err
		}
		anchor = t
	}
	w := model.NewWeekWindow(anchor, ctx.Config.WeekStartDay(), model.ViewGrid)
	if err := ctx.Load(cctx, w.Range()); err != nil {
		return err
	}

	snap, err := aggregate.Snapshot(cctx, ctx.Directory)
	if err != nil {
		return err
	}
	engine := aggregate.New(ctx.Store)
	opts := aggregate.Options{
		GroupBy:        by,
		Window:         w,
		ShowEmpty:      totalsFlagEmpty,
		IncludeMembers: totalsFlagMembers,
	}

	expanded := aggregate.Expanded{}
	levels, err := expandLevels(totalsFlagExpand)
	if err != nil {
		return err
	}
	// Children only exist under expanded nodes, so each level is expanded
	// on a fresh build of the one above it.
	rows, err := engine.BuildRows(cctx, snap, expanded, opts)
	if err != nil {
		return err
	}
	for _, level := range levels {
		expanded.ExpandLevel(rows, level)
		if rows, err = engine.BuildRows(cctx, snap, expanded, opts); err != nil {
			return err
		}
	}

	var cells func(model.RowKey) []int
	if totalsFlagDaily {
		cells = func(key model.RowKey) []int { return engine.CellMinutes(key, w) }
	}
	totals := output.NewTotalsRows(rows, by, cells)
	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintTotals(w, string(by), totals)
	}
	ctx.CLIFormatter().PrintTotals(w, totals)
	return nil
}

func expandLevels(s string) ([]aggregate.Level, error) {
	switch s {
	case "none":
		return nil, nil
	case "groups", "group":
		return []aggregate.Level{aggregate.LevelGroup}, nil
	case "all", "":
		return []aggregate.Level{aggregate.LevelGroup, aggregate.LevelParent}, nil
	}
	return nil, errors.NewUserErrorWithField("expand", s, "Invalid expand depth", "Use none, groups or all")
}
