package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/manav03panchal/timegrid/internal/aggregate"
	"github.com/manav03panchal/timegrid/internal/drag"
	"github.com/manav03panchal/timegrid/internal/errors"
	"github.com/manav03panchal/timegrid/internal/model"
	"github.com/manav03panchal/timegrid/internal/parser"
	"github.com/manav03panchal/timegrid/internal/reconcile"
	"github.com/manav03panchal/timegrid/internal/storage"
	"github.com/manav03panchal/timegrid/internal/validate"
)

// allocCmd groups the allocation subcommands.
var allocCmd = &cobra.Command{
	Use:     "alloc",
	Aliases: []string{"allocation", "a"},
	Short:   "Create, list and change allocations",
	Long: `Allocations assign a user's time to a project. A timed allocation has
exact start and end instants; a day allocation spreads an effort in hours over
whole days.

Examples:
  timegrid alloc add -p website -u alice --start "tomorrow 9am" --hours 3
  timegrid alloc add -p website -u alice --from mon --to wed --hours 12
  timegrid alloc ls --from "this week" --user alice
  timegrid alloc mv 42 --start "friday 10am"
  timegrid alloc edit 42 --hours 6 --label review
  timegrid alloc rm 42`,
	RunE: runAllocList,
}

// Add flags.
var (
	allocAddFlagProject string
	allocAddFlagUser    string
	allocAddFlagStart   string
	allocAddFlagEnd     string
	allocAddFlagFrom    string
	allocAddFlagTo      string
	allocAddFlagHours   float64
	allocAddFlagLabel   string
	allocAddFlagKind    string
)

var allocAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an allocation",
	Long: `Add an allocation. Use --start/--end (or --start with --hours) for a
timed allocation and --from/--to for a day allocation. Day ranges include
both ends; their effort defaults to the grid's default hours.

The kind is planned for allocations starting in the future and reported
otherwise, unless --kind says so.`,
	Args: cobra.NoArgs,
	RunE: runAllocAdd,
}

// List flags.
var (
	allocListFlagFrom    string
	allocListFlagTo      string
	allocListFlagProject string
	allocListFlagUser    string
	allocListFlagKind    string
	allocListFlagLimit   int
)

var allocListCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List allocations",
	Args:    cobra.NoArgs,
	RunE:    runAllocList,
}

// Move flags.
var (
	allocMoveFlagStart string
	allocMoveFlagEnd   string
	allocMoveFlagRow   string
)

var allocMoveCmd = &cobra.Command{
	Use:     "mv ID",
	Aliases: []string{"move"},
	Short:   "Move or resize an allocation",
	Long: `Move an allocation to a new start, keeping its length, or give both
--start and --end to resize it. --row reassigns it to another project/user.`,
	Args: cobra.ExactArgs(1),
	RunE: runAllocMove,
}

// Edit flags.
var (
	allocEditFlagHours float64
	allocEditFlagLabel string
)

var allocEditCmd = &cobra.Command{
	Use:   "edit ID",
	Short: "Change the effort or label of an allocation",
	Args:  cobra.ExactArgs(1),
	RunE:  runAllocEdit,
}

var allocRemoveCmd = &cobra.Command{
	Use:     "rm ID",
	Aliases: []string{"remove", "delete"},
	Short:   "Delete an allocation",
	Args:    cobra.ExactArgs(1),
	RunE:    runAllocRemove,
}

func init() {
	f := allocAddCmd.Flags()
	f.StringVarP(&allocAddFlagProject, "project", "p", "", "Project SID (required)")
	f.StringVarP(&allocAddFlagUser, "user", "u", "", "User SID")
	f.StringVarP(&allocAddFlagStart, "start", "s", "", "Start time of a timed allocation")
	f.StringVarP(&allocAddFlagEnd, "end", "e", "", "End time of a timed allocation")
	f.StringVar(&allocAddFlagFrom, "from", "", "First day of a day allocation")
	f.StringVar(&allocAddFlagTo, "to", "", "Last day of a day allocation (default: --from)")
	f.Float64VarP(&allocAddFlagHours, "hours", "H", 0, "Effort in hours")
	f.StringVarP(&allocAddFlagLabel, "label", "l", "", "Label")
	f.StringVar(&allocAddFlagKind, "kind", "", "planned or reported (default: from the start time)")
	allocAddCmd.MarkFlagRequired("project")
	allocAddCmd.MarkFlagsMutuallyExclusive("start", "from")
	allocAddCmd.MarkFlagsMutuallyExclusive("end", "to")
	allocAddCmd.MarkFlagsOneRequired("start", "from")

	f = allocListCmd.Flags()
	f.StringVar(&allocListFlagFrom, "from", "this week", "Start of the range (date or period)")
	f.StringVar(&allocListFlagTo, "to", "", "End of the range, exclusive (default: end of --from's period)")
	f.StringVarP(&allocListFlagProject, "project", "p", "", "Only this project")
	f.StringVarP(&allocListFlagUser, "user", "u", "", "Only this user")
	f.StringVar(&allocListFlagKind, "kind", "", "Only planned or reported")
	f.IntVarP(&allocListFlagLimit, "limit", "n", 0, "Show at most this many")

	allocMoveCmd.Flags().StringVarP(&allocMoveFlagStart, "start", "s", "", "New start")
	allocMoveCmd.Flags().StringVarP(&allocMoveFlagEnd, "end", "e", "", "New end (default: keep the length)")
	allocMoveCmd.Flags().StringVarP(&allocMoveFlagRow, "row", "r", "", "New project/user")

	allocEditCmd.Flags().Float64VarP(&allocEditFlagHours, "hours", "H", 0, "New effort in hours")
	allocEditCmd.Flags().StringVarP(&allocEditFlagLabel, "label", "l", "", "New label")

	allocCmd.AddCommand(allocAddCmd, allocListCmd, allocMoveCmd, allocEditCmd, allocRemoveCmd)
	rootCmd.AddCommand(allocCmd)
}

func runAllocAdd(cmd *cobra.Command, args []string) error {
	cctx := cmd.Context()
	now := ctx.Clock.Now()

	project := parser.NormalizeSID(allocAddFlagProject)
	user := ""
	if allocAddFlagUser != "" {
		user = parser.NormalizeSID(allocAddFlagUser)
	}
	if err := lookupRow(project, user); err != nil {
		return err
	}
	kind, err := parseKind(allocAddFlagKind)
	if err != nil {
		return err
	}
	label := validate.SanitizeLabel(allocAddFlagLabel)
	if err := validate.Label(label); err != nil {
		return err
	}
	if cmd.Flags().Changed("hours") {
		if err := validate.Hours(allocAddFlagHours); err != nil {
			return err
		}
	}

	req := drag.CreateRequest{
		Row:   model.RowKey{Project: project, Owner: user},
		Hours: allocAddFlagHours,
		Label: label,
		Kind:  kind,
	}
	if allocAddFlagFrom != "" {
		req.Precision = model.PrecisionDay
		if req.Start, req.End, err = parseDays(allocAddFlagFrom, allocAddFlagTo, now); err != nil {
			return err
		}
		if req.Hours == 0 {
			req.Hours = ctx.Config.Grid.DefaultHours
		}
	} else {
		req.Precision = model.PrecisionMinute
		if req.Start, err = parser.ParseTimestamp(allocAddFlagStart, now); err != nil {
			return err
		}
		switch {
		case allocAddFlagEnd != "":
			if req.End, err = parser.ParseTimestamp(allocAddFlagEnd, now); err != nil {
				return err
			}
			if allocAddFlagHours != 0 {
				return errors.NewUserError("Both --end and --hours given", "Use one of --end or --hours")
			}
		case allocAddFlagHours > 0:
			req.End = req.Start
		default:
			return errors.NewUserErrorWithField("end", "",
				"A timed allocation needs an end", "Pass --end or --hours")
		}
	}
	// Allocation repeats the checks the reconciler makes, so errors come
	// back before the window is loaded.
	if _, err := req.Allocation(now); err != nil {
		return err
	}

	end := req.End
	if req.Precision == model.PrecisionMinute && req.Hours > 0 {
		end = req.Start.Add(time.Duration(req.Hours * float64(time.Hour)))
	}
	if err := ctx.Load(cctx, model.DateRange{Start: req.Start, End: end}); err != nil {
		return err
	}
	t, err := ctx.Submit(cctx, req)
	if err != nil {
		return err
	}
	return printCommitted(cctx, t)
}

// parseDays returns the midnight bounds of the inclusive day range from..to.
func parseDays(from, to string, now time.Time) (time.Time, time.Time, error) {
	start, err := parser.ParseDate(from, now)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	last := start
	if to != "" {
		if last, err = parser.ParseDate(to, now); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if last.Before(start) {
		return time.Time{}, time.Time{}, errors.NewValidationError(errors.ErrEndBeforeStart, "to", to)
	}
	return start, last.AddDate(0, 0, 1), nil
}

func parseKind(s string) (model.Kind, error) {
	if s == "" {
		return "", nil
	}
	k := model.Kind(s)
	if !k.Valid() {
		return "", errors.NewUserErrorWithField("kind", s, "Invalid kind", "Use 'planned' or 'reported'")
	}
	return k, nil
}

func runAllocList(cmd *cobra.Command, args []string) error {
	now := ctx.Clock.Now()
	rng, err := listRange(allocListFlagFrom, allocListFlagTo, now)
	if err != nil {
		return err
	}
	kind, err := parseKind(allocListFlagKind)
	if err != nil {
		return err
	}

	list, err := ctx.Allocations.List(storage.AllocationFilter{
		ProjectSID: allocListFlagProject,
		OwnerSID:   allocListFlagUser,
		Kind:       kind,
		Range:      rng,
		Limit:      allocListFlagLimit,
	})
	if err != nil {
		return err
	}
	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintAllocations(rng, list)
	}
	snap, err := aggregate.Snapshot(cmd.Context(), ctx.Directory)
	if err != nil {
		return err
	}
	f := ctx.CLIFormatter()
	f.Title(fmt.Sprintf("Allocations %s", rng))
	f.PrintAllocations(list, snap)
	return nil
}

// listRange resolves --from/--to. A period in from covers the whole period
// unless to is given.
func listRange(from, to string, now time.Time) (model.DateRange, error) {
	weekStart := ctx.Config.WeekStartDay()
	var rng model.DateRange
	if parser.IsPeriod(from) {
		rng = parser.PeriodRange(from, now, weekStart)
	} else {
		start, err := parser.ParseDate(from, now)
		if err != nil {
			return rng, err
		}
		rng = model.DateRange{Start: start, End: start.AddDate(0, 0, 1)}
	}
	if to != "" {
		end, err := parser.ParseDate(to, now)
		if err != nil {
			return rng, err
		}
		if !end.After(rng.Start) {
			return rng, errors.NewValidationError(errors.ErrEndBeforeStart, "to", to)
		}
		rng.End = end
	}
	return rng, nil
}

func runAllocMove(cmd *cobra.Command, args []string) error {
	cctx := cmd.Context()
	now := ctx.Clock.Now()
	rec, err := ctx.Allocations.Get(args[0])
	if err != nil {
		return err
	}
	if allocMoveFlagStart == "" && allocMoveFlagEnd == "" && allocMoveFlagRow == "" {
		return errors.NewUserError("Nothing to change", "Pass --start, --end or --row")
	}

	start, end := rec.Start, rec.End
	if allocMoveFlagStart != "" {
		if start, err = parseEdge(allocMoveFlagStart, rec, now); err != nil {
			return err
		}
		end = start.Add(rec.End.Sub(rec.Start))
	}
	if allocMoveFlagEnd != "" {
		if end, err = parseEdge(allocMoveFlagEnd, rec, now); err != nil {
			return err
		}
		if rec.Precision == model.PrecisionDay {
			end = end.AddDate(0, 0, 1)
		}
	}
	if !end.After(start) {
		return errors.NewValidationError(errors.ErrEndBeforeStart, "end", end.Format(time.RFC3339))
	}

	req := drag.Retime(rec, start, end)
	if allocMoveFlagRow != "" {
		key, err := parser.ParseRowKey(allocMoveFlagRow)
		if err != nil {
			return err
		}
		if err := lookupRow(key.Project, key.Owner); err != nil {
			return err
		}
		if key.Project != rec.ProjectSID {
			req.Patch.ProjectSID = &key.Project
		}
		if key.Owner != rec.OwnerSID {
			req.Patch.OwnerSID = &key.Owner
		}
	}
	if req.Patch.IsEmpty() {
		return printUnchanged(rec)
	}

	span := rec.Span()
	if start.Before(span.Start) {
		span.Start = start
	}
	if end.After(span.End) {
		span.End = end
	}
	return submitUpdate(cctx, span, req)
}

// parseEdge parses a new start or end; day allocations snap to midnight.
func parseEdge(s string, rec *model.Allocation, now time.Time) (time.Time, error) {
	if rec.Precision == model.PrecisionDay {
		return parser.ParseDate(s, now)
	}
	return parser.ParseTimestamp(s, now)
}

func runAllocEdit(cmd *cobra.Command, args []string) error {
	rec, err := ctx.Allocations.Get(args[0])
	if err != nil {
		return err
	}
	label := rec.Label
	if cmd.Flags().Changed("label") {
		label = validate.SanitizeLabel(allocEditFlagLabel)
		if err := validate.Label(label); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("hours") {
		if err := validate.Hours(allocEditFlagHours); err != nil {
			return err
		}
	}

	req, err := drag.Edit(rec, allocEditFlagHours, label)
	if err != nil {
		return err
	}
	if req.Patch.IsEmpty() {
		return printUnchanged(rec)
	}
	span := rec.Span()
	if req.Patch.End != nil && req.Patch.End.After(span.End) {
		span.End = *req.Patch.End
	}
	return submitUpdate(cmd.Context(), span, req)
}

func runAllocRemove(cmd *cobra.Command, args []string) error {
	cctx := cmd.Context()
	rec, err := ctx.Allocations.Get(args[0])
	if err != nil {
		return err
	}
	if err := ctx.Load(cctx, rec.Span()); err != nil {
		return err
	}
	t, err := ctx.Submit(cctx, drag.DeleteRequest{ID: rec.ID})
	if err != nil {
		return err
	}
	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintCommit(string(t.Op()), "ok", rec, rec.ID)
	}
	ctx.CLIFormatter().Success(fmt.Sprintf("Deleted allocation %s", rec.ID))
	return nil
}

// submitUpdate loads span, which must cover the record before and after the
// change, and commits req.
func submitUpdate(cctx context.Context, span model.DateRange, req drag.UpdateRequest) error {
	if err := ctx.Load(cctx, span); err != nil {
		return err
	}
	t, err := ctx.Submit(cctx, req)
	if err != nil {
		return err
	}
	return printCommitted(cctx, t)
}

// printCommitted prints the record a finished create or update left in the store.
func printCommitted(cctx context.Context, t *reconcile.Ticket) error {
	rec, ok := ctx.Store.Get(t.ID())
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "allocation %s", t.ID())
	}
	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintCommit(string(t.Op()), "ok", rec, t.ID())
	}
	snap, err := aggregate.Snapshot(cctx, ctx.Directory)
	if err != nil {
		return err
	}
	f := ctx.CLIFormatter()
	verb := "Created"
	if t.Op() == reconcile.OpUpdate {
		verb = "Updated"
	}
	f.Success(fmt.Sprintf("%s allocation %s", verb, rec.ID))
	f.PrintAllocation(rec, snap)
	return nil
}

func printUnchanged(rec *model.Allocation) error {
	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintCommit(string(reconcile.OpUpdate), "unchanged", rec, rec.ID)
	}
	ctx.CLIFormatter().Muted(fmt.Sprintf("Allocation %s is unchanged.", rec.ID))
	return nil
}
