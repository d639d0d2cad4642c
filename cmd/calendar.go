package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/manav03panchal/timegrid/internal/aggregate"
	"github.com/manav03panchal/timegrid/internal/logging"
	"github.com/manav03panchal/timegrid/internal/model"
	"github.com/manav03panchal/timegrid/internal/parser"
	"github.com/manav03panchal/timegrid/internal/tui"
)

// Calendar command flags.
var (
	calendarFlagAnchor string
	calendarFlagDay    bool
	calendarFlagRow    string
)

// calendarCmd opens the week or day calendar.
var calendarCmd = &cobra.Command{
	Use:     "calendar",
	Aliases: []string{"cal", "week"},
	Short:   "Open the week calendar",
	Long: `Open the interactive calendar. Timed allocations are blocks on a
time-of-day canvas; day allocations are listed on the all-day line. Drag a
block to move it and drag its top or bottom edge to resize it.

The row filter takes "project", "project/user" or "@user".

Examples:
  timegrid calendar
  timegrid calendar --row @alice --anchor tomorrow --day
  timegrid calendar --row website`,
	Args: cobra.NoArgs,
	RunE: runCalendar,
}

func init() {
	calendarCmd.Flags().StringVarP(&calendarFlagAnchor, "anchor", "a", "", "Show the week containing this date")
	calendarCmd.Flags().BoolVar(&calendarFlagDay, "day", false, "Show a single day")
	calendarCmd.Flags().StringVarP(&calendarFlagRow, "row", "r", "", "Only show this project, member or user")
	rootCmd.AddCommand(calendarCmd)
}

func runCalendar(cmd *cobra.Command, args []string) error {
	cctx := cmd.Context()
	now := ctx.Clock.Now()

	var lane model.RowKey
	if calendarFlagRow != "" {
		key, err := parser.ParseRowKey(calendarFlagRow)
		if err != nil {
			return err
		}
		lane = key
	}

	anchor := now
	if calendarFlagAnchor != "" {
		t, err := parser.ParseDate(calendarFlagAnchor, now)
		if err != nil {
			return err
		}
		anchor = t
	}

	mode := model.ViewMode(ctx.Config.Calendar.Mode)
	if calendarFlagDay {
		mode = model.ViewCalendarDay
	}

	snap, err := aggregate.Snapshot(cctx, ctx.Directory)
	if err != nil {
		return err
	}

	restore, err := logToFile()
	if err != nil {
		return err
	}
	defer restore()

	logging.Info("opening calendar",
		logging.KeyOperation, "calendar", "mode", string(mode), "anchor", anchor.Format(time.DateOnly), "row", lane.String())
	return tui.RunCalendar(cctx, tui.CalendarOptions{
		Reconciler:   ctx.Reconciler,
		Directory:    snap,
		Lane:         lane,
		Scale:        ctx.CalendarScale(),
		Mode:         mode,
		WeekStart:    ctx.Config.WeekStartDay(),
		Anchor:       anchor,
		DayStartHour: ctx.Config.Calendar.DayStartHour,
		Events:       ctx.Events.Events(),
		Clock:        ctx.Clock,
	})
}
