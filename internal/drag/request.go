package drag

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/manav03panchal/timegrid/internal/errors"
	"github.com/manav03panchal/timegrid/internal/model"
)

// DefaultDurationHours is the effort offered when confirming a drag-create.
const DefaultDurationHours = 8

// Request is the outcome of a finished gesture or an explicit user action.
type Request interface {
	request()
}

// CreateRequest asks for a new allocation on Row over [Start, End).
// Hours, Label and Kind are filled in by whoever confirms the request.
type CreateRequest struct {
	Row                  model.RowKey
	Start                time.Time
	End                  time.Time
	DefaultDurationHours int
	Precision            model.Precision

	Hours float64
	Label string
	// Kind is derived from the clock when empty.
	Kind model.Kind
}

// UpdateRequest changes the fields set in Patch on record ID.
type UpdateRequest struct {
	ID    string
	Patch model.AllocationPatch
}

// SelectRequest is emitted by a click on a record without dragging.
type SelectRequest struct {
	ID string
}

// DeleteRequest removes record ID.
type DeleteRequest struct {
	ID string
}

func (CreateRequest) request() {}
func (UpdateRequest) request() {}
func (SelectRequest) request() {}
func (DeleteRequest) request() {}

// SpanMinutes returns the length of the requested span.
func (r CreateRequest) SpanMinutes() int {
	return model.SpanMinutes(r.Start, r.End)
}

// Allocation validates the request and builds the record to commit.
// Day-precision requests take their effort from Hours; minute-precision
// requests with Hours set end Hours after Start.
func (r CreateRequest) Allocation(now time.Time) (*model.Allocation, error) {
	if r.Row.Project == "" {
		return nil, errors.NewValidationError(errors.ErrEmptyRowKey, "project", r.Row.String())
	}
	if r.Hours < 0 || math.IsNaN(r.Hours) || math.IsInf(r.Hours, 0) {
		return nil, errors.NewValidationError(errors.ErrInvalidHours, "hours", formatHours(r.Hours))
	}

	start, end := r.Start, r.End
	minutes := int(math.Round(r.Hours * 60))
	precision := r.Precision
	if precision == "" {
		precision = model.PrecisionMinute
	}
	if precision == model.PrecisionMinute && minutes > 0 {
		end = start.Add(time.Duration(minutes) * time.Minute)
	}
	if !end.After(start) {
		return nil, errors.NewValidationError(errors.ErrEndBeforeStart, "end", end.Format(time.RFC3339))
	}
	if precision == model.PrecisionDay {
		if minutes <= 0 || minutes > model.SpanMinutes(start, end) {
			return nil, errors.NewValidationError(errors.ErrInvalidHours, "hours", formatHours(r.Hours))
		}
	}

	kind := r.Kind
	switch {
	case kind == "":
		kind = model.KindAt(start, now)
	case !kind.Valid():
		return nil, errors.NewUserErrorWithField("kind", string(kind),
			"Invalid kind", "Use 'planned' or 'reported'")
	case kind == model.KindPlanned && !start.After(now):
		return nil, errors.NewValidationError(errors.ErrPlannedInPast, "start", start.Format(time.RFC3339))
	}

	if precision == model.PrecisionDay {
		return model.NewDayAllocation(r.Row.Project, r.Row.Owner, start, end, minutes, kind, r.Label), nil
	}
	return model.NewAllocation(r.Row.Project, r.Row.Owner, start, end, kind, r.Label), nil
}

func formatHours(h float64) string {
	return strconv.FormatFloat(h, 'f', -1, 64)
}

// Retime builds the update moving rec to [start, end). The duration follows
// rec's precision.
func Retime(rec *model.Allocation, start, end time.Time) UpdateRequest {
	return UpdateRequest{ID: rec.ID, Patch: model.Diff(rec, rec.Retimed(start, end))}
}

func (r UpdateRequest) String() string {
	return fmt.Sprintf("update %s", r.ID)
}

// Edit builds the update setting the effort and label of rec. Hours of zero
// keep the current effort; a minute-precision record is lengthened or
// shortened from its start.
func Edit(rec *model.Allocation, hours float64, label string) (UpdateRequest, error) {
	if hours < 0 || math.IsNaN(hours) || math.IsInf(hours, 0) {
		return UpdateRequest{}, errors.NewValidationError(errors.ErrInvalidHours, "hours", formatHours(hours))
	}
	var patch model.AllocationPatch
	if label != rec.Label {
		patch.Label = &label
	}
	if hours > 0 {
		minutes := int(math.Round(hours * 60))
		if rec.Precision == model.PrecisionDay {
			patch.DurationMinutes = &minutes
		} else {
			end := rec.Start.Add(time.Duration(minutes) * time.Minute)
			patch.End = &end
		}
	}
	return UpdateRequest{ID: rec.ID, Patch: patch}, nil
}
