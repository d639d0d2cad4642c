package output

import (
	"time"

	"github.com/manav03panchal/timegrid/internal/model"
)

// JSONFormatter provides JSON-specific formatting.
type JSONFormatter struct {
	*Formatter
}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter(f *Formatter) *JSONFormatter {
	return &JSONFormatter{Formatter: f}
}

// AllocationOutput represents an allocation in JSON output.
type AllocationOutput struct {
	ID              string  `json:"id"`
	ProjectSID      string  `json:"project_sid"`
	OwnerSID        string  `json:"owner_sid,omitempty"`
	Start           string  `json:"start"`
	End             string  `json:"end"`
	DurationMinutes int     `json:"duration_minutes"`
	Hours           float64 `json:"hours"`
	Kind            string  `json:"kind"`
	Precision       string  `json:"precision"`
	Label           string  `json:"label,omitempty"`
}

// NewAllocationOutput creates an AllocationOutput from an Allocation.
func NewAllocationOutput(a *model.Allocation) *AllocationOutput {
	return &AllocationOutput{
		ID:              a.ID,
		ProjectSID:      a.ProjectSID,
		OwnerSID:        a.OwnerSID,
		Start:           a.Start.Format(time.RFC3339),
		End:             a.End.Format(time.RFC3339),
		DurationMinutes: a.DurationMinutes,
		Hours:           float64(a.DurationMinutes) / 60,
		Kind:            string(a.Kind),
		Precision:       string(a.Precision),
		Label:           a.Label,
	}
}

// RangeOutput is a half-open date range in JSON.
type RangeOutput struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func newRangeOutput(r model.DateRange) *RangeOutput {
	if r.IsZero() {
		return nil
	}
	out := &RangeOutput{}
	if !r.Start.IsZero() {
		out.Start = FormatDate(r.Start)
	}
	if !r.End.IsZero() {
		out.End = FormatDate(r.End)
	}
	return out
}

// AllocationsResponse represents a list of allocations.
type AllocationsResponse struct {
	Range        *RangeOutput        `json:"range,omitempty"`
	Allocations  []*AllocationOutput `json:"allocations"`
	Total        int                 `json:"total"`
	TotalMinutes int                 `json:"total_minutes"`
}

// NewAllocationsResponse creates an AllocationsResponse.
func NewAllocationsResponse(r model.DateRange, list []*model.Allocation) *AllocationsResponse {
	resp := &AllocationsResponse{
		Range:       newRangeOutput(r),
		Allocations: make([]*AllocationOutput, 0, len(list)),
		Total:       len(list),
	}
	for _, a := range list {
		resp.Allocations = append(resp.Allocations, NewAllocationOutput(a))
		resp.TotalMinutes += a.DurationMinutes
	}
	return resp
}

// TotalsRowOutput is one line of a totals report.
type TotalsRowOutput struct {
	Label        string `json:"label"`
	Depth        int    `json:"depth"`
	ProjectSID   string `json:"project_sid,omitempty"`
	OwnerSID     string `json:"owner_sid,omitempty"`
	TotalMinutes int    `json:"total_minutes"`
	Daily        []int  `json:"daily_minutes,omitempty"`
}

// TotalsResponse represents a totals report.
type TotalsResponse struct {
	Range   *RangeOutput       `json:"range"`
	GroupBy string             `json:"group_by"`
	Days    []string           `json:"days,omitempty"`
	Rows    []*TotalsRowOutput `json:"rows"`
}

// NewTotalsResponse creates a TotalsResponse.
func NewTotalsResponse(w model.GridWindow, groupBy string, rows []TotalsRow) *TotalsResponse {
	resp := &TotalsResponse{
		Range:   newRangeOutput(w.Range()),
		GroupBy: groupBy,
		Rows:    make([]*TotalsRowOutput, 0, len(rows)),
	}
	daily := false
	for _, r := range rows {
		resp.Rows = append(resp.Rows, &TotalsRowOutput{
			Label:        r.Label,
			Depth:        r.Depth,
			ProjectSID:   r.Key.Project,
			OwnerSID:     r.Key.Owner,
			TotalMinutes: r.TotalMinutes,
			Daily:        r.Cells,
		})
		daily = daily || r.Cells != nil
	}
	if daily {
		for i := 0; i < w.Span(); i++ {
			resp.Days = append(resp.Days, FormatDate(w.Anchor.AddDate(0, 0, i)))
		}
	}
	return resp
}

// EntitiesResponse lists directory entries of one kind.
type EntitiesResponse struct {
	Kind     string         `json:"kind"`
	Entities []model.Entity `json:"entities"`
}

// CommitResponse reports the outcome of a change submitted through the
// reconciler.
type CommitResponse struct {
	Status     string            `json:"status"`
	Op         string            `json:"op"`
	ID         string            `json:"id,omitempty"`
	Allocation *AllocationOutput `json:"allocation,omitempty"`
}

// ErrorResponse represents an error in JSON output.
type ErrorResponse struct {
	Status     string `json:"status"`
	Error      string `json:"error"`
	Field      string `json:"field,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// PrintAllocations outputs allocations in JSON format.
func (j *JSONFormatter) PrintAllocations(r model.DateRange, list []*model.Allocation) error {
	return j.JSON(NewAllocationsResponse(r, list))
}

// PrintTotals outputs a totals report in JSON format.
func (j *JSONFormatter) PrintTotals(w model.GridWindow, groupBy string, rows []TotalsRow) error {
	return j.JSON(NewTotalsResponse(w, groupBy, rows))
}

// PrintEntities outputs directory entries in JSON format.
func (j *JSONFormatter) PrintEntities(kind string, es []model.Entity) error {
	if es == nil {
		es = []model.Entity{}
	}
	return j.JSON(EntitiesResponse{Kind: kind, Entities: es})
}

// PrintCommit outputs the result of a create, update or delete.
func (j *JSONFormatter) PrintCommit(op, status string, a *model.Allocation, id string) error {
	resp := CommitResponse{Status: status, Op: op, ID: id}
	if a != nil {
		resp.Allocation = NewAllocationOutput(a)
		if resp.ID == "" {
			resp.ID = a.ID
		}
	}
	return j.JSON(resp)
}

// PrintError outputs an error in JSON format.
func (j *JSONFormatter) PrintError(err error, field, suggestion string) error {
	return j.JSON(ErrorResponse{
		Status:     "error",
		Error:      err.Error(),
		Field:      field,
		Suggestion: suggestion,
	})
}
