package testutil

import (
	"time"

	"github.com/manav03panchal/timegrid/internal/model"
)

// Monday is the anchor used across tests: Monday 2024-01-01, UTC.
var Monday = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Day returns midnight n days after Monday plus offset.
func Day(n int, offset time.Duration) time.Time {
	return Monday.AddDate(0, 0, n).Add(offset)
}

// AllocationOption customizes a fixture allocation.
type AllocationOption func(*model.Allocation)

// WithProject sets the project.
func WithProject(sid string) AllocationOption {
	return func(a *model.Allocation) { a.ProjectSID = sid }
}

// WithOwner sets the owner.
func WithOwner(sid string) AllocationOption {
	return func(a *model.Allocation) { a.OwnerSID = sid }
}

// WithKind sets the kind.
func WithKind(k model.Kind) AllocationOption {
	return func(a *model.Allocation) { a.Kind = k }
}

// WithLabel sets the label.
func WithLabel(l string) AllocationOption {
	return func(a *model.Allocation) { a.Label = l }
}

// Allocation returns a reported minute-precision record on website/alice.
func Allocation(id string, start time.Time, d time.Duration, opts ...AllocationOption) *model.Allocation {
	a := model.NewAllocation("website", "alice", start, start.Add(d), model.KindReported, "")
	a.ID = id
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Directory entities used by row tests.
var (
	Clients  = []model.Entity{{ID: "acme", Name: "Acme"}}
	Projects = []model.Entity{
		{ID: "website", Name: "Website", GroupID: "acme", ColorTag: "#3366ff"},
		{ID: "api", Name: "API", GroupID: "acme"},
	}
	Users = []model.Entity{{ID: "alice", Name: "Alice"}, {ID: "bob", Name: "Bob"}}
)
