package aggregate

import (
	"context"
	"fmt"

	"github.com/manav03panchal/timegrid/internal/model"
)

// Directory is the read-only source of projects, users, clients and memberships.
type Directory interface {
	ListProjects(ctx context.Context) ([]model.Entity, error)
	ListUsers(ctx context.Context) ([]model.Entity, error)
	ListClients(ctx context.Context) ([]model.Entity, error)
	ListMemberships(ctx context.Context, projectSID string) ([]string, error)
}

// StaticDirectory is an in-memory Directory. Snapshot copies a live directory
// into one so re-rendering does not hit the backing store.
type StaticDirectory struct {
	Projects    []model.Entity
	Users       []model.Entity
	Clients     []model.Entity
	Memberships map[string][]string // project SID -> user SIDs
}

// Snapshot reads every list from dir once.
func Snapshot(ctx context.Context, dir Directory) (*StaticDirectory, error) {
	projects, err := dir.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	users, err := dir.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	clients, err := dir.ListClients(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing clients: %w", err)
	}
	members := make(map[string][]string, len(projects))
	for _, p := range projects {
		ms, err := dir.ListMemberships(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("listing members of %s: %w", p.ID, err)
		}
		members[p.ID] = ms
	}
	return &StaticDirectory{Projects: projects, Users: users, Clients: clients, Memberships: members}, nil
}

func (d *StaticDirectory) ListProjects(context.Context) ([]model.Entity, error) {
	return append([]model.Entity(nil), d.Projects...), nil
}

func (d *StaticDirectory) ListUsers(context.Context) ([]model.Entity, error) {
	return append([]model.Entity(nil), d.Users...), nil
}

func (d *StaticDirectory) ListClients(context.Context) ([]model.Entity, error) {
	return append([]model.Entity(nil), d.Clients...), nil
}

func (d *StaticDirectory) ListMemberships(_ context.Context, projectSID string) ([]string, error) {
	return append([]string(nil), d.Memberships[projectSID]...), nil
}

// Name returns the display name of a project or user id, falling back to the id.
func (d *StaticDirectory) Name(id string) string {
	for _, es := range [][]model.Entity{d.Projects, d.Users, d.Clients} {
		for _, e := range es {
			if e.ID == id {
				return e.Name
			}
		}
	}
	return id
}
