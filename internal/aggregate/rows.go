package aggregate

import (
	"context"
	"fmt"
	"sort"

	"github.com/manav03panchal/timegrid/internal/model"
)

// GroupBy selects the parent level of the row tree.
type GroupBy string

const (
	// GroupByProject nests members under projects, projects under clients.
	GroupByProject GroupBy = "project"
	// GroupByMember nests projects under members.
	GroupByMember GroupBy = "member"
)

// Level is the depth class of a row.
type Level int

const (
	LevelGroup Level = iota
	LevelParent
	LevelChild
)

func (l Level) String() string {
	switch l {
	case LevelGroup:
		return "group"
	case LevelParent:
		return "parent"
	case LevelChild:
		return "child"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// NodeID identifies a row across rebuilds. It is comparable and used as the
// key of the expanded set.
type NodeID struct {
	Level Level
	Group string
	Key   model.RowKey
}

// Expanded is the set of nodes whose children are visible.
type Expanded map[NodeID]struct{}

// Has reports whether id is expanded.
func (e Expanded) Has(id NodeID) bool {
	_, ok := e[id]
	return ok
}

// Toggle flips id and reports the new state.
func (e Expanded) Toggle(id NodeID) bool {
	if e.Has(id) {
		delete(e, id)
		return false
	}
	e[id] = struct{}{}
	return true
}

// ExpandLevel marks every expandable row at level in rows (and below) as expanded.
func (e Expanded) ExpandLevel(rows []*Row, level Level) {
	for _, r := range rows {
		if r.Level == level && r.Expandable {
			e[r.ID] = struct{}{}
		}
		e.ExpandLevel(r.Children, level)
	}
}

// Row is one line of the grid.
type Row struct {
	ID    NodeID
	Level Level
	Label string
	Color string
	// Key is the lane the row edits. Group rows have a zero key.
	Key          model.RowKey
	TotalMinutes int
	Expandable   bool
	Expanded     bool
	Children     []*Row
}

// Editable reports whether allocations may be created on the row.
func (r *Row) Editable() bool {
	return r.Level != LevelGroup && !r.Key.IsZero()
}

// Options parameterize BuildRows.
type Options struct {
	GroupBy GroupBy
	Window  model.GridWindow
	// ShowEmpty keeps parents with no allocations in the window.
	ShowEmpty bool
	// IncludeMembers lists project members as children even without allocations.
	IncludeMembers bool
}

const noClient = "No client"

// BuildRows returns the row tree for the window. Parents are ordered by name;
// a child appears only when an allocation links it to its parent and the
// parent is expanded.
func (e *Engine) BuildRows(ctx context.Context, dir Directory, expanded Expanded, opts Options) ([]*Row, error) {
	snap, ok := dir.(*StaticDirectory)
	if !ok {
		var err error
		if snap, err = Snapshot(ctx, dir); err != nil {
			return nil, err
		}
	}
	if expanded == nil {
		expanded = Expanded{}
	}
	if opts.GroupBy == GroupByMember {
		return e.memberRows(snap, expanded, opts), nil
	}
	return e.projectRows(snap, expanded, opts), nil
}

func (e *Engine) projectRows(snap *StaticDirectory, expanded Expanded, opts Options) []*Row {
	r := opts.Window.Range()
	users := sorted(snap.Users)
	byClient := make(map[string][]*Row)

	for _, p := range sorted(snap.Projects) {
		key := model.ProjectRow(p.ID)
		linked := e.linkedOwners(key, r)
		if opts.IncludeMembers {
			for _, u := range snap.Memberships[p.ID] {
				linked[u] = struct{}{}
			}
		}
		row := &Row{
			ID:           NodeID{Level: LevelParent, Group: p.GroupID, Key: key},
			Level:        LevelParent,
			Label:        p.Name,
			Color:        p.ColorTag,
			Key:          key,
			TotalMinutes: e.TotalMinutes(key, r),
			Expandable:   len(linked) > 0,
		}
		if row.TotalMinutes == 0 && !opts.ShowEmpty && len(linked) == 0 {
			continue
		}
		if row.Expandable && expanded.Has(row.ID) {
			row.Expanded = true
			for _, u := range users {
				if _, ok := linked[u.ID]; !ok {
					continue
				}
				ck := model.MemberRow(p.ID, u.ID)
				row.Children = append(row.Children, &Row{
					ID:           NodeID{Level: LevelChild, Group: p.GroupID, Key: ck},
					Level:        LevelChild,
					Label:        u.Name,
					Color:        u.ColorTag,
					Key:          ck,
					TotalMinutes: e.TotalMinutes(ck, r),
				})
			}
		}
		byClient[p.GroupID] = append(byClient[p.GroupID], row)
	}

	var out []*Row
	appendGroup := func(id, label string) {
		projects := byClient[id]
		if len(projects) == 0 {
			return
		}
		g := &Row{
			ID:         NodeID{Level: LevelGroup, Group: id},
			Level:      LevelGroup,
			Label:      label,
			Expandable: true,
		}
		for _, p := range projects {
			g.TotalMinutes += p.TotalMinutes
		}
		if expanded.Has(g.ID) {
			g.Expanded = true
			g.Children = projects
		}
		out = append(out, g)
		delete(byClient, id)
	}
	for _, c := range sorted(snap.Clients) {
		appendGroup(c.ID, c.Name)
	}
	// Projects whose client is unknown or unset go last.
	orphans := byClient[""]
	for id, rows := range byClient {
		if id != "" {
			orphans = append(orphans, rows...)
		}
	}
	byClient[""] = reorder(orphans, snap.Projects)
	appendGroup("", noClient)
	return out
}

func (e *Engine) memberRows(snap *StaticDirectory, expanded Expanded, opts Options) []*Row {
	r := opts.Window.Range()
	projects := sorted(snap.Projects)
	memberOf := make(map[string]map[string]struct{})
	if opts.IncludeMembers {
		for p, users := range snap.Memberships {
			for _, u := range users {
				if memberOf[u] == nil {
					memberOf[u] = make(map[string]struct{})
				}
				memberOf[u][p] = struct{}{}
			}
		}
	}

	var out []*Row
	for _, u := range sorted(snap.Users) {
		key := model.OwnerRow(u.ID)
		linked := e.linkedProjects(key, r)
		for p := range memberOf[u.ID] {
			linked[p] = struct{}{}
		}
		row := &Row{
			ID:           NodeID{Level: LevelParent, Key: key},
			Level:        LevelParent,
			Label:        u.Name,
			Color:        u.ColorTag,
			Key:          key,
			TotalMinutes: e.TotalMinutes(key, r),
			Expandable:   len(linked) > 0,
		}
		if row.TotalMinutes == 0 && !opts.ShowEmpty && len(linked) == 0 {
			continue
		}
		if row.Expandable && expanded.Has(row.ID) {
			row.Expanded = true
			for _, p := range projects {
				if _, ok := linked[p.ID]; !ok {
					continue
				}
				ck := model.MemberRow(p.ID, u.ID)
				row.Children = append(row.Children, &Row{
					ID:           NodeID{Level: LevelChild, Key: ck},
					Level:        LevelChild,
					Label:        p.Name,
					Color:        p.ColorTag,
					Key:          ck,
					TotalMinutes: e.TotalMinutes(ck, r),
				})
			}
		}
		out = append(out, row)
	}
	return out
}

func (e *Engine) linkedOwners(key model.RowKey, r model.DateRange) map[string]struct{} {
	out := make(map[string]struct{})
	e.store.Each(key, r, func(a *model.Allocation) {
		if a.OwnerSID != "" {
			out[a.OwnerSID] = struct{}{}
		}
	})
	return out
}

func (e *Engine) linkedProjects(key model.RowKey, r model.DateRange) map[string]struct{} {
	out := make(map[string]struct{})
	e.store.Each(key, r, func(a *model.Allocation) {
		if a.ProjectSID != "" {
			out[a.ProjectSID] = struct{}{}
		}
	})
	return out
}

func sorted(es []model.Entity) []model.Entity {
	out := append([]model.Entity(nil), es...)
	model.SortEntities(out)
	return out
}

// reorder puts rows back into the name order of projects.
func reorder(rows []*Row, projects []model.Entity) []*Row {
	pos := make(map[string]int, len(rows))
	for i, p := range sorted(projects) {
		pos[p.ID] = i
	}
	out := append([]*Row(nil), rows...)
	sort.SliceStable(out, func(i, j int) bool {
		return pos[out[i].Key.Project] < pos[out[j].Key.Project]
	})
	return out
}

// Flatten returns the visible rows in display order.
func Flatten(rows []*Row) []*Row {
	var out []*Row
	var walk func([]*Row)
	walk = func(rs []*Row) {
		for _, r := range rs {
			out = append(out, r)
			if r.Expanded {
				walk(r.Children)
			}
		}
	}
	walk(rows)
	return out
}

// Depth returns the indentation of a row for the given grouping.
func Depth(r *Row, by GroupBy) int {
	if by == GroupByMember {
		return int(r.Level) - 1
	}
	return int(r.Level)
}
