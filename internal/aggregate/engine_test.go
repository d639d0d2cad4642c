package aggregate

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/manav03panchal/timegrid/internal/allocation"
	"github.com/manav03panchal/timegrid/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var monday = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func day(n, hour int) time.Time {
	return monday.AddDate(0, 0, n).Add(time.Duration(hour) * time.Hour)
}

func put(t *testing.T, s *allocation.Store, id, project, owner string, start time.Time, d time.Duration) {
	t.Helper()
	a := model.NewAllocation(project, owner, start, start.Add(d), model.KindReported, "")
	a.ID = id
	require.NoError(t, s.Upsert(a))
}

func directory() *StaticDirectory {
	return &StaticDirectory{
		Clients: []model.Entity{{ID: "acme", Name: "Acme"}, {ID: "beta", Name: "Beta Corp"}},
		Projects: []model.Entity{
			{ID: "website", Name: "Website", GroupID: "acme"},
			{ID: "api", Name: "API", GroupID: "acme"},
			{ID: "ads", Name: "Ads", GroupID: "beta"},
			{ID: "misc", Name: "Misc"},
		},
		Users: []model.Entity{
			{ID: "bob", Name: "Bob"},
			{ID: "alice", Name: "Alice"},
			{ID: "carol", Name: "Carol"},
		},
		Memberships: map[string][]string{"website": {"alice", "bob", "carol"}},
	}
}

// =============================================================================
// TotalMinutes Tests
// =============================================================================

func TestTotalMinutes(t *testing.T) {
	s := allocation.NewStore()
	for i := 0; i < 3; i++ {
		put(t, s, fmt.Sprintf("a%d", i), "website", "alice", day(i, 9), 3*time.Hour)
	}
	put(t, s, "outside", "website", "alice", day(30, 9), 3*time.Hour)
	put(t, s, "other", "api", "alice", day(1, 9), time.Hour)
	e := New(s)
	w := model.NewGridWindow(monday, model.ViewGrid)

	assert.Equal(t, 540, e.TotalMinutes(model.ProjectRow("website"), w.Range()))
	assert.Equal(t, 600, e.TotalMinutes(model.OwnerRow("alice"), w.Range()))
	assert.Zero(t, e.TotalMinutes(model.ProjectRow("ads"), w.Range()))
}

func TestTotalMinutesEqualsSumOfMembers(t *testing.T) {
	s := allocation.NewStore()
	put(t, s, "a", "website", "alice", day(0, 9), 2*time.Hour)
	put(t, s, "b", "website", "bob", day(1, 9), 5*time.Hour)
	put(t, s, "c", "website", "bob", day(2, 9), 90*time.Minute)
	e := New(s)
	r := model.NewGridWindow(monday, model.ViewGrid).Range()

	sum := e.TotalMinutes(model.MemberRow("website", "alice"), r) +
		e.TotalMinutes(model.MemberRow("website", "bob"), r)
	assert.Equal(t, e.TotalMinutes(model.ProjectRow("website"), r), sum)
}

// =============================================================================
// CellMinutes Tests
// =============================================================================

func TestCellMinutes(t *testing.T) {
	w := model.NewGridWindow(monday, model.ViewCalendarWeek)

	t.Run("day_precision_spread", func(t *testing.T) {
		s := allocation.NewStore()
		a := model.NewDayAllocation("website", "alice", day(2, 0), day(5, 0), 725, model.KindPlanned, "")
		a.ID = "x"
		require.NoError(t, s.Upsert(a))

		cells := New(s).CellMinutes(model.ProjectRow("website"), w)
		assert.Equal(t, []int{0, 0, 242, 242, 241, 0, 0}, cells)
	})

	t.Run("minute_precision_overnight", func(t *testing.T) {
		s := allocation.NewStore()
		put(t, s, "n", "website", "alice", day(0, 22), 4*time.Hour)

		cells := New(s).CellMinutes(model.ProjectRow("website"), w)
		assert.Equal(t, 120, cells[0])
		assert.Equal(t, 120, cells[1])
	})

	t.Run("clipped_to_window", func(t *testing.T) {
		s := allocation.NewStore()
		a := model.NewDayAllocation("website", "alice", day(5, 0), day(9, 0), 4*480, model.KindPlanned, "")
		a.ID = "y"
		require.NoError(t, s.Upsert(a))

		cells := New(s).CellMinutes(model.ProjectRow("website"), w)
		assert.Equal(t, []int{0, 0, 0, 0, 0, 480, 480}, cells)
	})
}

// =============================================================================
// BuildRows Tests
// =============================================================================

func TestBuildRowsByProject(t *testing.T) {
	s := allocation.NewStore()
	put(t, s, "a", "website", "bob", day(0, 9), time.Hour)
	put(t, s, "b", "website", "alice", day(1, 9), 2*time.Hour)
	put(t, s, "c", "ads", "carol", day(2, 9), time.Hour)
	e := New(s)
	opts := Options{GroupBy: GroupByProject, Window: model.NewGridWindow(monday, model.ViewGrid)}
	ctx := context.Background()

	t.Run("collapsed_groups", func(t *testing.T) {
		rows, err := e.BuildRows(ctx, directory(), nil, opts)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "Acme", rows[0].Label)
		assert.Equal(t, 180, rows[0].TotalMinutes)
		assert.Nil(t, rows[0].Children)
		assert.Equal(t, "Beta Corp", rows[1].Label)
	})

	t.Run("expanded_project_lists_linked_members_by_name", func(t *testing.T) {
		exp := Expanded{}
		exp[NodeID{Level: LevelGroup, Group: "acme"}] = struct{}{}
		exp[NodeID{Level: LevelParent, Group: "acme", Key: model.ProjectRow("website")}] = struct{}{}

		rows, err := e.BuildRows(ctx, directory(), exp, opts)
		require.NoError(t, err)
		flat := Flatten(rows)
		var labels []string
		for _, r := range flat {
			labels = append(labels, r.Label)
		}
		// API has no allocations and ShowEmpty is off; Carol is a member
		// of Website but has no allocation there.
		assert.Equal(t, []string{"Acme", "Website", "Alice", "Bob", "Beta Corp"}, labels)
		assert.Equal(t, model.MemberRow("website", "alice"), flat[2].Key)
		assert.Equal(t, 120, flat[2].TotalMinutes)
	})

	t.Run("show_empty_and_members", func(t *testing.T) {
		exp := Expanded{}
		all := opts
		all.ShowEmpty = true
		all.IncludeMembers = true
		rows, err := e.BuildRows(ctx, directory(), exp, all)
		require.NoError(t, err)
		exp.ExpandLevel(rows, LevelGroup)
		rows, err = e.BuildRows(ctx, directory(), exp, all)
		require.NoError(t, err)
		exp.ExpandLevel(rows, LevelParent)

		rows, err = e.BuildRows(ctx, directory(), exp, all)
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, noClient, rows[2].Label)
		assert.Equal(t, "Misc", rows[2].Children[0].Label)
		website := rows[0].Children[1]
		assert.Equal(t, "Website", website.Label)
		assert.Len(t, website.Children, 3)
	})
}

func TestBuildRowsLeafParent(t *testing.T) {
	s := allocation.NewStore()
	put(t, s, "a", "misc", "", day(0, 9), time.Hour)
	e := New(s)
	exp := Expanded{NodeID{Level: LevelGroup}: {}}

	rows, err := e.BuildRows(context.Background(), directory(), exp, Options{Window: model.NewGridWindow(monday, model.ViewGrid)})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Len(t, rows[0].Children, 1)
	misc := rows[0].Children[0]
	assert.False(t, misc.Expandable)
	assert.Equal(t, 60, misc.TotalMinutes)
	assert.True(t, misc.Editable())
	assert.False(t, rows[0].Editable())
}

func TestBuildRowsByMember(t *testing.T) {
	s := allocation.NewStore()
	put(t, s, "a", "website", "alice", day(0, 9), time.Hour)
	put(t, s, "b", "api", "alice", day(1, 9), time.Hour)
	put(t, s, "c", "ads", "bob", day(2, 9), 30*time.Minute)
	e := New(s)
	exp := Expanded{NodeID{Level: LevelParent, Key: model.OwnerRow("alice")}: {}}

	rows, err := e.BuildRows(context.Background(), directory(), exp,
		Options{GroupBy: GroupByMember, Window: model.NewGridWindow(monday, model.ViewGrid)})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Alice", rows[0].Label)
	assert.Equal(t, 120, rows[0].TotalMinutes)
	require.Len(t, rows[0].Children, 2)
	assert.Equal(t, "API", rows[0].Children[0].Label)
	assert.Equal(t, model.MemberRow("api", "alice"), rows[0].Children[0].Key)
	assert.Equal(t, 0, Depth(rows[0], GroupByMember))
	assert.Nil(t, rows[1].Children)
}

func TestExpandedToggle(t *testing.T) {
	e := Expanded{}
	id := NodeID{Level: LevelParent, Key: model.ProjectRow("website")}
	assert.True(t, e.Toggle(id))
	assert.True(t, e.Has(id))
	assert.False(t, e.Toggle(id))
	assert.False(t, e.Has(id))
}

func TestSnapshot(t *testing.T) {
	snap, err := Snapshot(context.Background(), directory())
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "carol"}, snap.Memberships["website"])
	assert.Equal(t, "Website", snap.Name("website"))
	assert.Equal(t, "ghost", snap.Name("ghost"))
}
