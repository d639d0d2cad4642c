package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manav03panchal/timegrid/internal/aggregate"
	"github.com/manav03panchal/timegrid/internal/clock"
	"github.com/manav03panchal/timegrid/internal/config"
	"github.com/manav03panchal/timegrid/internal/errors"
	"github.com/manav03panchal/timegrid/internal/model"
	"github.com/manav03panchal/timegrid/internal/output"
	"github.com/manav03panchal/timegrid/internal/runtime"
	"github.com/manav03panchal/timegrid/internal/testutil"
)

// setupRuntime installs an in-memory JSON runtime at Tuesday noon and
// returns the buffer commands write to.
func setupRuntime(t *testing.T) *bytes.Buffer {
	t.Helper()
	c, err := runtime.New(runtime.Options{
		InMemory: true,
		Format:   output.FormatJSON,
		Config:   config.DefaultRuntimeConfig(),
		Clock:    clock.NewFixed(testutil.Day(1, 12*time.Hour)),
	})
	require.NoError(t, err)
	var buf bytes.Buffer
	c.Formatter.Writer = &buf
	ctx = c
	t.Cleanup(func() {
		_ = c.Close()
		ctx = nil
	})
	return &buf
}

// invoke resets c's flags, applies flags and calls run.
func invoke(t *testing.T, buf *bytes.Buffer, c *cobra.Command, run func(*cobra.Command, []string) error, flags map[string]string, args ...string) error {
	t.Helper()
	c.Flags().VisitAll(func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	})
	for name, value := range flags {
		require.NoError(t, c.Flags().Set(name, value), name)
	}
	c.SetContext(context.Background())
	buf.Reset()
	return run(c, args)
}

func decode[T any](t *testing.T, buf *bytes.Buffer) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(buf.Bytes(), &v), buf.String())
	return v
}

func seedDirectory(t *testing.T, buf *bytes.Buffer) {
	t.Helper()
	require.NoError(t, invoke(t, buf, clientAddCmd, runClientAdd, nil, "acme", "Acme Corp"))
	require.NoError(t, invoke(t, buf, projectAddCmd, runProjectAdd,
		map[string]string{"client": "acme", "color": "#3366FF"}, "website", "Website"))
	require.NoError(t, invoke(t, buf, userAddCmd, runUserAdd, nil, "alice", "Alice"))
	require.NoError(t, invoke(t, buf, memberAddCmd, runMemberAdd, nil, "website", "alice"))
}

// =============================================================================
// Flag Helper Tests
// =============================================================================

func TestParseDays(t *testing.T) {
	now := testutil.Day(1, 12*time.Hour)

	start, end, err := parseDays("2024-01-03", "2024-01-05", now)
	require.NoError(t, err)
	assert.Equal(t, 2, start.Day())
	assert.Equal(t, 3, model.CoveredDays(start, end))

	start, end, err = parseDays("2024-01-03", "", now)
	require.NoError(t, err)
	assert.Equal(t, 1, model.CoveredDays(start, end))

	_, _, err = parseDays("2024-01-05", "2024-01-03", now)
	assert.ErrorIs(t, err, errors.ErrEndBeforeStart)
}

func TestParseKind(t *testing.T) {
	k, err := parseKind("")
	require.NoError(t, err)
	assert.Equal(t, model.Kind(""), k)

	k, err = parseKind("planned")
	require.NoError(t, err)
	assert.Equal(t, model.KindPlanned, k)

	_, err = parseKind("maybe")
	assert.Error(t, err)
}

func TestParseGroupBy(t *testing.T) {
	by, err := parseGroupBy("member")
	require.NoError(t, err)
	assert.Equal(t, aggregate.GroupByMember, by)

	_, err = parseGroupBy("client")
	assert.Error(t, err)
}

func TestExpandLevels(t *testing.T) {
	tests := []struct {
		in      string
		want    []aggregate.Level
		wantErr bool
	}{
		{"none", nil, false},
		{"groups", []aggregate.Level{aggregate.LevelGroup}, false},
		{"all", []aggregate.Level{aggregate.LevelGroup, aggregate.LevelParent}, false},
		{"deep", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := expandLevels(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// =============================================================================
// Command Tests
// =============================================================================

func TestDirectoryCommands(t *testing.T) {
	buf := setupRuntime(t)
	seedDirectory(t, buf)

	require.NoError(t, invoke(t, buf, projectListCmd, runProjectList, nil))
	resp := decode[output.EntitiesResponse](t, buf)
	require.Len(t, resp.Entities, 1)
	assert.Equal(t, "website", resp.Entities[0].ID)
	assert.Equal(t, "acme", resp.Entities[0].GroupID)

	require.NoError(t, invoke(t, buf, memberListCmd, runMemberList, nil, "website"))
	members := decode[output.EntitiesResponse](t, buf)
	require.Len(t, members.Entities, 1)
	assert.Equal(t, "Alice", members.Entities[0].Name)

	err := invoke(t, buf, projectAddCmd, runProjectAdd, map[string]string{"client": "nobody"}, "api", "API")
	assert.ErrorIs(t, err, errors.ErrClientNotFound)

	err = invoke(t, buf, projectAddCmd, runProjectAdd, map[string]string{"color": "blue"}, "api", "API")
	assert.ErrorIs(t, err, errors.ErrInvalidColor)
}

func TestAllocLifecycle(t *testing.T) {
	buf := setupRuntime(t)
	seedDirectory(t, buf)

	require.NoError(t, invoke(t, buf, allocAddCmd, runAllocAdd, map[string]string{
		"project": "website", "user": "alice", "from": "2024-01-03", "to": "2024-01-04", "hours": "12",
	}))
	created := decode[output.CommitResponse](t, buf)
	assert.Equal(t, "create", created.Op)
	require.NotNil(t, created.Allocation)
	assert.Equal(t, 720, created.Allocation.DurationMinutes)
	assert.Equal(t, "day", created.Allocation.Precision)
	assert.Equal(t, "planned", created.Allocation.Kind)
	id := created.ID
	require.NotEmpty(t, id)

	require.NoError(t, invoke(t, buf, allocEditCmd, runAllocEdit,
		map[string]string{"hours": "6", "label": "review"}, id))
	edited := decode[output.CommitResponse](t, buf)
	assert.Equal(t, "update", edited.Op)
	assert.Equal(t, 360, edited.Allocation.DurationMinutes)
	assert.Equal(t, "review", edited.Allocation.Label)

	require.NoError(t, invoke(t, buf, allocEditCmd, runAllocEdit, map[string]string{"label": "review"}, id))
	assert.Equal(t, "unchanged", decode[output.CommitResponse](t, buf).Status)

	require.NoError(t, invoke(t, buf, allocMoveCmd, runAllocMove, map[string]string{"start": "2024-01-04"}, id))
	moved := decode[output.CommitResponse](t, buf)
	start, err := time.Parse(time.RFC3339, moved.Allocation.Start)
	require.NoError(t, err)
	assert.Equal(t, 4, start.Day())
	assert.Equal(t, 360, moved.Allocation.DurationMinutes)

	require.NoError(t, invoke(t, buf, allocListCmd, runAllocList, map[string]string{"user": "alice"}))
	list := decode[output.AllocationsResponse](t, buf)
	assert.Equal(t, 1, list.Total)

	require.NoError(t, invoke(t, buf, allocRemoveCmd, runAllocRemove, nil, id))
	assert.Equal(t, "delete", decode[output.CommitResponse](t, buf).Op)

	require.NoError(t, invoke(t, buf, allocListCmd, runAllocList, nil))
	assert.Equal(t, 0, decode[output.AllocationsResponse](t, buf).Total)
}

func TestAllocAddTimed(t *testing.T) {
	buf := setupRuntime(t)
	seedDirectory(t, buf)

	require.NoError(t, invoke(t, buf, allocAddCmd, runAllocAdd, map[string]string{
		"project": "website", "user": "alice", "start": "2024-01-03 09:00", "hours": "3", "label": "kickoff",
	}))
	created := decode[output.CommitResponse](t, buf)
	assert.Equal(t, 180, created.Allocation.DurationMinutes)
	assert.Equal(t, "minute", created.Allocation.Precision)
	assert.Equal(t, "kickoff", created.Allocation.Label)
}

func TestAllocAddValidation(t *testing.T) {
	buf := setupRuntime(t)
	seedDirectory(t, buf)

	tests := []struct {
		name  string
		flags map[string]string
		is    error
	}{
		{"unknown project", map[string]string{"project": "nope", "from": "2024-01-03"}, errors.ErrProjectNotFound},
		{"unknown user", map[string]string{"project": "website", "user": "bob", "from": "2024-01-03"}, errors.ErrUserNotFound},
		{"days backwards", map[string]string{"project": "website", "from": "2024-01-05", "to": "2024-01-03"}, errors.ErrEndBeforeStart},
		{"effort beyond span", map[string]string{"project": "website", "from": "2024-01-03", "hours": "30"}, errors.ErrInvalidHours},
		{"planned in the past", map[string]string{"project": "website", "from": "2023-12-28", "kind": "planned"}, errors.ErrPlannedInPast},
		{"timed without end", map[string]string{"project": "website", "start": "2024-01-03 09:00"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := invoke(t, buf, allocAddCmd, runAllocAdd, tt.flags)
			require.Error(t, err)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
	assert.Equal(t, 0, ctx.Store.Len())
}

func TestTotals(t *testing.T) {
	buf := setupRuntime(t)
	seedDirectory(t, buf)
	require.NoError(t, invoke(t, buf, allocAddCmd, runAllocAdd, map[string]string{
		"project": "website", "user": "alice", "from": "2024-01-03", "hours": "4",
	}))

	require.NoError(t, invoke(t, buf, totalsCmd, runTotals, map[string]string{"anchor": "2024-01-02", "daily": "true"}))
	resp := decode[output.TotalsResponse](t, buf)
	assert.Equal(t, "project", resp.GroupBy)
	require.NotEmpty(t, resp.Rows)

	var website *output.TotalsRowOutput
	for _, r := range resp.Rows {
		if r.ProjectSID == "website" && r.OwnerSID == "" {
			website = r
		}
	}
	require.NotNil(t, website)
	assert.Equal(t, 240, website.TotalMinutes)
	require.Len(t, website.Daily, 21)
	assert.Equal(t, 240, website.Daily[2])
}

func TestDBCheckAndBackup(t *testing.T) {
	buf := setupRuntime(t)
	require.NoError(t, invoke(t, buf, dbCheckCmd, runDBCheck, nil))
	assert.Contains(t, buf.String(), `"healthy": true`)

	dir := t.TempDir()
	require.NoError(t, invoke(t, buf, dbBackupCmd, runDBBackup, map[string]string{"dir": dir}))
	assert.Contains(t, buf.String(), dir)
}
