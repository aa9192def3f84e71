package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CNES/DOI-server-sub001/internal/plugin"
)

func TestProjectAddRejectsCollisions(t *testing.T) {
	ctx := context.Background()
	s := openProjectStore(t, testURL(t))

	ok, err := s.Add(ctx, 828606, "SWOT")
	require.NoError(t, err)
	require.True(t, ok)

	testCases := []struct {
		name    string
		suffix  int64
		project string
	}{
		{"duplicate suffix", 828606, "OTHER"},
		{"duplicate name", 329360, "SWOT"},
		{"duplicate pair", 828606, "SWOT"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := s.Add(ctx, tc.suffix, tc.project)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}

	// the existing mapping stayed untouched
	name, found, err := s.NameOf(ctx, 828606)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "SWOT", name)
}

func TestProjectLookupBothDirections(t *testing.T) {
	ctx := context.Background()
	s := openProjectStore(t, testURL(t))

	_, err := s.Add(ctx, 828606, "SWOT")
	require.NoError(t, err)

	suffix, found, err := s.SuffixOf(ctx, "SWOT")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(828606), suffix)

	_, found, err = s.SuffixOf(ctx, "UNKNOWN")
	require.NoError(t, err)
	assert.False(t, found)

	exists, err := s.Exists(ctx, 828606)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.ExistsName(ctx, "SWOT")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestProjectRename(t *testing.T) {
	ctx := context.Background()
	s := openProjectStore(t, testURL(t))

	_, err := s.Add(ctx, 828606, "SWOT")
	require.NoError(t, err)
	_, err = s.Add(ctx, 329360, "MICROSCOPE")
	require.NoError(t, err)

	// renaming to a taken name rejects
	ok, err := s.Rename(ctx, 828606, "MICROSCOPE")
	require.NoError(t, err)
	assert.False(t, ok)

	// renaming an unknown suffix rejects
	ok, err = s.Rename(ctx, 999999, "NEW")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Rename(ctx, 828606, "SWOT-2")
	require.NoError(t, err)
	require.True(t, ok)

	name, found, err := s.NameOf(ctx, 828606)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "SWOT-2", name)
}

func TestProjectRemove(t *testing.T) {
	ctx := context.Background()
	s := openProjectStore(t, testURL(t))

	_, err := s.Add(ctx, 828606, "SWOT")
	require.NoError(t, err)

	ok, err := s.Remove(ctx, 828606)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Remove(ctx, 828606)
	require.NoError(t, err)
	assert.False(t, ok)

	exists, err := s.Exists(ctx, 828606)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestProjectListForUser(t *testing.T) {
	ctx := context.Background()
	url := testURL(t)

	projects := openProjectStore(t, url)
	users := openUserRoleStore(t, url)

	_, err := projects.Add(ctx, 828606, "SWOT")
	require.NoError(t, err)
	_, err = projects.Add(ctx, 329360, "MICROSCOPE")
	require.NoError(t, err)

	_, err = users.Add(ctx, plugin.User{Login: "malapert"})
	require.NoError(t, err)

	ok, err := users.Assign(ctx, "malapert", 828606)
	require.NoError(t, err)
	require.True(t, ok)

	assigned, err := projects.ListForUser(ctx, "malapert")
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	assert.Equal(t, plugin.Project{Suffix: 828606, Name: "SWOT"}, assigned[0])

	all, err := projects.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestProjectEventsPublished(t *testing.T) {
	ctx := context.Background()
	s := openProjectStore(t, testURL(t))

	sink := &eventSink{}
	s.Subscribe(sink)

	_, err := s.Add(ctx, 828606, "SWOT")
	require.NoError(t, err)

	_, err = s.Rename(ctx, 828606, "SWOT-2")
	require.NoError(t, err)

	_, err = s.Remove(ctx, 828606)
	require.NoError(t, err)

	// a rejected mutation publishes nothing
	_, err = s.Remove(ctx, 828606)
	require.NoError(t, err)

	events := sink.all()
	require.Len(t, events, 3)

	assert.Equal(t, plugin.ProjectAdded{Suffix: 828606, Name: "SWOT"}, events[0])
	assert.Equal(t, plugin.ProjectRenamed{Suffix: 828606, OldName: "SWOT", NewName: "SWOT-2"}, events[1])
	assert.Equal(t, plugin.ProjectRemoved{Suffix: 828606}, events[2])
}
