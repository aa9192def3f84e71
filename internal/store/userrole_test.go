package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CNES/DOI-server-sub001/internal/plugin"
)

// openStores opens a project and a user-role store on the same database
// with one registered project.
func openStores(t *testing.T) (*DBProject, *DBUserRole) {
	t.Helper()

	url := testURL(t)
	projects := openProjectStore(t, url)
	users := openUserRoleStore(t, url)

	ok, err := projects.Add(context.Background(), 828606, "SWOT")
	require.NoError(t, err)
	require.True(t, ok)

	return projects, users
}

func TestUserAddRejectsDuplicateLogin(t *testing.T) {
	ctx := context.Background()
	_, users := openStores(t)

	ok, err := users.Add(ctx, plugin.User{Login: "malapert", FullName: "J-C Malapert"})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = users.Add(ctx, plugin.User{Login: "malapert"})
	require.NoError(t, err)
	assert.False(t, ok)

	exists, err := users.Exists(ctx, "malapert")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestAssignRequiresUserAndProject(t *testing.T) {
	ctx := context.Background()
	_, users := openStores(t)

	_, err := users.Add(ctx, plugin.User{Login: "malapert"})
	require.NoError(t, err)

	testCases := []struct {
		name   string
		login  string
		suffix int64
		want   bool
	}{
		{"unknown user", "ghost", 828606, false},
		{"unknown project", "malapert", 999999, false},
		{"valid", "malapert", 828606, true},
		{"duplicate", "malapert", 828606, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := users.Assign(ctx, tc.login, tc.suffix)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ok)
		})
	}
}

func TestRemoveCascadesAssignments(t *testing.T) {
	ctx := context.Background()
	projects, users := openStores(t)

	_, err := users.Add(ctx, plugin.User{Login: "malapert"})
	require.NoError(t, err)

	_, err = users.Assign(ctx, "malapert", 828606)
	require.NoError(t, err)

	ok, err := users.Remove(ctx, "malapert")
	require.NoError(t, err)
	require.True(t, ok)

	assigned, err := projects.ListForUser(ctx, "malapert")
	require.NoError(t, err)
	assert.Empty(t, assigned)

	// removing again reports the missing login
	ok, err = users.Remove(ctx, "malapert")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUnassign(t *testing.T) {
	ctx := context.Background()
	_, users := openStores(t)

	_, err := users.Add(ctx, plugin.User{Login: "malapert"})
	require.NoError(t, err)

	ok, err := users.Unassign(ctx, "malapert", 828606)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = users.Assign(ctx, "malapert", 828606)
	require.NoError(t, err)

	ok, err = users.Unassign(ctx, "malapert", 828606)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAdminFlagToggle(t *testing.T) {
	ctx := context.Background()
	_, users := openStores(t)

	_, err := users.Add(ctx, plugin.User{Login: "malapert"})
	require.NoError(t, err)

	admin, err := users.IsAdmin(ctx, "malapert")
	require.NoError(t, err)
	assert.False(t, admin)

	ok, err := users.SetAdmin(ctx, "malapert")
	require.NoError(t, err)
	assert.True(t, ok)

	// setting again is a no-op and reports false
	ok, err = users.SetAdmin(ctx, "malapert")
	require.NoError(t, err)
	assert.False(t, ok)

	admin, err = users.IsAdmin(ctx, "malapert")
	require.NoError(t, err)
	assert.True(t, admin)

	ok, err = users.UnsetAdmin(ctx, "malapert")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestListForProject(t *testing.T) {
	ctx := context.Background()
	_, users := openStores(t)

	for _, login := range []string{"malapert", "jcm"} {
		_, err := users.Add(ctx, plugin.User{Login: login})
		require.NoError(t, err)
	}

	_, err := users.Assign(ctx, "malapert", 828606)
	require.NoError(t, err)

	members, err := users.ListForProject(ctx, 828606)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "malapert", members[0].Login)

	all, err := users.Users(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestUserRoleEventsPublished(t *testing.T) {
	ctx := context.Background()
	_, users := openStores(t)

	sink := &eventSink{}
	users.Subscribe(sink)

	_, err := users.Add(ctx, plugin.User{Login: "malapert"})
	require.NoError(t, err)

	_, err = users.Assign(ctx, "malapert", 828606)
	require.NoError(t, err)

	_, err = users.SetAdmin(ctx, "malapert")
	require.NoError(t, err)

	_, err = users.Unassign(ctx, "malapert", 828606)
	require.NoError(t, err)

	_, err = users.Remove(ctx, "malapert")
	require.NoError(t, err)

	// duplicate add publishes nothing
	_, err = users.Add(ctx, plugin.User{Login: "other"})
	require.NoError(t, err)
	_, err = users.Add(ctx, plugin.User{Login: "other"})
	require.NoError(t, err)

	events := sink.all()
	require.Len(t, events, 6)

	assert.Equal(t, plugin.UserAdded{Login: "malapert"}, events[0])
	assert.Equal(t, plugin.RoleAssigned{Login: "malapert", Suffix: 828606}, events[1])
	assert.Equal(t, plugin.AdminChanged{Login: "malapert", Admin: true}, events[2])
	assert.Equal(t, plugin.RoleUnassigned{Login: "malapert", Suffix: 828606}, events[3])
	assert.Equal(t, plugin.UserRemoved{Login: "malapert"}, events[4])
	assert.Equal(t, plugin.UserAdded{Login: "other"}, events[5])
}
