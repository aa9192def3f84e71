package identity

import (
	"context"
	"testing"

	"github.com/alexedwards/argon2id"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CNES/DOI-server-sub001/internal/plugin"
)

func newStaticProvider(t *testing.T, options map[string]string) *Static {
	t.Helper()

	p, ok := NewStatic().(*Static)
	require.True(t, ok)

	p.Configure(options)
	require.Empty(t, p.Validate())
	require.NoError(t, p.InitConnection())

	return p
}

func TestStaticValidate(t *testing.T) {
	p, ok := NewStatic().(*Static)
	require.True(t, ok)

	p.Configure(map[string]string{})
	assert.Equal(t, []string{"_adminID", "<login entries>"}, p.Validate())
}

func TestStaticAuthenticate(t *testing.T) {
	ctx := context.Background()

	hash, err := argon2id.CreateHash("s3cret", argon2id.DefaultParams)
	require.NoError(t, err)

	p := newStaticProvider(t, map[string]string{
		"_adminID": "malapert",
		"malapert": hash,
		"broken":   "not-an-argon2id-hash",
	})

	testCases := []struct {
		name   string
		login  string
		secret string
		want   bool
	}{
		{"valid credentials", "malapert", "s3cret", true},
		{"wrong password", "malapert", "nope", false},
		{"unknown login", "ghost", "s3cret", false},
		{"malformed hash", "broken", "s3cret", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := p.Authenticate(ctx, tc.login, tc.secret)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ok)
		})
	}
}

func TestStaticGroupMembers(t *testing.T) {
	p := newStaticProvider(t, map[string]string{
		"_adminID": "malapert",
		"malapert": "hash-a",
		"jcm":      "hash-b",
	})

	members, err := p.GroupMembers(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []plugin.User{{Login: "jcm"}, {Login: "malapert"}}, members)
	assert.Equal(t, "malapert", p.AdministratorID())
}
