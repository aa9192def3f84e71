package secpipe

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CNES/DOI-server-sub001/internal/plugin"
	"github.com/CNES/DOI-server-sub001/internal/realm"
	"github.com/CNES/DOI-server-sub001/internal/token"
)

// fakeIdentity authenticates against a fixed credential map.
type fakeIdentity struct {
	creds map[string]string
	err   error
}

func (p *fakeIdentity) Configure(map[string]string) {}
func (p *fakeIdentity) Validate() []string          { return nil }
func (p *fakeIdentity) InitConnection() error       { return nil }
func (p *fakeIdentity) Release()                    {}
func (p *fakeIdentity) AdministratorID() string     { return "admin" }

func (p *fakeIdentity) Authenticate(_ context.Context, login, secret string) (bool, error) {
	if p.err != nil {
		return false, p.err
	}

	return p.creds[login] == secret, nil
}

func (p *fakeIdentity) GroupMembers(context.Context) ([]plugin.User, error) {
	return nil, nil
}

// stubTokenStore is an in-memory plugin.TokenStore.
type stubTokenStore struct {
	tokens map[string]plugin.Token
}

func (s *stubTokenStore) Configure(map[string]string) {}
func (s *stubTokenStore) Validate() []string          { return nil }
func (s *stubTokenStore) InitConnection() error       { return nil }
func (s *stubTokenStore) Release()                    {}

func (s *stubTokenStore) Save(_ context.Context, t plugin.Token) error {
	s.tokens[t.Signed] = t
	return nil
}

func (s *stubTokenStore) Exists(_ context.Context, signed string) (bool, error) {
	_, ok := s.tokens[signed]
	return ok, nil
}

func (s *stubTokenStore) Get(_ context.Context, signed string) (plugin.Token, bool, error) {
	t, ok := s.tokens[signed]
	return t, ok, nil
}

func (s *stubTokenStore) Delete(_ context.Context, signed string) (bool, error) {
	_, ok := s.tokens[signed]
	delete(s.tokens, signed)

	return ok, nil
}

func (s *stubTokenStore) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}

type fixture struct {
	app    *fiber.App
	realm  *realm.Realm
	tokens *token.Service
}

// newFixture builds a fiber app guarded by the pipeline, with terminal
// routes that answer 200 when dispatch is reached. Users: admin (global
// admin), alice (roles 828606 and 329360), bob (role 828606 only) and
// carol (no role).
func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	identity := &fakeIdentity{creds: map[string]string{
		"admin": "pw",
		"alice": "pw",
		"bob":   "pw",
		"carol": "pw",
	}}

	rlm := realm.New()
	rlm.Notify(plugin.ProjectAdded{Suffix: 828606, Name: "SWOT"})
	rlm.Notify(plugin.ProjectAdded{Suffix: 329360, Name: "MICROSCOPE"})

	rlm.AddUser("admin", true)
	rlm.AddUser("alice", false)
	rlm.MapUser("alice", 828606)
	rlm.MapUser("alice", 329360)
	rlm.AddUser("bob", false)
	rlm.MapUser("bob", 828606)
	rlm.AddUser("carol", false)

	tokens := token.New([]byte("pipeline-test-secret"), time.Hour,
		&stubTokenStore{tokens: make(map[string]plugin.Token)}, nil)

	pipeline, err := New(cfg, identity, rlm, tokens)
	require.NoError(t, err)

	app := fiber.New()
	app.Use("/api", pipeline.Handler())

	ok := func(c *fiber.Ctx) error { return c.SendString("ok") }

	app.Get("/api/projects", ok)
	app.Get("/api/projects/:suffix", ok)
	app.Get("/api/projects/:suffix/roles", ok)
	app.Get("/api/dois", ok)
	app.Post("/api/dois/:projectID", ok)
	app.Options("/api/dois/:projectID", ok)
	app.Post("/api/token", ok)
	app.Get("/api/roles", ok)
	app.Post("/api/admin/users", ok)

	return &fixture{app: app, realm: rlm, tokens: tokens}
}

func basicAuth(login, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(login+":"+password))
}

func (f *fixture) request(t *testing.T, method, target string, header map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, target, nil)
	for key, value := range header {
		req.Header.Set(key, value)
	}

	resp, err := f.app.Test(req)
	require.NoError(t, err)

	return resp
}

func TestAnonymousAccess(t *testing.T) {
	f := newFixture(t, Config{})

	testCases := []struct {
		name   string
		method string
		target string
		want   int
	}{
		{"project collection", fiber.MethodGet, "/api/projects", fiber.StatusOK},
		{"doi collection", fiber.MethodGet, "/api/dois", fiber.StatusOK},
		{"roles sub-path", fiber.MethodGet, "/api/projects/828606/roles", fiber.StatusOK},
		{"mutation rejected", fiber.MethodPost, "/api/dois/828606", fiber.StatusUnauthorized},
		{"admin rejected", fiber.MethodPost, "/api/admin/users", fiber.StatusUnauthorized},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp := f.request(t, tc.method, tc.target, nil)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestPreflightAlwaysPasses(t *testing.T) {
	f := newFixture(t, Config{})

	resp := f.request(t, fiber.MethodOptions, "/api/dois/828606", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestBasicAuthentication(t *testing.T) {
	f := newFixture(t, Config{})

	// bad password leaves the request anonymous, so the mutation is 401
	resp := f.request(t, fiber.MethodPost, "/api/dois/828606", map[string]string{
		fiber.HeaderAuthorization: basicAuth("bob", "wrong"),
	})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp = f.request(t, fiber.MethodPost, "/api/dois/828606", map[string]string{
		fiber.HeaderAuthorization: basicAuth("bob", "pw"),
	})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestIdentityBackendFailure(t *testing.T) {
	identity := &fakeIdentity{err: assert.AnError}

	rlm := realm.New()
	tokens := token.New([]byte("s"), time.Hour,
		&stubTokenStore{tokens: make(map[string]plugin.Token)}, nil)

	pipeline, err := New(Config{}, identity, rlm, tokens)
	require.NoError(t, err)

	app := fiber.New()
	app.Use("/api", pipeline.Handler())
	app.Get("/api/projects", func(c *fiber.Ctx) error { return c.SendString("ok") })

	req := httptest.NewRequest(fiber.MethodGet, "/api/projects", nil)
	req.Header.Set(fiber.HeaderAuthorization, basicAuth("bob", "pw"))

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestRoleAuthorization(t *testing.T) {
	f := newFixture(t, Config{})

	testCases := []struct {
		name   string
		login  string
		target string
		header map[string]string
		want   int
	}{
		{
			name:   "sole role matches",
			login:  "bob",
			target: "/api/dois/828606",
			want:   fiber.StatusOK,
		},
		{
			name:   "sole role mismatch",
			login:  "bob",
			target: "/api/dois/329360",
			want:   fiber.StatusForbidden,
		},
		{
			name:   "no role at all",
			login:  "carol",
			target: "/api/dois/828606",
			want:   fiber.StatusUnauthorized,
		},
		{
			name:   "several roles without selection",
			login:  "alice",
			target: "/api/dois/828606",
			want:   fiber.StatusConflict,
		},
		{
			name:   "selected role matches",
			login:  "alice",
			target: "/api/dois/828606",
			header: map[string]string{"selectedRole": "828606"},
			want:   fiber.StatusOK,
		},
		{
			name:   "selected role not held",
			login:  "alice",
			target: "/api/dois/828606",
			header: map[string]string{"selectedRole": "100378"},
			want:   fiber.StatusForbidden,
		},
		{
			name:   "selected role held but wrong resource",
			login:  "alice",
			target: "/api/dois/828606",
			header: map[string]string{"selectedRole": "329360"},
			want:   fiber.StatusForbidden,
		},
		{
			name:   "malformed selected role",
			login:  "alice",
			target: "/api/dois/828606",
			header: map[string]string{"selectedRole": "SWOT"},
			want:   fiber.StatusForbidden,
		},
		{
			name:   "admin needs no role",
			login:  "admin",
			target: "/api/dois/828606",
			want:   fiber.StatusOK,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			header := map[string]string{
				fiber.HeaderAuthorization: basicAuth(tc.login, "pw"),
			}
			for key, value := range tc.header {
				header[key] = value
			}

			resp := f.request(t, fiber.MethodPost, tc.target, header)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestTokenEndpointBypassesRoleCheck(t *testing.T) {
	f := newFixture(t, Config{})

	// carol has no role, yet obtaining a token only needs authentication
	resp := f.request(t, fiber.MethodPost, "/api/token", map[string]string{
		fiber.HeaderAuthorization: basicAuth("carol", "pw"),
	})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestBearerAuthentication(t *testing.T) {
	f := newFixture(t, Config{BearerMandatory: true})

	signed, err := f.tokens.Issue(context.Background(), "token-holder", 828606)
	require.NoError(t, err)

	// the token asserts project 828606 even though the subject has no
	// realm role
	resp := f.request(t, fiber.MethodPost, "/api/dois/828606", map[string]string{
		fiber.HeaderAuthorization: "Bearer " + signed,
	})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = f.request(t, fiber.MethodPost, "/api/dois/329360", map[string]string{
		fiber.HeaderAuthorization: "Bearer " + signed,
	})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = f.request(t, fiber.MethodPost, "/api/dois/828606", map[string]string{
		fiber.HeaderAuthorization: "Bearer not-a-token",
	})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestBearerAssertedRoleCheckedAgainstClaim(t *testing.T) {
	f := newFixture(t, Config{BearerMandatory: true})

	signed, err := f.tokens.Issue(context.Background(), "token-holder", 828606)
	require.NoError(t, err)

	// the claim and the selected role must agree even on paths the role
	// stage later waves through
	resp := f.request(t, fiber.MethodPost, "/api/token", map[string]string{
		fiber.HeaderAuthorization: "Bearer " + signed,
		"selectedRole":            "329360",
	})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = f.request(t, fiber.MethodPost, "/api/token", map[string]string{
		fiber.HeaderAuthorization: "Bearer " + signed,
		"selectedRole":            "828606",
	})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestBearerOptionalFallsThrough(t *testing.T) {
	f := newFixture(t, Config{BearerMandatory: false})

	// an invalid optional token leaves the request anonymous
	resp := f.request(t, fiber.MethodGet, "/api/projects", map[string]string{
		fiber.HeaderAuthorization: "Bearer not-a-token",
	})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = f.request(t, fiber.MethodPost, "/api/dois/828606", map[string]string{
		fiber.HeaderAuthorization: "Bearer not-a-token",
	})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestAdminPathRequiresAdmin(t *testing.T) {
	f := newFixture(t, Config{})

	resp := f.request(t, fiber.MethodPost, "/api/admin/users", map[string]string{
		fiber.HeaderAuthorization: basicAuth("alice", "pw"),
	})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = f.request(t, fiber.MethodPost, "/api/admin/users", map[string]string{
		fiber.HeaderAuthorization: basicAuth("admin", "pw"),
	})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestAdminIPGate(t *testing.T) {
	f := newFixture(t, Config{
		TrustedProxyHeader: "X-Forwarded-For",
		AllowList:          []string{"10.0.0.0/8", "192.0.2.7"},
	})

	testCases := []struct {
		name     string
		clientIP string
		want     int
	}{
		{"inside range", "10.1.2.3", fiber.StatusOK},
		{"exact host", "192.0.2.7", fiber.StatusOK},
		{"loopback always allowed", "127.0.0.1", fiber.StatusOK},
		{"outside", "198.51.100.9", fiber.StatusForbidden},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp := f.request(t, fiber.MethodPost, "/api/admin/users", map[string]string{
				fiber.HeaderAuthorization: basicAuth("admin", "pw"),
				"X-Forwarded-For":         tc.clientIP,
			})
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestAdminIPGateFailOpenWhenUnconfigured(t *testing.T) {
	f := newFixture(t, Config{TrustedProxyHeader: "X-Forwarded-For"})

	resp := f.request(t, fiber.MethodPost, "/api/admin/users", map[string]string{
		fiber.HeaderAuthorization: basicAuth("admin", "pw"),
		"X-Forwarded-For":         "198.51.100.9",
	})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestTrustedProxyHeaderChain(t *testing.T) {
	f := newFixture(t, Config{
		TrustedProxyHeader: "X-Forwarded-For",
		AllowList:          []string{"10.0.0.0/8"},
	})

	// first entry of the chain is the originating client
	resp := f.request(t, fiber.MethodPost, "/api/admin/users", map[string]string{
		fiber.HeaderAuthorization: basicAuth("admin", "pw"),
		"X-Forwarded-For":         "10.1.2.3, 198.51.100.9",
	})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestNewRejectsMalformedAllowList(t *testing.T) {
	_, err := New(Config{AllowList: []string{"not-an-address"}},
		&fakeIdentity{}, realm.New(),
		token.New([]byte("s"), time.Hour, &stubTokenStore{tokens: map[string]plugin.Token{}}, nil))
	assert.Error(t, err)
}
