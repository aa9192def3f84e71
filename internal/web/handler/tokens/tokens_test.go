package tokens

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CNES/DOI-server-sub001/internal/plugin"
	"github.com/CNES/DOI-server-sub001/internal/realm"
	"github.com/CNES/DOI-server-sub001/internal/token"
	"github.com/CNES/DOI-server-sub001/internal/web/handler"
	"github.com/CNES/DOI-server-sub001/internal/web/middleware/secpipe"
)

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
	tokens *token.Service
}

// newFixture builds an app with the token routes behind a middleware
// that injects the login the pipeline would have resolved.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	rlm := realm.New()
	rlm.Notify(plugin.ProjectAdded{Suffix: 828606, Name: "SWOT"})
	rlm.AddUser("bob", false)
	rlm.MapUser("bob", 828606)
	rlm.AddUser("carol", false)
	rlm.AddUser("admin", true)

	tokens := token.New([]byte("handler-test-secret"), time.Hour,
		&stubTokenStore{tokens: make(map[string]plugin.Token)}, nil)

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if login := c.Get("X-Test-Login"); login != "" {
			c.Locals(secpipe.LocalLogin, login)
		}

		return c.Next()
	})

	s := Service{}
	require.NoError(t, s.Init(app, &handler.Deps{Tokens: tokens, Realm: rlm}))

	return &fixture{app: app, tokens: tokens}
}

func (f *fixture) submit(t *testing.T, method, login string, form url.Values) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, Path, strings.NewReader(form.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	req.Header.Set("X-Test-Login", login)

	resp, err := f.app.Test(req)
	require.NoError(t, err)

	return resp
}

func TestIssueToken(t *testing.T) {
	f := newFixture(t)

	resp := f.submit(t, fiber.MethodPost, "bob", url.Values{"projectID": {"828606"}})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NotEmpty(t, body)

	// the returned token verifies against the issuing service
	claims, err := f.tokens.Verify(context.Background(), string(body), 828606)
	require.NoError(t, err)
	assert.Equal(t, "bob", claims.Subject)
}

func TestIssueTokenRequiresRole(t *testing.T) {
	f := newFixture(t)

	resp := f.submit(t, fiber.MethodPost, "carol", url.Values{"projectID": {"828606"}})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestIssueTokenAdminAnyProject(t *testing.T) {
	f := newFixture(t)

	resp := f.submit(t, fiber.MethodPost, "admin", url.Values{"projectID": {"828606"}})
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
}

func TestIssueTokenExplicitIdentifier(t *testing.T) {
	f := newFixture(t)

	// naming yourself is the same as omitting the field
	resp := f.submit(t, fiber.MethodPost, "bob",
		url.Values{"identifier": {"bob"}, "projectID": {"828606"}})
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	// naming someone else is an administrator action
	resp = f.submit(t, fiber.MethodPost, "carol",
		url.Values{"identifier": {"bob"}, "projectID": {"828606"}})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestIssueTokenForOtherSubjectAsAdmin(t *testing.T) {
	f := newFixture(t)

	resp := f.submit(t, fiber.MethodPost, "admin",
		url.Values{"identifier": {"bob"}, "projectID": {"828606"}})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	claims, err := f.tokens.Verify(context.Background(), string(body), 828606)
	require.NoError(t, err)
	assert.Equal(t, "bob", claims.Subject)

	// the named subject still needs the project role
	resp = f.submit(t, fiber.MethodPost, "admin",
		url.Values{"identifier": {"carol"}, "projectID": {"828606"}})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestIssueTokenBadProjectID(t *testing.T) {
	f := newFixture(t)

	resp := f.submit(t, fiber.MethodPost, "bob", url.Values{"projectID": {"SWOT"}})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestRevokeToken(t *testing.T) {
	f := newFixture(t)

	signed, err := f.tokens.Issue(context.Background(), "bob", 828606)
	require.NoError(t, err)

	// a stranger cannot revoke someone else's token
	resp := f.submit(t, fiber.MethodDelete, "carol", url.Values{"token": {signed}})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	// the owner can
	resp = f.submit(t, fiber.MethodDelete, "bob", url.Values{"token": {signed}})
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	// and the token no longer verifies
	_, err = f.tokens.Verify(context.Background(), signed, -1)
	assert.ErrorIs(t, err, token.ErrForbidden)

	// revoking again reports the missing token
	resp = f.submit(t, fiber.MethodDelete, "bob", url.Values{"token": {signed}})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestRevokeTokenAsAdmin(t *testing.T) {
	f := newFixture(t)

	signed, err := f.tokens.Issue(context.Background(), "bob", 828606)
	require.NoError(t, err)

	resp := f.submit(t, fiber.MethodDelete, "admin", url.Values{"token": {signed}})
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}

func TestRevokeTokenMissingForm(t *testing.T) {
	f := newFixture(t)

	resp := f.submit(t, fiber.MethodDelete, "bob", url.Values{})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
