package datacite

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return New(Config{
		URL:      server.URL,
		User:     "member",
		Password: "s3cret",
		Prefix:   "10.24400",
	})
}

func TestList(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "member", user)
		assert.Equal(t, "s3cret", pass)

		assert.Equal(t, "/dois", r.URL.Path)
		assert.Equal(t, "10.24400/828606", r.URL.Query().Get("prefix"))

		_, _ = w.Write([]byte(`{"data":[
			{"attributes":{"doi":"10.24400/828606/ds1"}},
			{"attributes":{"doi":"10.24400/828606/ds2"}}
		]}`))
	})

	names, err := client.List(context.Background(), 828606)
	require.NoError(t, err)
	assert.Equal(t, []string{"10.24400/828606/ds1", "10.24400/828606/ds2"}, names)
}

func TestListWholePrefix(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "10.24400", r.URL.Query().Get("prefix"))
		_, _ = w.Write([]byte(`{"data":[]}`))
	})

	names, err := client.List(context.Background(), -1)
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestRegister(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/dois/10.24400/828606/ds1", r.URL.Path)

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, `{"title":"dataset"}`, string(body))

		w.WriteHeader(http.StatusCreated)
	})

	err := client.Register(context.Background(), "10.24400/828606/ds1", []byte(`{"title":"dataset"}`))
	assert.NoError(t, err)
}

func TestAgencyErrorSurfaces(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.List(context.Background(), -1)
	assert.ErrorContains(t, err, "401")

	err = client.Test(context.Background())
	assert.Error(t, err)
}

func TestHeartbeat(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/heartbeat", r.URL.Path)
		_, _ = w.Write([]byte("OK"))
	})

	assert.NoError(t, client.Test(context.Background()))
}
