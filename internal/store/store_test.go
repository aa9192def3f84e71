package store

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CNES/DOI-server-sub001/internal/plugin"
)

// testURL returns a sqlite URL on a per-test temp file so the project
// and user-role stores share one database, as they do in production.
func testURL(t *testing.T) string {
	t.Helper()

	return "sqlite://" + filepath.Join(t.TempDir(), "store.db")
}

func openProjectStore(t *testing.T, url string) *DBProject {
	t.Helper()

	s, ok := NewDBProject().(*DBProject)
	require.True(t, ok)

	s.Configure(map[string]string{"url": url})
	require.Empty(t, s.Validate())
	require.NoError(t, s.InitConnection())
	t.Cleanup(s.Release)

	return s
}

func openUserRoleStore(t *testing.T, url string) *DBUserRole {
	t.Helper()

	s, ok := NewDBUserRole().(*DBUserRole)
	require.True(t, ok)

	s.Configure(map[string]string{"url": url})
	require.Empty(t, s.Validate())
	require.NoError(t, s.InitConnection())
	t.Cleanup(s.Release)

	return s
}

// eventSink records published store events for assertions.
type eventSink struct {
	mu     sync.Mutex
	events []plugin.Event
}

func (s *eventSink) Notify(e plugin.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, e)
}

func (s *eventSink) all() []plugin.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]plugin.Event(nil), s.events...)
}

func TestConnectorValidate(t *testing.T) {
	var c connector

	c.Configure(map[string]string{})
	require.Equal(t, []string{"url"}, c.Validate())

	c.Configure(map[string]string{"url": "sqlite://file.db"})
	require.Empty(t, c.Validate())
}

func TestReleaseIdempotent(t *testing.T) {
	s := openProjectStore(t, testURL(t))

	s.Release()
	s.Release() // second call must not panic
}
