package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingListener struct {
	events []Event
}

func (l *recordingListener) Notify(e Event) {
	l.events = append(l.events, e)
}

func TestNotifierFanOut(t *testing.T) {
	var n Notifier

	first := &recordingListener{}
	second := &recordingListener{}

	n.Subscribe(first)
	n.Subscribe(second)

	n.Publish(UserAdded{Login: "malapert"})
	n.Publish(RoleAssigned{Login: "malapert", Suffix: 828606})

	for _, l := range []*recordingListener{first, second} {
		assert.Equal(t, []Event{
			UserAdded{Login: "malapert"},
			RoleAssigned{Login: "malapert", Suffix: 828606},
		}, l.events)
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "ADD", KindAdd.String())
	assert.Equal(t, "DELETE", KindDelete.String())
	assert.Equal(t, "RENAME", KindRename.String())
}

func TestEventKinds(t *testing.T) {
	testCases := []struct {
		event Event
		kind  Kind
	}{
		{UserAdded{}, KindAdd},
		{UserRemoved{}, KindDelete},
		{AdminChanged{}, KindRename},
		{RoleAssigned{}, KindAdd},
		{RoleUnassigned{}, KindDelete},
		{ProjectAdded{}, KindAdd},
		{ProjectRemoved{}, KindDelete},
		{ProjectRenamed{}, KindRename},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.kind, tc.event.Kind())
	}
}
