package plugin

import "sync"

// Kind tags a change event with the nature of the mutation.
type Kind int

// Mutation kinds carried by change events.
const (
	KindAdd Kind = iota
	KindDelete
	KindRename
)

// String returns the tag name of the kind.
func (k Kind) String() string {
	switch k {
	case KindAdd:
		return "ADD"
	case KindDelete:
		return "DELETE"
	case KindRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// Event is a typed store-change notification. Stores publish one event per
// successful mutation; the role index patches itself from them instead of
// reloading the backing stores.
type Event interface {
	Kind() Kind
}

// UserAdded signals a new user account.
type UserAdded struct {
	Login string
	Admin bool
}

// Kind returns KindAdd.
func (UserAdded) Kind() Kind { return KindAdd }

// UserRemoved signals a deleted user account. Its role assignments are
// already gone when the event is published.
type UserRemoved struct {
	Login string
}

// Kind returns KindDelete.
func (UserRemoved) Kind() Kind { return KindDelete }

// AdminChanged signals a toggled admin flag.
type AdminChanged struct {
	Login string
	Admin bool
}

// Kind returns KindRename: the account persists, its authority is renamed.
func (AdminChanged) Kind() Kind { return KindRename }

// RoleAssigned signals a new (user, project) assignment.
type RoleAssigned struct {
	Login  string
	Suffix int64
}

// Kind returns KindAdd.
func (RoleAssigned) Kind() Kind { return KindAdd }

// RoleUnassigned signals a removed (user, project) assignment.
type RoleUnassigned struct {
	Login  string
	Suffix int64
}

// Kind returns KindDelete.
func (RoleUnassigned) Kind() Kind { return KindDelete }

// ProjectAdded signals a new project mapping.
type ProjectAdded struct {
	Suffix int64
	Name   string
}

// Kind returns KindAdd.
func (ProjectAdded) Kind() Kind { return KindAdd }

// ProjectRemoved signals a deleted project mapping.
type ProjectRemoved struct {
	Suffix int64
}

// Kind returns KindDelete.
func (ProjectRemoved) Kind() Kind { return KindDelete }

// ProjectRenamed signals a project name change; the suffix is immutable.
type ProjectRenamed struct {
	Suffix  int64
	OldName string
	NewName string
}

// Kind returns KindRename.
func (ProjectRenamed) Kind() Kind { return KindRename }

// Listener consumes store-change events. Notify must not block for long;
// it runs on the mutating caller's goroutine.
type Listener interface {
	Notify(Event)
}

// Notifier is the subscriber list composed into observable stores.
// The zero value is ready to use.
type Notifier struct {
	mu        sync.RWMutex
	listeners []Listener
}

// Subscribe registers a listener for subsequent events.
func (n *Notifier) Subscribe(l Listener) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.listeners = append(n.listeners, l)
}

// Publish delivers the event to every registered listener in subscription
// order.
func (n *Notifier) Publish(e Event) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for _, l := range n.listeners {
		l.Notify(e)
	}
}

// Observable is the subscription surface shared by the mutable stores.
type Observable interface {
	Subscribe(Listener)
}
