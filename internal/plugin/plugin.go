// Package plugin defines the four backend capability contracts of the
// DOI server security layer (identity provider, project store, user-role
// store, token store), their common lifecycle, the typed change events
// emitted by store mutations and the factory registry that resolves a
// configuration key to a concrete backend at startup.
package plugin

import (
	"context"
	"time"
)

// Plugin is the lifecycle shared by every backend implementation.
// The registry drives it in a fixed order: Configure, then InitConnection,
// then Validate for startup diagnostics. Release closes underlying
// connections and must be safe to call more than once.
type Plugin interface {
	// Configure hands the backend its options map from the configuration
	// file. Values are already decrypted. Configure never connects.
	Configure(options map[string]string)

	// InitConnection opens the backend connection. A failure here is fatal
	// for the process.
	InitConnection() error

	// Validate returns the names of required option keys that are missing
	// or unusable. An empty slice means the backend is ready to connect.
	Validate() []string

	// Release closes the backend, idempotently.
	Release()
}

// User is the administrative view of a user account as exchanged between
// backends, the role index and the handlers.
type User struct {
	Login    string
	FullName string
	Email    string
	Admin    bool
}

// Project binds a unique name to a unique numeric suffix. The suffix is
// both the DOI namespace segment and the authorization role name.
type Project struct {
	Suffix int64
	Name   string
}

// Token is a persisted issued token: the signed string verbatim plus the
// two fields derived from its claims so lookups never re-parse the JWT.
type Token struct {
	Signed    string
	Subject   string
	Suffix    int64
	ExpiresAt time.Time
}

// Expired reports whether the token's stored expiration lies before now.
func (t Token) Expired(now time.Time) bool {
	return t.ExpiresAt.Before(now)
}

// IdentityProvider verifies credentials and enumerates the members of the
// organization's designated group.
//
// Authenticate returns false for a credential mismatch and reserves its
// error return for connectivity failures; a bad password is never an error.
type IdentityProvider interface {
	Plugin

	Authenticate(ctx context.Context, login, secret string) (bool, error)

	// GroupMembers enumerates the designated organizational group. Used at
	// startup to seed accounts and promote the administrator.
	GroupMembers(ctx context.Context) ([]User, error)

	// AdministratorID is the login promoted to global admin when it appears
	// among the group members.
	AdministratorID() string
}

// ProjectStore is the bidirectional project name/suffix mapping.
//
// Mutations return (ok, err): ok is false when the business rule rejects
// the change (duplicate suffix or name, unknown key) with the existing
// mapping left untouched; err reports backend failure only. Successful
// mutations notify subscribers.
type ProjectStore interface {
	Plugin
	Observable

	Add(ctx context.Context, suffix int64, name string) (bool, error)
	Remove(ctx context.Context, suffix int64) (bool, error)
	Rename(ctx context.Context, suffix int64, name string) (bool, error)
	Exists(ctx context.Context, suffix int64) (bool, error)
	ExistsName(ctx context.Context, name string) (bool, error)
	NameOf(ctx context.Context, suffix int64) (string, bool, error)
	SuffixOf(ctx context.Context, name string) (int64, bool, error)
	List(ctx context.Context) ([]Project, error)
	ListForUser(ctx context.Context, login string) ([]Project, error)
}

// UserRoleStore holds users, their admin flag and their project-suffix
// assignments. Removing a user cascades to its assignments. The admin flag
// is toggled through SetAdmin/UnsetAdmin only, so listeners can attach
// side effects to the transition.
type UserRoleStore interface {
	Plugin
	Observable

	Add(ctx context.Context, user User) (bool, error)
	Remove(ctx context.Context, login string) (bool, error)
	Assign(ctx context.Context, login string, suffix int64) (bool, error)
	Unassign(ctx context.Context, login string, suffix int64) (bool, error)
	SetAdmin(ctx context.Context, login string) (bool, error)
	UnsetAdmin(ctx context.Context, login string) (bool, error)
	IsAdmin(ctx context.Context, login string) (bool, error)
	Exists(ctx context.Context, login string) (bool, error)
	Users(ctx context.Context) ([]User, error)
	ListForProject(ctx context.Context, suffix int64) ([]User, error)
}

// TokenStore persists issued tokens keyed by their signed representation.
type TokenStore interface {
	Plugin

	Save(ctx context.Context, token Token) error
	Exists(ctx context.Context, signed string) (bool, error)
	Get(ctx context.Context, signed string) (Token, bool, error)
	Delete(ctx context.Context, signed string) (bool, error)

	// DeleteExpired removes every token whose stored expiration is before
	// now and reports how many were removed. Used by the periodic sweep.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
