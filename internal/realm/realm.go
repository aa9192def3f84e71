// Package realm implements the in-memory role index: users and groups
// mapped to project-suffix roles, with group inheritance. The index is
// derived state, patched from store-change events and always
// reconstructible from the backing stores.
package realm

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/CNES/DOI-server-sub001/internal/plugin"
)

// User is the index's view of a subject: its login, admin flag and direct
// group memberships.
type User struct {
	Login  string
	Admin  bool
	Groups []string
}

// Group is a named role container with an optional parent it inherits
// from. Parent links may form arbitrary graphs; traversal guards against
// cycles with an explicit visited set.
type Group struct {
	Name   string
	Parent string
}

// Realm aggregates users, groups and role mappings. Reads run concurrently
// under a read lock; mutations (event-driven only) take the write lock and
// replace role slices wholesale, so readers never observe partial updates.
type Realm struct {
	mu         sync.RWMutex
	users      map[string]*User
	groups     map[string]*Group
	userRoles  map[string][]int64
	groupRoles map[string][]int64
	roles      map[int64]struct{}
}

// New creates an empty realm.
func New() *Realm {
	return &Realm{
		users:      make(map[string]*User),
		groups:     make(map[string]*Group),
		userRoles:  make(map[string][]int64),
		groupRoles: make(map[string][]int64),
		roles:      make(map[int64]struct{}),
	}
}

// AddUser registers a user. Re-adding refreshes the admin flag.
func (r *Realm) AddUser(login string, admin bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, ok := r.users[login]; ok {
		u.Admin = admin
		return
	}

	r.users[login] = &User{Login: login, Admin: admin}
}

// RemoveUser drops the user and its role mappings. Unknown logins are
// ignored.
func (r *Realm) RemoveUser(login string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.users, login)
	delete(r.userRoles, login)
}

// SetAdmin toggles the user's admin flag. Unknown logins are ignored.
func (r *Realm) SetAdmin(login string, admin bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, ok := r.users[login]; ok {
		u.Admin = admin
	}
}

// IsAdmin reports the user's admin flag.
func (r *Realm) IsAdmin(login string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[login]

	return ok && u.Admin
}

// FindUser returns a copy of the indexed user.
func (r *Realm) FindUser(login string) (User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[login]
	if !ok {
		return User{}, false
	}

	out := *u
	out.Groups = append([]string(nil), u.Groups...)

	return out, true
}

// AddGroup registers a group with an optional parent.
func (r *Realm) AddGroup(name, parent string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.groups[name] = &Group{Name: name, Parent: parent}
}

// AddUserToGroup records a direct group membership.
func (r *Realm) AddUserToGroup(login, group string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[login]
	if !ok {
		return
	}

	for _, g := range u.Groups {
		if g == group {
			return
		}
	}

	u.Groups = append(u.Groups, group)
}

// GroupsOf returns the user's groups. With inheritOnly the direct
// memberships are excluded and only ancestors reached through parent
// links are returned. The ascent keeps an explicit visited set so parent
// cycles terminate.
func (r *Realm) GroupsOf(login string, inheritOnly bool) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[login]
	if !ok {
		return nil
	}

	visited := make(map[string]struct{})

	var out []string

	for _, direct := range u.Groups {
		if !inheritOnly {
			if _, seen := visited[direct]; !seen {
				visited[direct] = struct{}{}
				out = append(out, direct)
			}
		} else {
			// mark without emitting so ancestors of a direct group still appear
			visited[direct] = struct{}{}
		}

		for g, okG := r.groups[direct]; okG && g.Parent != ""; {
			if _, seen := visited[g.Parent]; seen {
				break
			}

			visited[g.Parent] = struct{}{}
			out = append(out, g.Parent)

			g, okG = r.groups[g.Parent]
		}
	}

	return out
}

// MapUser grants the user a direct role. Duplicate pairs are kept out.
func (r *Realm) MapUser(login string, role int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.userRoles[login] = mapRole(r.userRoles[login], role)
}

// UnmapUser removes the (user, role) pair by value equality over a copy,
// so concurrent readers of the old slice stay valid and repeated mappings
// of the same subject never remove the wrong entry.
func (r *Realm) UnmapUser(login string, role int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.userRoles[login] = unmapRole(r.userRoles[login], role)
}

// MapGroup grants the group a role.
func (r *Realm) MapGroup(group string, role int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.groupRoles[group] = mapRole(r.groupRoles[group], role)
}

// UnmapGroup removes the (group, role) pair.
func (r *Realm) UnmapGroup(group string, role int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.groupRoles[group] = unmapRole(r.groupRoles[group], role)
}

// RolesOfUser returns the user's direct roles, sorted.
func (r *Realm) RolesOfUser(login string) []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return sortedCopy(r.userRoles[login])
}

// RolesOfGroup returns the group's roles, sorted.
func (r *Realm) RolesOfGroup(group string) []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return sortedCopy(r.groupRoles[group])
}

// EffectiveRoles unions the user's direct roles with the roles of every
// group reached through membership and inheritance. A global admin holds
// every registered project role. Unknown logins yield no roles.
func (r *Realm) EffectiveRoles(login string) []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[login]
	if !ok {
		return nil
	}

	if u.Admin {
		out := make([]int64, 0, len(r.roles))
		for role := range r.roles {
			out = append(out, role)
		}

		sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

		return out
	}

	set := make(map[int64]struct{})
	for _, role := range r.userRoles[login] {
		set[role] = struct{}{}
	}

	visited := make(map[string]struct{})
	for _, direct := range u.Groups {
		r.collectGroupRoles(direct, visited, set)
	}

	out := make([]int64, 0, len(set))
	for role := range set {
		out = append(out, role)
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

// HasRole reports whether the login's effective roles include role. A
// global admin holds every registered role.
func (r *Realm) HasRole(login string, role int64) bool {
	for _, held := range r.EffectiveRoles(login) {
		if held == role {
			return true
		}
	}

	return false
}

// collectGroupRoles ascends the parent chain from the group, adding roles
// along the way. Must hold at least the read lock.
func (r *Realm) collectGroupRoles(name string, visited map[string]struct{}, set map[int64]struct{}) {
	for name != "" {
		if _, seen := visited[name]; seen {
			return
		}

		visited[name] = struct{}{}

		for _, role := range r.groupRoles[name] {
			set[role] = struct{}{}
		}

		g, ok := r.groups[name]
		if !ok {
			return
		}

		name = g.Parent
	}
}

// Notify patches the index from a store-change event. Events referencing
// unknown subjects are tolerated: the subject simply stays roleless.
func (r *Realm) Notify(e plugin.Event) {
	switch ev := e.(type) {
	case plugin.UserAdded:
		r.AddUser(ev.Login, ev.Admin)
	case plugin.UserRemoved:
		r.RemoveUser(ev.Login)
	case plugin.AdminChanged:
		r.SetAdmin(ev.Login, ev.Admin)
	case plugin.RoleAssigned:
		r.MapUser(ev.Login, ev.Suffix)
	case plugin.RoleUnassigned:
		r.UnmapUser(ev.Login, ev.Suffix)
	case plugin.ProjectAdded:
		r.addRole(ev.Suffix)
	case plugin.ProjectRemoved:
		r.removeRole(ev.Suffix)
	case plugin.ProjectRenamed:
		// suffix is immutable, nothing to patch
	default:
		log.Warn().Str("kind", e.Kind().String()).Msg("unhandled store event")
	}
}

func (r *Realm) addRole(role int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.roles[role] = struct{}{}
}

// removeRole forgets the project role and strips it from every mapping.
func (r *Realm) removeRole(role int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.roles, role)

	for login, roles := range r.userRoles {
		r.userRoles[login] = unmapRole(roles, role)
	}

	for group, roles := range r.groupRoles {
		r.groupRoles[group] = unmapRole(roles, role)
	}
}

// mapRole returns a fresh slice with the role added once.
func mapRole(roles []int64, role int64) []int64 {
	for _, existing := range roles {
		if existing == role {
			return roles
		}
	}

	out := make([]int64, 0, len(roles)+1)
	out = append(out, roles...)

	return append(out, role)
}

// unmapRole returns a fresh slice with every matching role removed.
func unmapRole(roles []int64, role int64) []int64 {
	out := make([]int64, 0, len(roles))

	for _, existing := range roles {
		if existing != role {
			out = append(out, existing)
		}
	}

	return out
}

func sortedCopy(roles []int64) []int64 {
	out := append([]int64(nil), roles...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}
