package identity

import (
	"context"
	"sort"
	"strings"

	"github.com/alexedwards/argon2id"
	"github.com/rs/zerolog/log"

	"github.com/CNES/DOI-server-sub001/internal/plugin"
)

// staticReservedPrefix separates provider options from user entries in the
// static options map.
const staticReservedPrefix = "_"

// Static is a fixed login list from the configuration file. Every
// non-reserved option key is a login, its value the Argon2id hash of the
// password. The "_adminID" option names the administrator.
type Static struct {
	options map[string]string
	hashes  map[string]string
}

// NewStatic builds an unconfigured static identity provider.
func NewStatic() plugin.Plugin {
	return &Static{}
}

// Configure splits the options map into reserved keys and user entries.
func (p *Static) Configure(options map[string]string) {
	p.options = options
	p.hashes = make(map[string]string)

	for key, value := range options {
		if strings.HasPrefix(key, staticReservedPrefix) {
			continue
		}

		p.hashes[key] = value
	}
}

// Validate requires the administrator login and at least one user entry.
func (p *Static) Validate() []string {
	var missing []string

	if p.options[staticReservedPrefix+optAdminID] == "" {
		missing = append(missing, staticReservedPrefix+optAdminID)
	}

	if len(p.hashes) == 0 {
		missing = append(missing, "<login entries>")
	}

	return missing
}

// InitConnection has nothing to connect.
func (p *Static) InitConnection() error { return nil }

// Release has nothing to close.
func (p *Static) Release() {}

// AdministratorID is the login promoted to global admin.
func (p *Static) AdministratorID() string {
	return p.options[staticReservedPrefix+optAdminID]
}

// Authenticate verifies the password against the configured Argon2id hash.
func (p *Static) Authenticate(_ context.Context, login, secret string) (bool, error) {
	hash, ok := p.hashes[login]
	if !ok {
		return false, nil
	}

	match, err := argon2id.ComparePasswordAndHash(secret, hash)
	if err != nil {
		log.Error().Str("login", login).Msgf("malformed password hash: %v", err)
		return false, nil
	}

	return match, nil
}

// GroupMembers returns every configured login, ordered.
func (p *Static) GroupMembers(_ context.Context) ([]plugin.User, error) {
	members := make([]plugin.User, 0, len(p.hashes))
	for login := range p.hashes {
		members = append(members, plugin.User{Login: login})
	}

	sort.Slice(members, func(i, j int) bool { return members[i].Login < members[j].Login })

	return members, nil
}
