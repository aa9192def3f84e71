// Package identity provides the identity-provider backends: an LDAP
// directory, a relational credential table and a static list from the
// configuration file.
//
// All three share the contract's failure semantics: a credential mismatch
// returns false without an error, only connectivity failures raise one.
package identity

import (
	"context"
	"crypto/tls"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/CNES/DOI-server-sub001/internal/plugin"
)

// Backend names as they appear under [Plugins] in the configuration file.
const (
	BackendLDAP   = "ldap"
	BackendDB     = "db"
	BackendStatic = "static"
)

// LDAP option keys.
const (
	optHost         = "host"
	optPort         = "port"
	optUseSSL       = "useSSL"
	optUseTLS       = "useTLS"
	optSkipVerify   = "skipVerify"
	optBindDN       = "bindDN"
	optBindPassword = "bindPassword"
	optBaseDN       = "baseDN"
	optUserFilter   = "userFilter"
	optGroupFilter  = "groupFilter"
	optUsernameAttr = "usernameAttr"
	optEmailAttr    = "emailAttr"
	optNameAttr     = "nameAttr"
	optAdminID      = "adminID"
	optTimeout      = "timeout"
)

const defaultLDAPTimeout = 10 * time.Second

// LDAP authenticates against a directory by binding as the user, and
// enumerates the organization's designated group to seed accounts.
type LDAP struct {
	options map[string]string
	timeout time.Duration
}

// NewLDAP builds an unconfigured LDAP identity provider.
func NewLDAP() plugin.Plugin {
	return &LDAP{}
}

// Configure stores the options map and applies attribute defaults.
func (p *LDAP) Configure(options map[string]string) {
	p.options = options

	if p.options[optUsernameAttr] == "" {
		p.options[optUsernameAttr] = "uid"
	}

	if p.options[optEmailAttr] == "" {
		p.options[optEmailAttr] = "mail"
	}

	if p.options[optNameAttr] == "" {
		p.options[optNameAttr] = "cn"
	}

	p.timeout = defaultLDAPTimeout
	if raw := p.options[optTimeout]; raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			p.timeout = time.Duration(secs) * time.Second
		}
	}
}

// Validate reports the required option keys that are missing.
func (p *LDAP) Validate() []string {
	var missing []string

	for _, key := range []string{optHost, optPort, optBaseDN, optUserFilter, optGroupFilter, optAdminID} {
		if p.options[key] == "" {
			missing = append(missing, key)
		}
	}

	return missing
}

// InitConnection verifies the directory is reachable and the service
// account can bind.
func (p *LDAP) InitConnection() error {
	conn, err := p.connect()
	if err != nil {
		return err
	}

	defer closeConn(conn)

	return p.bindService(conn)
}

// Release has nothing to close; connections are per-operation.
func (p *LDAP) Release() {}

// AdministratorID is the login promoted to global admin when present
// among the group members.
func (p *LDAP) AdministratorID() string {
	return p.options[optAdminID]
}

// Authenticate verifies the login/password pair with a directory bind.
// A failed bind on an established connection is a credential mismatch,
// never an error.
func (p *LDAP) Authenticate(_ context.Context, login, secret string) (bool, error) {
	// empty password would turn the bind into an anonymous one
	if login == "" || secret == "" {
		return false, nil
	}

	conn, err := p.connect()
	if err != nil {
		return false, err
	}

	defer closeConn(conn)

	if err = p.bindService(conn); err != nil {
		return false, err
	}

	entry, err := p.searchUserEntry(conn, login)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return false, nil
		}

		return false, err
	}

	if err = conn.Bind(entry.DN, secret); err != nil {
		return false, nil
	}

	return true, nil
}

// GroupMembers enumerates the designated organizational group.
func (p *LDAP) GroupMembers(_ context.Context) ([]plugin.User, error) {
	conn, err := p.connect()
	if err != nil {
		return nil, err
	}

	defer closeConn(conn)

	if err = p.bindService(conn); err != nil {
		return nil, err
	}

	req := ldap.NewSearchRequest(
		p.options[optBaseDN],
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0,
		int(p.timeout.Seconds()),
		false,
		p.options[optGroupFilter],
		[]string{p.options[optUsernameAttr], p.options[optEmailAttr], p.options[optNameAttr], "dn"},
		nil,
	)

	res, err := conn.Search(req)
	if err != nil {
		return nil, errors.Wrapf(plugin.ErrBackendUnavailable, "group search failed: %v", err)
	}

	members := make([]plugin.User, 0, len(res.Entries))
	for _, entry := range res.Entries {
		members = append(members, plugin.User{
			Login:    entry.GetAttributeValue(p.options[optUsernameAttr]),
			FullName: entry.GetAttributeValue(p.options[optNameAttr]),
			Email:    entry.GetAttributeValue(p.options[optEmailAttr]),
		})
	}

	return members, nil
}

// connect dials the directory, upgrading to TLS when configured.
func (p *LDAP) connect() (*ldap.Conn, error) {
	hostPort := net.JoinHostPort(p.options[optHost], p.options[optPort])

	useSSL := p.options[optUseSSL] == "true"
	useTLS := p.options[optUseTLS] == "true"

	ldapURL := "ldap://" + hostPort
	if useSSL {
		ldapURL = "ldaps://" + hostPort
	}

	var tlsConfig *tls.Config
	if useSSL || useTLS {
		tlsConfig = &tls.Config{
			InsecureSkipVerify: p.options[optSkipVerify] == "true", //nolint:gosec // operator's choice for test setups
			ServerName:         p.options[optHost],
		}
	}

	conn, err := ldap.DialURL(ldapURL, ldap.DialWithTLSConfig(tlsConfig))
	if err != nil {
		return nil, errors.Wrapf(plugin.ErrBackendUnavailable, "failed to connect to LDAP server: %v", err)
	}

	if !useSSL && useTLS {
		if errStartTLS := conn.StartTLS(tlsConfig); errStartTLS != nil {
			closeConn(conn)

			return nil, errors.Wrapf(plugin.ErrBackendUnavailable, "failed to start TLS: %v", errStartTLS)
		}
	}

	conn.SetTimeout(p.timeout)

	return conn, nil
}

// bindService binds with the configured service account, if one is set.
func (p *LDAP) bindService(conn *ldap.Conn) error {
	if p.options[optBindDN] == "" {
		return nil
	}

	if err := conn.Bind(p.options[optBindDN], p.options[optBindPassword]); err != nil {
		return errors.Wrapf(plugin.ErrBackendUnavailable, "failed to bind with service account: %v", err)
	}

	return nil
}

// searchUserEntry searches the directory for the login and returns a
// single entry.
func (p *LDAP) searchUserEntry(conn *ldap.Conn, login string) (*ldap.Entry, error) {
	filter := strings.ReplaceAll(p.options[optUserFilter], "{username}", ldap.EscapeFilter(login))

	req := ldap.NewSearchRequest(
		p.options[optBaseDN],
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0,
		int(p.timeout.Seconds()),
		false,
		filter,
		[]string{p.options[optUsernameAttr], p.options[optEmailAttr], p.options[optNameAttr], "dn"},
		nil,
	)

	res, err := conn.Search(req)
	if err != nil {
		return nil, errors.Wrapf(plugin.ErrBackendUnavailable, "failed to search for user: %v", err)
	}

	switch len(res.Entries) {
	case 0:
		return nil, ErrUserNotFound
	case 1:
		return res.Entries[0], nil
	default:
		return nil, ErrMultipleUsersFound
	}
}

func closeConn(conn *ldap.Conn) {
	if err := conn.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close LDAP connection")
	}
}
