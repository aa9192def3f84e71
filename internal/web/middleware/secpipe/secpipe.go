// Package secpipe implements the per-request security pipeline: an
// ordered chain of stages that extracts the client context, attempts
// Basic and Bearer authentication, authorizes the HTTP method and the
// asserted project role, and gates administrative paths behind an IP
// allow-list. Every request makes a single linear pass; a stage either
// marks context for the next one or short-circuits with 401, 403 or 409.
package secpipe

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/CNES/DOI-server-sub001/internal/plugin"
	"github.com/CNES/DOI-server-sub001/internal/realm"
	"github.com/CNES/DOI-server-sub001/internal/token"
)

// Locals keys under which the pipeline exposes the resolved request
// context to downstream handlers.
const (
	LocalClientIP = "secpipe_client_ip"
	LocalLogin    = "secpipe_login"
	LocalRole     = "secpipe_role"
)

// noRole marks the absence of a token-asserted or selected role.
const noRole int64 = -1

// Config carries the pipeline settings resolved from the configuration
// file.
type Config struct {
	// TrustedProxyHeader names the inbound header carrying the real client
	// IP. Empty disables proxy awareness.
	TrustedProxyHeader string

	// SelectedRoleHeader lets a multi-role caller pick the project role a
	// request asserts.
	SelectedRoleHeader string

	// BearerMandatory rejects requests carrying an invalid bearer token
	// with 403. When false an invalid token merely fails to establish
	// identity.
	BearerMandatory bool

	// AllowList restricts paths under AdminPrefix to these CIDR/host
	// entries. Empty disables the gate (fail-open; logged at startup).
	AllowList []string

	// Route anchors used by the bypass rules.
	TokenPath    string
	ProjectsPath string
	DOIsPath     string
	RolesSegment string
	AdminPrefix  string
}

// Pipeline is the per-request security state machine. It shares only the
// read side of the role index and token service between concurrent
// requests.
type Pipeline struct {
	cfg      Config
	allow    *allowList
	identity plugin.IdentityProvider
	realm    *realm.Realm
	tokens   *token.Service
}

// New builds the pipeline. The allow-list entries are parsed once;
// invalid entries are rejected.
func New(cfg Config, identity plugin.IdentityProvider, rlm *realm.Realm, tokens *token.Service) (*Pipeline, error) {
	if cfg.TokenPath == "" {
		cfg.TokenPath = "/api/token"
	}

	if cfg.ProjectsPath == "" {
		cfg.ProjectsPath = "/api/projects"
	}

	if cfg.DOIsPath == "" {
		cfg.DOIsPath = "/api/dois"
	}

	if cfg.RolesSegment == "" {
		cfg.RolesSegment = "roles"
	}

	if cfg.AdminPrefix == "" {
		cfg.AdminPrefix = "/api/admin"
	}

	if cfg.SelectedRoleHeader == "" {
		cfg.SelectedRoleHeader = "selectedRole"
	}

	allow, err := newAllowList(cfg.AllowList)
	if err != nil {
		return nil, err
	}

	if allow.empty() {
		log.Warn().Msg("no admin IP allow-list configured: the gate is disabled (fail-open)")
	}

	return &Pipeline{
		cfg:      cfg,
		allow:    allow,
		identity: identity,
		realm:    rlm,
		tokens:   tokens,
	}, nil
}

// Handler returns the fiber middleware running the stages in order.
func (p *Pipeline) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// stage 1: context extraction, never rejects
		clientIP := p.extractClientIP(c)
		c.Locals(LocalClientIP, clientIP)

		// stage 2: optional Basic challenge
		login, authed, err := p.basicChallenge(c)
		if err != nil {
			return p.serverError(c, err)
		}

		// stage 3: Bearer challenge. A parseable selected-role header is
		// asserted against the token claim right here; stage 5 still owns
		// the malformed-header rejection.
		tokenRole := noRole

		if bearer := bearerToken(c); bearer != "" {
			asserted := noRole
			if raw := c.Get(p.cfg.SelectedRoleHeader); raw != "" {
				if parsed, errParse := strconv.ParseInt(raw, 10, 64); errParse == nil {
					asserted = parsed
				}
			}

			claims, errVerify := p.tokens.Verify(c.UserContext(), bearer, asserted)

			switch {
			case errVerify == nil:
				login = claims.Subject
				authed = true
				tokenRole = claims.ProjectID
			case errors.Is(errVerify, token.ErrForbidden):
				if p.cfg.BearerMandatory {
					return p.reject(c, fiber.StatusForbidden, "invalid or expired token")
				}
			default:
				return p.serverError(c, errVerify)
			}
		}

		if authed {
			c.Locals(LocalLogin, login)
		}

		// stage 4: method authorization
		if mutating(c.Method()) && !authed {
			return p.reject(c, fiber.StatusUnauthorized, "authentication required")
		}

		// stage 5: role authorization
		if status, explain := p.authorizeRole(c, login, authed, tokenRole); status != 0 {
			return p.reject(c, status, explain)
		}

		// stage 6: IP allow-list gate on administrative paths
		if strings.HasPrefix(c.Path(), p.cfg.AdminPrefix) && !p.allow.empty() && !p.allow.contains(clientIP) {
			return p.reject(c, fiber.StatusForbidden, "client address not allowed")
		}

		// stage 7: dispatch
		verdicts.WithLabelValues(outcomeDispatched).Inc()

		return c.Next()
	}
}

// extractClientIP prefers the trusted proxy header over the transport
// peer address.
func (p *Pipeline) extractClientIP(c *fiber.Ctx) string {
	if p.cfg.TrustedProxyHeader != "" {
		if raw := c.Get(p.cfg.TrustedProxyHeader); raw != "" {
			// first entry of a comma separated chain is the originating client
			first, _, _ := strings.Cut(raw, ",")
			return strings.TrimSpace(first)
		}
	}

	return c.IP()
}

// basicChallenge verifies Basic credentials when present. It never
// rejects: an optional authenticator that fails simply leaves the
// request unauthenticated.
func (p *Pipeline) basicChallenge(c *fiber.Ctx) (string, bool, error) {
	login, secret, ok := basicCredentials(c)
	if !ok {
		return "", false, nil
	}

	valid, err := p.identity.Authenticate(c.UserContext(), login, secret)
	if err != nil {
		return "", false, err
	}

	if !valid {
		log.Debug().Str("login", login).Msg("basic credentials rejected")
		return "", false, nil
	}

	return login, true, nil
}

// authorizeRole runs the role stage. It returns a non-zero status to
// reject, with a short explain string.
func (p *Pipeline) authorizeRole(c *fiber.Ctx, login string, authed bool, tokenRole int64) (int, string) {
	path := c.Path()
	method := c.Method()

	// CORS preflight always passes
	if method == fiber.MethodOptions {
		return 0, ""
	}

	// the token endpoint only needs authentication, except for reads and
	// revocation, so a caller without a selected role can still obtain a
	// token
	if path == p.cfg.TokenPath && method != fiber.MethodGet && method != fiber.MethodDelete {
		return 0, ""
	}

	// anonymous collection listings
	if method == fiber.MethodGet && (path == p.cfg.ProjectsPath || path == p.cfg.DOIsPath) {
		return 0, ""
	}

	// the roles sub-path probes the caller's own role set
	if hasSegment(path, p.cfg.RolesSegment) {
		return 0, ""
	}

	admin := authed && p.realm.IsAdmin(login)

	// administrative paths require the global admin flag
	if strings.HasPrefix(path, p.cfg.AdminPrefix) {
		if !admin {
			return fiber.StatusForbidden, "administrator access required"
		}

		return 0, ""
	}

	required, found := p.requiredRole(c)
	if !found {
		return 0, ""
	}

	if admin {
		return 0, ""
	}

	roles := p.realm.EffectiveRoles(login)
	if tokenRole != noRole {
		roles = mergeRole(roles, tokenRole)
	}

	if len(roles) == 0 {
		return fiber.StatusUnauthorized, "no project role"
	}

	selected := noRole
	if raw := c.Get(p.cfg.SelectedRoleHeader); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fiber.StatusForbidden, "malformed selected role"
		}

		selected = parsed
	}

	if selected == noRole {
		if len(roles) > 1 {
			return fiber.StatusConflict, "several roles assigned, select one"
		}

		selected = roles[0]
	} else if !containsRole(roles, selected) {
		return fiber.StatusForbidden, "selected role not held"
	}

	if selected != required {
		return fiber.StatusForbidden, "role does not match resource"
	}

	c.Locals(LocalRole, selected)

	return 0, ""
}

// requiredRole extracts the role the target resource demands: the
// numeric segment following the projects or DOIs anchor, or an explicit
// projectID form/query value.
func (p *Pipeline) requiredRole(c *fiber.Ctx) (int64, bool) {
	path := c.Path()

	for _, anchor := range []string{p.cfg.DOIsPath, p.cfg.ProjectsPath} {
		if rest, ok := strings.CutPrefix(path, anchor+"/"); ok {
			segment, _, _ := strings.Cut(rest, "/")
			if suffix, err := strconv.ParseInt(segment, 10, 64); err == nil {
				return suffix, true
			}
		}
	}

	if raw := c.FormValue("projectID"); raw != "" {
		if suffix, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return suffix, true
		}
	}

	return 0, false
}

// reject terminates the pipeline with the status and a short explain
// body. Internal detail stays in the server log.
func (p *Pipeline) reject(c *fiber.Ctx, status int, explain string) error {
	verdicts.WithLabelValues(outcomeFor(status)).Inc()

	log.Debug().
		Int("status", status).
		Str("path", c.Path()).
		Str("method", c.Method()).
		Str("clientIP", c.Locals(LocalClientIP).(string)).
		Msg(explain)

	return c.Status(status).SendString(explain)
}

// serverError hides backend failure detail behind a generic 500.
func (p *Pipeline) serverError(c *fiber.Ctx, err error) error {
	verdicts.WithLabelValues(outcomeServerError).Inc()

	log.Error().Err(err).Str("path", c.Path()).Msg("security backend failure")

	return c.Status(fiber.StatusInternalServerError).SendString("server error")
}

// basicCredentials decodes an Authorization: Basic header.
func basicCredentials(c *fiber.Ctx) (string, string, bool) {
	auth := c.Get(fiber.HeaderAuthorization)

	const prefix = "Basic "
	if !strings.HasPrefix(auth, prefix) {
		return "", "", false
	}

	decoded, err := base64.StdEncoding.DecodeString(auth[len(prefix):])
	if err != nil {
		return "", "", false
	}

	login, secret, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return "", "", false
	}

	return login, secret, true
}

// bearerToken extracts an Authorization: Bearer token.
func bearerToken(c *fiber.Ctx) string {
	auth := c.Get(fiber.HeaderAuthorization)

	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}

	return strings.TrimSpace(auth[len(prefix):])
}

// mutating reports whether the method requires an authenticated caller.
func mutating(method string) bool {
	switch method {
	case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
		return false
	default:
		return true
	}
}

func hasSegment(path, segment string) bool {
	for _, part := range strings.Split(path, "/") {
		if part == segment {
			return true
		}
	}

	return false
}

func mergeRole(roles []int64, role int64) []int64 {
	if containsRole(roles, role) {
		return roles
	}

	return append(append([]int64(nil), roles...), role)
}

func containsRole(roles []int64, role int64) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}

	return false
}
