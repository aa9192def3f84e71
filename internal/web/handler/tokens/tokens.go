// Package tokens exposes the token lifecycle endpoint: an
// authenticated caller obtains a signed project token with POST and
// revokes one with DELETE. The security pipeline already enforced
// authentication; role entitlement for the requested project is checked
// here against the role index.
package tokens

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/CNES/DOI-server-sub001/internal/web/handler"
)

const (
	// Path is the token endpoint path.
	Path = "/api/token"
)

// Service is the token handler service.
type Service struct {
	deps *handler.Deps
}

// Handler is the token handler.
var Handler = Service{}

// Init initializes the token handler.
func (s *Service) Init(app *fiber.App, deps *handler.Deps) error {
	if app == nil || deps == nil {
		return errors.New(handler.ErrNilADFatalLogMsg)
	}

	s.deps = deps

	app.Route(Path, func(router fiber.Router) {
		router.Post(handler.RootPath, s.Post)
		router.Delete(handler.RootPath, s.Delete)
	})

	return nil
}

// Post issues a token for the requested project. The subject defaults
// to the caller; issuing for another identifier is an administrator
// action. The subject must hold the project role or the admin flag.
func (s *Service) Post(c *fiber.Ctx) error {
	login := handler.Login(c)

	subject := c.FormValue("identifier")
	if subject == "" {
		subject = login
	}

	if subject != login && !s.deps.Realm.IsAdmin(login) {
		return c.Status(fiber.StatusForbidden).SendString("cannot issue for another identifier")
	}

	suffix, err := strconv.ParseInt(c.FormValue("projectID"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("projectID must be a project suffix")
	}

	if !s.deps.Realm.HasRole(subject, suffix) {
		return c.Status(fiber.StatusForbidden).SendString("no role on the requested project")
	}

	signed, err := s.deps.Tokens.Issue(c.UserContext(), subject, suffix)
	if err != nil {
		log.Error().Err(err).Str("login", subject).Int64("suffix", suffix).Msg("token issuance failed")

		return c.Status(fiber.StatusInternalServerError).SendString("token not issued")
	}

	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)

	return c.Status(fiber.StatusCreated).SendString(signed)
}

// Delete revokes a previously issued token. Only the token subject or
// an administrator may revoke.
func (s *Service) Delete(c *fiber.Ctx) error {
	login := handler.Login(c)

	signed := c.FormValue("token")
	if signed == "" {
		return c.Status(fiber.StatusBadRequest).SendString("token form value required")
	}

	stored, found, err := s.deps.Tokens.Lookup(c.UserContext(), signed)
	if err != nil {
		log.Error().Err(err).Msg("token lookup failed")

		return c.Status(fiber.StatusInternalServerError).SendString("token not revoked")
	}

	if !found {
		return c.Status(fiber.StatusNotFound).SendString("unknown token")
	}

	if stored.Subject != login && !s.deps.Realm.IsAdmin(login) {
		return c.Status(fiber.StatusForbidden).SendString("not the token owner")
	}

	revoked, err := s.deps.Tokens.Revoke(c.UserContext(), signed)
	if err != nil {
		log.Error().Err(err).Msg("token revocation failed")

		return c.Status(fiber.StatusInternalServerError).SendString("token not revoked")
	}

	if !revoked {
		return c.Status(fiber.StatusNotFound).SendString("unknown token")
	}

	return c.SendStatus(fiber.StatusNoContent)
}
