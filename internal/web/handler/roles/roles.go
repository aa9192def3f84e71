// Package roles lets an authenticated caller probe their own effective
// role set, which the security pipeline exempts from role checking.
package roles

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/CNES/DOI-server-sub001/internal/web/handler"
)

const (
	// Path is the role-probe endpoint path.
	Path = "/api/roles"
)

// Service is the role-probe handler service.
type Service struct {
	deps *handler.Deps
}

// Handler is the role-probe handler.
var Handler = Service{}

// Init initializes the role-probe handler.
func (s *Service) Init(app *fiber.App, deps *handler.Deps) error {
	if app == nil || deps == nil {
		return errors.New(handler.ErrNilADFatalLogMsg)
	}

	s.deps = deps

	app.Get(Path, s.Get)

	return nil
}

type roleSet struct {
	Login string  `json:"login"`
	Admin bool    `json:"admin"`
	Roles []int64 `json:"roles"`
}

// Get returns the caller's login, admin flag and sorted project roles.
func (s *Service) Get(c *fiber.Ctx) error {
	login := handler.Login(c)
	if login == "" {
		return c.Status(fiber.StatusUnauthorized).SendString("authentication required")
	}

	roles := s.deps.Realm.EffectiveRoles(login)
	if roles == nil {
		roles = []int64{}
	}

	return c.JSON(roleSet{
		Login: login,
		Admin: s.deps.Realm.IsAdmin(login),
		Roles: roles,
	})
}
