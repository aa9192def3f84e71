// Package admin exposes the management surface for users, projects and
// role assignments. The security pipeline restricts every route here to
// authenticated administrators coming from an allowed address.
package admin

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/CNES/DOI-server-sub001/internal/web/handler"
)

const (
	// Path is the administrative route prefix.
	Path = "/api/admin"
)

// Service is the admin handler service.
type Service struct {
	deps     *handler.Deps
	validate *validator.Validate
}

// Handler is the admin handler.
var Handler = Service{}

// Init initializes the admin handler.
func (s *Service) Init(app *fiber.App, deps *handler.Deps) error {
	if app == nil || deps == nil {
		return errors.New(handler.ErrNilADFatalLogMsg)
	}

	s.deps = deps
	s.validate = validator.New()

	app.Route(Path, func(router fiber.Router) {
		router.Get("/users", s.ListUsers)
		router.Post("/users", s.AddUser)
		router.Delete("/users/:login", s.RemoveUser)
		router.Put("/users/:login/admin", s.SetAdmin)
		router.Delete("/users/:login/admin", s.UnsetAdmin)

		router.Post("/projects", s.AddProject)
		router.Delete("/projects/:suffix", s.RemoveProject)
		router.Patch("/projects/:suffix", s.RenameProject)

		router.Post("/assignments", s.Assign)
		router.Delete("/assignments/:login/:suffix", s.Unassign)
	})

	return nil
}
