// Package projects exposes the read side of the project registry: the
// collection listing is anonymous, the per-project view is role-gated by
// the security pipeline, and the roles sub-path lists the members of a
// project the caller belongs to.
package projects

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/CNES/DOI-server-sub001/internal/web/handler"
)

const (
	// Path is the project collection path.
	Path = "/api/projects"
)

// Service is the projects handler service.
type Service struct {
	deps *handler.Deps
}

// Handler is the projects handler.
var Handler = Service{}

// Init initializes the projects handler.
func (s *Service) Init(app *fiber.App, deps *handler.Deps) error {
	if app == nil || deps == nil {
		return errors.New(handler.ErrNilADFatalLogMsg)
	}

	s.deps = deps

	app.Route(Path, func(router fiber.Router) {
		router.Get(handler.RootPath, s.List)
		router.Get("/:suffix", s.Get)
		router.Get("/:suffix/roles", s.Members)
	})

	return nil
}

type projectView struct {
	Suffix int64  `json:"suffix"`
	Name   string `json:"name"`
}

// List returns every registered project. Anonymous access is allowed.
func (s *Service) List(c *fiber.Ctx) error {
	projects, err := s.deps.Projects.List(c.UserContext())
	if err != nil {
		log.Error().Err(err).Msg("project listing failed")

		return c.Status(fiber.StatusInternalServerError).SendString("server error")
	}

	views := make([]projectView, 0, len(projects))
	for _, p := range projects {
		views = append(views, projectView{Suffix: p.Suffix, Name: p.Name})
	}

	return c.JSON(views)
}

// Get returns one project.
func (s *Service) Get(c *fiber.Ctx) error {
	suffix, err := suffixParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("suffix must be numeric")
	}

	name, found, err := s.deps.Projects.NameOf(c.UserContext(), suffix)
	if err != nil {
		log.Error().Err(err).Int64("suffix", suffix).Msg("project lookup failed")

		return c.Status(fiber.StatusInternalServerError).SendString("server error")
	}

	if !found {
		return c.Status(fiber.StatusNotFound).SendString("unknown project")
	}

	return c.JSON(projectView{Suffix: suffix, Name: name})
}

// Members lists the logins holding the project role. The pipeline lets
// the roles sub-path through without role checking, so membership is
// enforced here: the caller must be authenticated and either hold the
// role or be an administrator.
func (s *Service) Members(c *fiber.Ctx) error {
	login := handler.Login(c)
	if login == "" {
		return c.Status(fiber.StatusUnauthorized).SendString("authentication required")
	}

	suffix, err := suffixParam(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("suffix must be numeric")
	}

	if !s.deps.Realm.HasRole(login, suffix) {
		return c.Status(fiber.StatusForbidden).SendString("no role on this project")
	}

	users, err := s.deps.Users.ListForProject(c.UserContext(), suffix)
	if err != nil {
		log.Error().Err(err).Int64("suffix", suffix).Msg("project member listing failed")

		return c.Status(fiber.StatusInternalServerError).SendString("server error")
	}

	logins := make([]string, 0, len(users))
	for _, u := range users {
		logins = append(logins, u.Login)
	}

	return c.JSON(logins)
}

func suffixParam(c *fiber.Ctx) (int64, error) {
	return strconv.ParseInt(c.Params("suffix"), 10, 64)
}
