// Package dois fronts the registration agency: listing the DOIs under
// the member prefix is anonymous, registering one under a project
// namespace is role-gated by the security pipeline.
package dois

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/CNES/DOI-server-sub001/internal/web/handler"
)

const (
	// Path is the DOI collection path.
	Path = "/api/dois"
)

// Service is the DOI handler service.
type Service struct {
	deps     *handler.Deps
	validate *validator.Validate
}

// Handler is the DOI handler.
var Handler = Service{}

// Init initializes the DOI handler.
func (s *Service) Init(app *fiber.App, deps *handler.Deps) error {
	if app == nil || deps == nil {
		return errors.New(handler.ErrNilADFatalLogMsg)
	}

	s.deps = deps
	s.validate = validator.New()

	app.Route(Path, func(router fiber.Router) {
		router.Get(handler.RootPath, s.List)
		router.Get("/:projectID", s.ListProject)
		router.Post("/:projectID", s.Register)
	})

	return nil
}

type registerRequest struct {
	Name     string `json:"name" validate:"required"`
	Metadata string `json:"metadata" validate:"required"`
}

// List returns every DOI registered under the member prefix.
func (s *Service) List(c *fiber.Ctx) error {
	names, err := s.deps.DataCite.List(c.UserContext(), -1)
	if err != nil {
		log.Error().Err(err).Msg("DOI listing failed")

		return c.Status(fiber.StatusBadGateway).SendString("registration agency unavailable")
	}

	return c.JSON(names)
}

// ListProject returns the DOIs under one project namespace.
func (s *Service) ListProject(c *fiber.Ctx) error {
	suffix, err := strconv.ParseInt(c.Params("projectID"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("projectID must be a project suffix")
	}

	names, err := s.deps.DataCite.List(c.UserContext(), suffix)
	if err != nil {
		log.Error().Err(err).Int64("suffix", suffix).Msg("DOI listing failed")

		return c.Status(fiber.StatusBadGateway).SendString("registration agency unavailable")
	}

	return c.JSON(names)
}

// Register creates a DOI under the project namespace. The pipeline has
// already checked that the caller asserts the matching project role; the
// DOI name is namespaced here so a project cannot write outside its
// segment.
func (s *Service) Register(c *fiber.Ctx) error {
	suffix, err := strconv.ParseInt(c.Params("projectID"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("projectID must be a project suffix")
	}

	req := new(registerRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("malformed request body")
	}

	if err := s.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).SendString(err.Error())
	}

	if strings.ContainsAny(req.Name, "/ ") {
		return c.Status(fiber.StatusUnprocessableEntity).SendString("DOI name must be a single path segment")
	}

	doi := fmt.Sprintf("%s/%d/%s", s.deps.Cfg.DataCite.Prefix, suffix, req.Name)

	if err := s.deps.DataCite.Register(c.UserContext(), doi, []byte(req.Metadata)); err != nil {
		log.Error().Err(err).Str("doi", doi).Msg("DOI registration failed")

		return c.Status(fiber.StatusBadGateway).SendString("registration agency unavailable")
	}

	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)

	return c.Status(fiber.StatusCreated).SendString(doi)
}
