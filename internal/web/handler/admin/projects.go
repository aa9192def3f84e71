package admin

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

type projectRequest struct {
	Suffix int64  `json:"suffix" validate:"required,gt=0"`
	Name   string `json:"name" validate:"required"`
}

type renameRequest struct {
	Name string `json:"name" validate:"required"`
}

// AddProject registers a suffix/name pair. Both sides must be unused.
func (s *Service) AddProject(c *fiber.Ctx) error {
	req := new(projectRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("malformed request body")
	}

	if err := s.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).SendString(err.Error())
	}

	ok, err := s.deps.Projects.Add(c.UserContext(), req.Suffix, req.Name)
	if err != nil {
		log.Error().Err(err).Int64("suffix", req.Suffix).Msg("project creation failed")

		return c.Status(fiber.StatusInternalServerError).SendString("server error")
	}

	if !ok {
		return c.Status(fiber.StatusConflict).SendString("suffix or name already registered")
	}

	return c.SendStatus(fiber.StatusCreated)
}

// RemoveProject deletes a project mapping.
func (s *Service) RemoveProject(c *fiber.Ctx) error {
	suffix, err := strconv.ParseInt(c.Params("suffix"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("suffix must be numeric")
	}

	ok, err := s.deps.Projects.Remove(c.UserContext(), suffix)
	if err != nil {
		log.Error().Err(err).Int64("suffix", suffix).Msg("project removal failed")

		return c.Status(fiber.StatusInternalServerError).SendString("server error")
	}

	if !ok {
		return c.Status(fiber.StatusNotFound).SendString("unknown suffix")
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// RenameProject changes a project's name. The suffix is immutable.
func (s *Service) RenameProject(c *fiber.Ctx) error {
	suffix, err := strconv.ParseInt(c.Params("suffix"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("suffix must be numeric")
	}

	req := new(renameRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("malformed request body")
	}

	if err := s.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).SendString(err.Error())
	}

	ok, err := s.deps.Projects.Rename(c.UserContext(), suffix, req.Name)
	if err != nil {
		log.Error().Err(err).Int64("suffix", suffix).Msg("project rename failed")

		return c.Status(fiber.StatusInternalServerError).SendString("server error")
	}

	if !ok {
		return c.Status(fiber.StatusConflict).SendString("unknown suffix or name already taken")
	}

	return c.SendStatus(fiber.StatusNoContent)
}
