package admin

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

type assignmentRequest struct {
	Login  string `json:"login" validate:"required"`
	Suffix int64  `json:"suffix" validate:"required,gt=0"`
}

// Assign grants a user the project role. User and project must exist.
func (s *Service) Assign(c *fiber.Ctx) error {
	req := new(assignmentRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("malformed request body")
	}

	if err := s.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).SendString(err.Error())
	}

	// a role always references a registered project, whatever backend
	// holds the assignments
	exists, err := s.deps.Projects.Exists(c.UserContext(), req.Suffix)
	if err != nil {
		log.Error().Err(err).Int64("suffix", req.Suffix).Msg("project lookup failed")

		return c.Status(fiber.StatusInternalServerError).SendString("server error")
	}

	if !exists {
		return c.Status(fiber.StatusConflict).SendString("unknown project")
	}

	ok, err := s.deps.Users.Assign(c.UserContext(), req.Login, req.Suffix)
	if err != nil {
		log.Error().Err(err).Str("login", req.Login).Int64("suffix", req.Suffix).Msg("role assignment failed")

		return c.Status(fiber.StatusInternalServerError).SendString("server error")
	}

	if !ok {
		return c.Status(fiber.StatusConflict).SendString("unknown login or project, or role already assigned")
	}

	return c.SendStatus(fiber.StatusCreated)
}

// Unassign withdraws a user's project role.
func (s *Service) Unassign(c *fiber.Ctx) error {
	login := c.Params("login")

	suffix, err := strconv.ParseInt(c.Params("suffix"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("suffix must be numeric")
	}

	ok, err := s.deps.Users.Unassign(c.UserContext(), login, suffix)
	if err != nil {
		log.Error().Err(err).Str("login", login).Int64("suffix", suffix).Msg("role withdrawal failed")

		return c.Status(fiber.StatusInternalServerError).SendString("server error")
	}

	if !ok {
		return c.Status(fiber.StatusNotFound).SendString("role not assigned")
	}

	return c.SendStatus(fiber.StatusNoContent)
}
