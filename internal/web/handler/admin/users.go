package admin

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/CNES/DOI-server-sub001/internal/plugin"
)

type userRequest struct {
	Login    string `json:"login" validate:"required"`
	FullName string `json:"fullName"`
	Email    string `json:"email" validate:"omitempty,email"`
}

type userView struct {
	Login    string `json:"login"`
	FullName string `json:"fullName,omitempty"`
	Email    string `json:"email,omitempty"`
	Admin    bool   `json:"admin"`
}

// ListUsers returns every known user with their admin flag.
func (s *Service) ListUsers(c *fiber.Ctx) error {
	users, err := s.deps.Users.Users(c.UserContext())
	if err != nil {
		log.Error().Err(err).Msg("user listing failed")

		return c.Status(fiber.StatusInternalServerError).SendString("server error")
	}

	views := make([]userView, 0, len(users))
	for _, u := range users {
		views = append(views, userView{Login: u.Login, FullName: u.FullName, Email: u.Email, Admin: u.Admin})
	}

	return c.JSON(views)
}

// AddUser registers a user account without any role.
func (s *Service) AddUser(c *fiber.Ctx) error {
	req := new(userRequest)
	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("malformed request body")
	}

	if err := s.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).SendString(err.Error())
	}

	ok, err := s.deps.Users.Add(c.UserContext(), plugin.User{
		Login:    req.Login,
		FullName: req.FullName,
		Email:    req.Email,
	})
	if err != nil {
		log.Error().Err(err).Str("login", req.Login).Msg("user creation failed")

		return c.Status(fiber.StatusInternalServerError).SendString("server error")
	}

	if !ok {
		return c.Status(fiber.StatusConflict).SendString("login already exists")
	}

	return c.SendStatus(fiber.StatusCreated)
}

// RemoveUser deletes a user and cascades to their assignments.
func (s *Service) RemoveUser(c *fiber.Ctx) error {
	login := c.Params("login")

	ok, err := s.deps.Users.Remove(c.UserContext(), login)
	if err != nil {
		log.Error().Err(err).Str("login", login).Msg("user removal failed")

		return c.Status(fiber.StatusInternalServerError).SendString("server error")
	}

	if !ok {
		return c.Status(fiber.StatusNotFound).SendString("unknown login")
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// SetAdmin grants the global admin flag.
func (s *Service) SetAdmin(c *fiber.Ctx) error {
	return s.toggleAdmin(c, s.deps.Users.SetAdmin)
}

// UnsetAdmin withdraws the global admin flag.
func (s *Service) UnsetAdmin(c *fiber.Ctx) error {
	return s.toggleAdmin(c, s.deps.Users.UnsetAdmin)
}

func (s *Service) toggleAdmin(c *fiber.Ctx, toggle func(ctx context.Context, login string) (bool, error)) error {
	login := c.Params("login")

	ok, err := toggle(c.UserContext(), login)
	if err != nil {
		log.Error().Err(err).Str("login", login).Msg("admin flag change failed")

		return c.Status(fiber.StatusInternalServerError).SendString("server error")
	}

	if !ok {
		return c.Status(fiber.StatusNotFound).SendString("unknown login or flag unchanged")
	}

	return c.SendStatus(fiber.StatusNoContent)
}
