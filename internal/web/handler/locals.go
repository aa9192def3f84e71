package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/CNES/DOI-server-sub001/internal/web/middleware/secpipe"
)

// Login returns the authenticated login the security pipeline resolved
// for this request, or the empty string for an anonymous caller.
func Login(c *fiber.Ctx) string {
	login, _ := c.Locals(secpipe.LocalLogin).(string)

	return login
}
