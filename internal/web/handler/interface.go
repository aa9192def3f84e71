package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/CNES/DOI-server-sub001/internal/config"
	"github.com/CNES/DOI-server-sub001/internal/datacite"
	"github.com/CNES/DOI-server-sub001/internal/plugin"
	"github.com/CNES/DOI-server-sub001/internal/realm"
	"github.com/CNES/DOI-server-sub001/internal/token"
)

// Deps bundles the resolved backends a handler may consume.
type Deps struct {
	Cfg      *config.Config
	Identity plugin.IdentityProvider
	Projects plugin.ProjectStore
	Users    plugin.UserRoleStore
	Tokens   *token.Service
	Realm    *realm.Realm
	DataCite datacite.Client
}

// Service is the interface for a web handler service.
type Service interface {
	Init(app *fiber.App, deps *Deps) error
}
