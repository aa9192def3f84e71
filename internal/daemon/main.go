// Package daemon wires the configured backends together: it registers
// every known plugin implementation, resolves the four backends the
// configuration names, builds the in-memory role index from the stores, seeds accounts
// from the identity provider and runs the web service plus the periodic
// maintenance jobs.
package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/CNES/DOI-server-sub001/internal/config"
	"github.com/CNES/DOI-server-sub001/internal/datacite"
	"github.com/CNES/DOI-server-sub001/internal/identity"
	"github.com/CNES/DOI-server-sub001/internal/plugin"
	"github.com/CNES/DOI-server-sub001/internal/realm"
	"github.com/CNES/DOI-server-sub001/internal/store"
	"github.com/CNES/DOI-server-sub001/internal/token"
	"github.com/CNES/DOI-server-sub001/internal/web"
	"github.com/CNES/DOI-server-sub001/internal/web/handler"
)

const startupTimeout = 30 * time.Second

// Daemon represents the main application daemon.
type Daemon struct {
	cfg        *config.Config
	registry   *plugin.Registry
	webService *web.Service
	cron       *cron.Cron
	tokens     plugin.TokenStore
	identity   plugin.IdentityProvider
	users      plugin.UserRoleStore
	datacite   datacite.Client
}

// Start runs the maintenance scheduler and the web service. It blocks
// until the listener stops.
func (d *Daemon) Start() error {
	d.cron.Start()

	return d.webService.Start(fmt.Sprintf("%s:%d", d.cfg.Webserver.Domain, d.cfg.Webserver.Port))
}

// WaitShutdown blocks until a termination signal, drains the web
// service, stops the scheduler and releases every resolved plugin.
func (d *Daemon) WaitShutdown() {
	d.webService.WaitShutdown()

	<-d.cron.Stop().Done()
	d.registry.ReleaseAll()
}

// New creates a new Daemon instance with the provided configuration.
// Any backend that cannot be resolved is fatal: the service never runs
// with a partial security stack.
func New(cfg *config.Config) (*Daemon, error) {
	if cfg == nil {
		log.Fatal().Msg("config is nil")
		return nil, nil
	}

	registry := newRegistry()

	identityProvider, err := registry.ResolveIdentity(
		cfg.Plugins.Identity, cfg.Plugins.Options[string(plugin.CapIdentity)])
	if err != nil {
		return nil, err
	}

	projects, err := registry.ResolveProject(
		cfg.Plugins.Project, cfg.Plugins.Options[string(plugin.CapProject)])
	if err != nil {
		return nil, err
	}

	users, err := registry.ResolveUserRole(
		cfg.Plugins.UserRole, cfg.Plugins.Options[string(plugin.CapUserRole)])
	if err != nil {
		return nil, err
	}

	tokenStore, err := registry.ResolveToken(
		cfg.Plugins.Token, cfg.Plugins.Options[string(plugin.CapToken)])
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	if err := seed(ctx, identityProvider, users); err != nil {
		return nil, err
	}

	rlm, err := buildRealm(ctx, users, projects)
	if err != nil {
		return nil, err
	}

	// keep the index in sync with every later mutation
	projects.Subscribe(rlm)
	users.Subscribe(rlm)

	if cfg.Security.TokenSecret == config.DefaultTokenSecret {
		log.Warn().Msg("token signing secret is the built-in default, set security.tokenSecret")
	}

	tokens := token.New(
		[]byte(cfg.Security.TokenSecret),
		time.Duration(cfg.Security.TokenValidityDays)*24*time.Hour,
		tokenStore,
		nil,
	)

	agency := datacite.New(datacite.Config{
		URL:      cfg.DataCite.URL,
		User:     cfg.DataCite.User,
		Password: cfg.DataCite.Password,
		Prefix:   cfg.DataCite.Prefix,
		Timeout:  time.Duration(cfg.DataCite.Timeout) * time.Second,
	})

	webService, err := web.New(cfg, &handler.Deps{
		Cfg:      cfg,
		Identity: identityProvider,
		Projects: projects,
		Users:    users,
		Tokens:   tokens,
		Realm:    rlm,
		DataCite: agency,
	})
	if err != nil {
		return nil, err
	}

	d := &Daemon{
		cfg:        cfg,
		registry:   registry,
		webService: webService,
		cron:       cron.New(),
		tokens:     tokenStore,
		identity:   identityProvider,
		users:      users,
		datacite:   agency,
	}

	if err := d.scheduleJobs(); err != nil {
		return nil, err
	}

	return d, nil
}

// newRegistry registers every shipped backend implementation.
func newRegistry() *plugin.Registry {
	registry := plugin.NewRegistry()

	registry.Register(plugin.CapIdentity, identity.BackendLDAP, identity.NewLDAP)
	registry.Register(plugin.CapIdentity, identity.BackendDB, identity.NewDB)
	registry.Register(plugin.CapIdentity, identity.BackendStatic, identity.NewStatic)

	registry.Register(plugin.CapProject, store.BackendDB, store.NewDBProject)

	registry.Register(plugin.CapUserRole, store.BackendDB, store.NewDBUserRole)
	registry.Register(plugin.CapUserRole, store.BackendFile, store.NewFileUserRole)

	registry.Register(plugin.CapToken, store.BackendDB, store.NewDBToken)
	registry.Register(plugin.CapToken, store.BackendMemory, store.NewMemoryToken)

	return registry
}

// buildRealm loads the persisted users, assignments and projects into a
// fresh role index. Assignments come from the user-role store, the one
// that authored them: the project store's view only covers backends
// sharing its database.
func buildRealm(ctx context.Context, users plugin.UserRoleStore, projects plugin.ProjectStore) (*realm.Realm, error) {
	rlm := realm.New()

	registered, err := projects.List(ctx)
	if err != nil {
		return nil, err
	}

	for _, p := range registered {
		rlm.Notify(plugin.ProjectAdded{Suffix: p.Suffix, Name: p.Name})
	}

	known, err := users.Users(ctx)
	if err != nil {
		return nil, err
	}

	for _, u := range known {
		rlm.AddUser(u.Login, u.Admin)
	}

	for _, p := range registered {
		assigned, err := users.ListForProject(ctx, p.Suffix)
		if err != nil {
			return nil, err
		}

		for _, u := range assigned {
			rlm.MapUser(u.Login, p.Suffix)
		}
	}

	log.Info().
		Int("users", len(known)).
		Int("projects", len(registered)).
		Msg("role index built")

	return rlm, nil
}
