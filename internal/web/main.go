package web

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/CNES/DOI-server-sub001/internal/config"
	fiberlogger "github.com/CNES/DOI-server-sub001/internal/logger/adapter/fiber"
	"github.com/CNES/DOI-server-sub001/internal/web/handler"
	"github.com/CNES/DOI-server-sub001/internal/web/handler/admin"
	"github.com/CNES/DOI-server-sub001/internal/web/handler/dois"
	"github.com/CNES/DOI-server-sub001/internal/web/handler/projects"
	"github.com/CNES/DOI-server-sub001/internal/web/handler/roles"
	"github.com/CNES/DOI-server-sub001/internal/web/handler/tokens"
	"github.com/CNES/DOI-server-sub001/internal/web/middleware/secpipe"
)

const checkAlivePath = "/healthz"

// Service represents the web service.
type Service struct {
	App          *fiber.App
	cfg          *config.Config
	fastShutDown bool
	alive        atomic.Bool
}

// Start starts the web service on the given address.
func (s *Service) Start(addr string) error {
	var doneFiber = make(chan bool)

	go func() {
		if err := s.App.Listen(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Msgf("fiber listen error: %v", err)
		}

		doneFiber <- true
	}()

	<-doneFiber // wait for fiber to stop

	return nil
}

// WaitShutdown waits for graceful shutdown of the web service.
func (s *Service) WaitShutdown() {
	irqSig := make(chan os.Signal, 1)
	signal.Notify(irqSig, syscall.SIGINT, syscall.SIGTERM)

	sig := <-irqSig
	log.Info().Msgf("shutdown request (signal: %v)", sig)

	// Graceful shutdown for reverse proxies: fail the aliveness probe first
	// so the load balancer drains this instance before the listener stops.
	if !s.fastShutDown {
		log.Info().Msgf(
			"graceful shutdown: return 503 while %d seconds to let LB to remove this pod from active targets",
			s.cfg.Webserver.ShutDownTime,
		)

		s.alive.Store(false)
		time.Sleep(time.Duration(s.cfg.Webserver.ShutDownTime) * time.Second)
	}

	serverShutdown := make(chan struct{})

	go func() {
		log.Info().Msg("stopping http server ...")

		err := s.App.Shutdown()
		if err != nil {
			log.Error().Err(err).Msg("")
		}

		serverShutdown <- struct{}{}
	}()

	<-serverShutdown
	log.Info().Msg("http server was stopped ... good bye...")
}

// New creates a new web service with the given configuration and
// resolved backends.
func New(cfg *config.Config, deps *handler.Deps) (*Service, error) {
	if cfg == nil || deps == nil {
		panic("config and deps cannot be nil")
	}

	app := fiber.New(
		fiber.Config{
			ReadBufferSize: 8192,
			AppName:        cfg.Title,
			CaseSensitive:  true,
			Prefork:        false,
			Immutable:      true,
		},
	)

	service := &Service{
		cfg:          cfg,
		App:          app,
		fastShutDown: cfg.DevMode,
	}
	service.alive.Store(true)

	// access log
	app.Use(fiberlogger.New(fiberlogger.Config{
		Config:        cfg.Log,
		CheckAliveURI: checkAlivePath,
	}))

	// aliveness probe and metrics bypass the security pipeline
	app.Get(checkAlivePath, func(c *fiber.Ctx) error {
		if !service.alive.Load() {
			return c.SendStatus(fiber.StatusServiceUnavailable)
		}

		return c.SendString("OK")
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// security pipeline guards everything under /api
	pipeline, err := secpipe.New(secpipe.Config{
		TrustedProxyHeader: cfg.Webserver.TrustedProxyHeader,
		SelectedRoleHeader: cfg.Security.SelectedRoleHeader,
		BearerMandatory:    !cfg.Security.BearerOptional,
		AllowList:          cfg.Security.AdminAllowList,
		TokenPath:          tokens.Path,
		ProjectsPath:       projects.Path,
		DOIsPath:           dois.Path,
		AdminPrefix:        admin.Path,
	}, deps.Identity, deps.Realm, deps.Tokens)
	if err != nil {
		return nil, err
	}

	app.Use("/api", pipeline.Handler())

	// init handlers (they register their own routes)
	for _, h := range []handler.Service{
		&tokens.Handler,
		&roles.Handler,
		&projects.Handler,
		&dois.Handler,
		&admin.Handler,
	} {
		if err := h.Init(app, deps); err != nil {
			return nil, err
		}
	}

	return service, nil
}
