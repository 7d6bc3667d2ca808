// Package main provides the Costura API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/dukex/costura/pkg/cache"
	"github.com/dukex/costura/pkg/eventbus"
	"github.com/dukex/costura/pkg/persistence"
	"github.com/dukex/costura/pkg/services"
	"github.com/dukex/costura/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"go.opentelemetry.io/otel/trace"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	cache       cache.Cache
	eventBus    eventbus.EventBus
	tracer      trace.Tracer
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	calculationCache cache.Cache,
	eventBus eventbus.EventBus,
	tracer trace.Tracer,
) *API {
	return &API{
		persistence: persistence,
		logger:      logger,
		cache:       calculationCache,
		eventBus:    eventBus,
		tracer:      tracer,
		validate:    web.NewValidator(),
	}
}

// Services builds the costing services shared by the HTTP handlers.
func (a *API) Services() (*services.Calculation, *services.Flow, *services.Bom) {
	var publisher eventbus.EventPublisher
	if a.eventBus != nil {
		publisher = a.eventBus
	}

	return services.NewCalculation(a.persistence, a.cache, publisher, a.tracer, a.logger),
		services.NewFlow(a.persistence, publisher, a.logger),
		services.NewBom(a.persistence, a.logger)
}

func (a *API) App() *fiber.App {
	calculationService, flowService, bomService := a.Services()

	handlers := web.NewAPIHandlers(calculationService, flowService, bomService, a.cache, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Costura API")
	})

	handlers.Register(app)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
