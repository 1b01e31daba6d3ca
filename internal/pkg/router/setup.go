package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/alumup/athletesapp-sub001/app/controllers"
)

type Router interface {
	InstallRouter(app *fiber.App)
}

// Config carries what the routers wire into their routes.
type Config struct {
	Billing       *controllers.BillingController
	HealthChecks  map[string]controllers.HealthCheck
	InternalToken string
	// LimiterStorage backs the API rate limiter; nil keeps counters in memory.
	LimiterStorage fiber.Storage
	RateLimit      int
}

func InstallRouter(app *fiber.App, cfg Config) {
	// Webhooks and health checks first so the API limiter never applies to
	// gateway deliveries.
	setup(app, NewHttpRouter(cfg), NewApiRouter(cfg))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
