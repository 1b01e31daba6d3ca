package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/alumup/athletesapp-sub001/app/controllers"
)

// HttpRouter serves routes outside the internal API: gateway webhooks, which
// authenticate by signature, and the health check.
type HttpRouter struct {
	cfg Config
}

func (h HttpRouter) InstallRouter(app *fiber.App) {
	app.Get("/healthz", controllers.HandleHealthz(h.cfg.HealthChecks))

	webhooks := app.Group("/webhooks")
	webhooks.Post("/stripe", h.cfg.Billing.HandleStripeWebhook)
	webhooks.Post("/stripe/:account_id", h.cfg.Billing.HandleStripeWebhook)
}

func NewHttpRouter(cfg Config) *HttpRouter {
	return &HttpRouter{cfg: cfg}
}
