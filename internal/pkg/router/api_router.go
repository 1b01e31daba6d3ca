package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/alumup/athletesapp-sub001/internal/pkg/middleware"
)

const defaultRateLimit = 60

type ApiRouter struct {
	cfg Config
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	max := h.cfg.RateLimit
	if max <= 0 {
		max = defaultRateLimit
	}

	api := app.Group("/api", limiter.New(limiter.Config{
		Max:        max,
		Expiration: time.Minute,
		Storage:    h.cfg.LimiterStorage,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate_limited"})
		},
	}))

	v1 := api.Group("/v1", middleware.InternalTokenMiddleware(h.cfg.InternalToken))
	bc := h.cfg.Billing
	v1.Post("/checkout", bc.HandleCheckout)
	v1.Post("/checkout/multi", bc.HandleMultiCheckout)
	v1.Post("/invoices", bc.HandleCreateInvoice)
	v1.Post("/events/:event_id/attendance", bc.HandleGetOrCreateAttendance)
	v1.Post("/attendance/:id/rsvp", bc.HandleConfirmRSVP)
}

func NewApiRouter(cfg Config) *ApiRouter {
	return &ApiRouter{cfg: cfg}
}
