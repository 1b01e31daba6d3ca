package controllers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/alumup/athletesapp-sub001/internal/pkg/billing"
	"github.com/alumup/athletesapp-sub001/internal/pkg/gateway"
)

var validate = newValidator()

// newValidator reports json field names so messages match the request body.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// parseBody decodes the JSON body into dst and runs its validate tags.
func parseBody(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		return &billing.ValidationError{Field: "body", Message: "invalid JSON body"}
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &billing.ValidationError{Field: verrs[0].Field(), Message: validationMessage(verrs[0])}
		}
		return &billing.ValidationError{Field: "body", Message: err.Error()}
	}
	return nil
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must contain at least " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// writeError maps billing errors onto HTTP statuses. Gateway failures are
// reported generically; details stay in the log.
func writeError(c *fiber.Ctx, component string, err error) error {
	var verr *billing.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "validation_failed",
			"field":   verr.Field,
			"message": verr.Field + " " + verr.Message,
		})
	case errors.Is(err, billing.ErrInvalidSignature):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_signature"})
	case errors.Is(err, gateway.ErrMalformedEvent):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_payload"})
	case errors.Is(err, billing.ErrUnhandledEvent):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unhandled_event", "message": err.Error()})
	case errors.Is(err, billing.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": err.Error()})
	case errors.Is(err, billing.ErrAlreadyPaid):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "already_paid", "message": err.Error()})
	case errors.Is(err, billing.ErrCheckoutFailed):
		log.Errorf("[%s] %v", component, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "checkout_failed", "message": "checkout failed"})
	case errors.Is(err, billing.ErrInvoiceFailed):
		log.Errorf("[%s] %v", component, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "invoice_failed", "message": "invoice failed"})
	case errors.Is(err, billing.ErrLockUnavailable), errors.Is(err, billing.ErrPaymentPending):
		log.Warnf("[%s] %v", component, err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "try_again"})
	default:
		log.Errorf("[%s] %v", component, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
	}
}
