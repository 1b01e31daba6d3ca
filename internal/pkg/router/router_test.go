package router

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alumup/athletesapp-sub001/app/controllers"
	"github.com/alumup/athletesapp-sub001/app/repository"
	"github.com/alumup/athletesapp-sub001/internal/pkg/billing"
	"github.com/alumup/athletesapp-sub001/internal/pkg/middleware"
	"github.com/alumup/athletesapp-sub001/internal/pkg/testutil"
)

func newTestApp(t *testing.T, rateLimit int) *fiber.App {
	t.Helper()
	db := testutil.NewDB(t)
	testutil.Seed(t, db)
	repos := repository.NewRepositories(db)
	svc := billing.NewService(repos, testutil.NewFakeGateway())

	app := fiber.New()
	InstallRouter(app, Config{
		Billing:       controllers.NewBillingController(svc, repos.Account, "whsec_platform"),
		HealthChecks:  map[string]controllers.HealthCheck{"database": func(context.Context) error { return nil }},
		InternalToken: "s3cret",
		RateLimit:     rateLimit,
	})
	return app
}

func post(t *testing.T, app *fiber.App, path, token string) int {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, path, bytes.NewReader([]byte(`{}`)))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(middleware.InternalTokenHeader, token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestAPIRoutesRequireInternalToken(t *testing.T) {
	app := newTestApp(t, 100)

	assert.Equal(t, fiber.StatusUnauthorized, post(t, app, "/api/v1/checkout", ""))
	assert.Equal(t, fiber.StatusUnauthorized, post(t, app, "/api/v1/checkout", "wrong"))
	assert.Equal(t, fiber.StatusBadRequest, post(t, app, "/api/v1/checkout", "s3cret"))
}

func TestWebhookAndHealthBypassToken(t *testing.T) {
	app := newTestApp(t, 100)

	assert.Equal(t, fiber.StatusBadRequest, post(t, app, "/webhooks/stripe", ""), "signature check, not token check")

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/healthz", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestAPIRateLimit(t *testing.T) {
	app := newTestApp(t, 2)

	assert.Equal(t, fiber.StatusBadRequest, post(t, app, "/api/v1/checkout", "s3cret"))
	assert.Equal(t, fiber.StatusBadRequest, post(t, app, "/api/v1/checkout", "s3cret"))
	assert.Equal(t, fiber.StatusTooManyRequests, post(t, app, "/api/v1/checkout", "s3cret"))
	assert.Equal(t, fiber.StatusBadRequest, post(t, app, "/webhooks/stripe", ""))
}
