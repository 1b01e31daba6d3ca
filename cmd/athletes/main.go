package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	"github.com/alumup/athletesapp-sub001/app/controllers"
	"github.com/alumup/athletesapp-sub001/app/repository"
	"github.com/alumup/athletesapp-sub001/internal/pkg/billing"
	"github.com/alumup/athletesapp-sub001/internal/pkg/cache"
	"github.com/alumup/athletesapp-sub001/internal/pkg/database"
	"github.com/alumup/athletesapp-sub001/internal/pkg/env"
	"github.com/alumup/athletesapp-sub001/internal/pkg/gateway"
	"github.com/alumup/athletesapp-sub001/internal/pkg/router"
	"github.com/alumup/athletesapp-sub001/internal/pkg/scheduler"
)

func main() {
	app, jobs := NewApplication()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down...")
		jobs.Stop()
		_ = app.Shutdown()
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	if err != nil {
		log.Fatal(err)
	}
}

func NewApplication() (*fiber.App, *scheduler.Manager) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()
	repository.InitializeFactory(database.GetDB())
	repos := repository.GetGlobalRepositories()

	stripeClient, err := gateway.NewStripeClient(gateway.StripeConfig{
		SecretKey: env.GetEnv("STRIPE_SECRET_KEY", ""),
		Currency:  env.GetEnv("STRIPE_CURRENCY", "usd"),
		Timeout:   env.GetDuration("GATEWAY_TIMEOUT", gateway.DefaultTimeout),
	})
	if err != nil {
		log.Fatalf("Failed to configure payment gateway: %v", err)
	}

	svc := billing.NewService(repos, stripeClient,
		billing.WithLocker(billing.NewRedisLocker(cache.GetClient())),
	)

	jobs := scheduler.NewManager(svc, scheduler.Config{
		Schedule: env.GetEnv("SWEEPER_SCHEDULE", scheduler.DefaultSchedule),
		DraftTTL: env.GetDuration("INVOICE_DRAFT_TTL", scheduler.DefaultDraftTTL),
	})
	if err := jobs.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	app := fiber.New(fiber.Config{
		AppName:   "athletes-billing",
		BodyLimit: 1 << 20,
	})

	// recovery, request ids and logging
	app.Use(recover.New(), requestid.New(requestid.Config{
		Generator: func() string { return uuid.NewString() },
	}), logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))

	// SWAGGER / OPENAPI
	app.Use(swagger.New(swagger.Config{
		BasePath: "/docs/api/",
		FilePath: "./docs/openapi.yml",
		Path:     "v1",
	}))

	// ROUTER
	router.InstallRouter(app, router.Config{
		Billing:        controllers.NewBillingController(svc, repos.Account, env.GetEnv("STRIPE_WEBHOOK_SECRET", "")),
		InternalToken:  env.GetEnv("INTERNAL_API_TOKEN", ""),
		LimiterStorage: cache.NewFiberStorage(cache.LimiterDatabase),
		RateLimit:      env.GetInt("API_RATE_LIMIT", 60),
		HealthChecks: map[string]controllers.HealthCheck{
			"database": func(ctx context.Context) error {
				sqlDB, err := database.GetDB().DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			},
			"cache": cache.Ping,
		},
	})

	return app, jobs
}
