package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/fit9to5/billing-api/internal/pkg/auth"
	"github.com/fit9to5/billing-api/internal/pkg/billing"
	"github.com/fit9to5/billing-api/internal/pkg/cache"
	"github.com/fit9to5/billing-api/internal/pkg/config"
	"github.com/fit9to5/billing-api/internal/pkg/constants"
	"github.com/fit9to5/billing-api/internal/pkg/database"
	"github.com/fit9to5/billing-api/internal/pkg/env"
	"github.com/fit9to5/billing-api/internal/pkg/ratelimit"
	"github.com/fit9to5/billing-api/internal/pkg/router"
)

func main() {
	app, cfg := NewApplication()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info("Shutting down")
		if err := app.ShutdownWithTimeout(20 * time.Second); err != nil {
			log.Errorf("Shutdown failed: %v", err)
		}
	}()

	if err := app.Listen(cfg.Addr()); err != nil {
		log.Fatal(err)
	}
}

func NewApplication() (*fiber.App, *config.Config) {
	env.SetupEnvFile()
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatal(err)
	}

	db := database.SetupDatabase()
	cacheClient := cache.SetupCache()

	processor, err := billing.NewStripeProcessor(billing.StripeConfig{
		SecretKey: cfg.StripeSecretKey,
		BaseURL:   cfg.StripeAPIBase,
	})
	if err != nil {
		log.Fatal(err)
	}
	verifier, err := auth.NewJWTVerifier(auth.JWTConfig{
		Secret:   cfg.AuthJWTSecret,
		Issuer:   cfg.AuthIssuer,
		Audience: cfg.AuthAudience,
		Leeway:   30 * time.Second,
	})
	if err != nil {
		log.Fatal(err)
	}

	svc := billing.NewService(
		billing.NewCachedRepository(billing.NewRepository(db), cacheClient),
		processor,
		billing.StripeWebhookVerifier{},
		billing.Config{
			PriceID:       cfg.StripePriceID,
			WebhookSecret: cfg.StripeWebhookSecret,
		},
	)

	app := fiber.New(cfg.FiberProxyConfig(fiber.Config{
		AppName:      "billing-api",
		BodyLimit:    1 << 20, // Stripe events are well below 1 MiB
		ReadTimeout:  20 * time.Second,
		WriteTimeout: 20 * time.Second,
	}))

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// SWAGGER / OPENAPI
	if docs := findDocs(); docs != "" {
		app.Use(swagger.New(swagger.Config{
			BasePath: constants.DocsBasePath,
			FilePath: docs,
			Path:     "v1",
		}))
	} else {
		log.Warn("docs/openapi.yml not found, API docs disabled")
	}

	// ROUTER
	router.InstallRouter(app, router.Dependencies{
		Billing:        svc,
		Verifier:       verifier,
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimitMax:   cfg.RateLimitMax,
		LimiterStorage: ratelimit.NewStorage(cacheClient),
	})

	return app, cfg
}

func findDocs() string {
	basePaths := []string{
		"./",        // Current directory
		"../../",    // From cmd/billingapi to project root
		"../../../", // Fallback
	}
	for _, path := range basePaths {
		if _, err := os.Stat(path + "docs/openapi.yml"); err == nil {
			return path + "docs/openapi.yml"
		}
	}
	return ""
}
