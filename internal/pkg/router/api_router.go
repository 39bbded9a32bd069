package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fit9to5/billing-api/app/controllers"
	apiv1 "github.com/fit9to5/billing-api/internal/api/v1"
	"github.com/fit9to5/billing-api/internal/pkg/constants"
	"github.com/fit9to5/billing-api/internal/pkg/middleware"
	"github.com/fit9to5/billing-api/internal/pkg/ratelimit"
)

type ApiRouter struct {
	deps Dependencies
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group(constants.APIPrefix, ratelimit.New(ratelimit.Config{
		Max:       h.deps.RateLimitMax,
		Storage:   h.deps.LimiterStorage,
		SkipPaths: []string{constants.StripeWebhookPath},
	}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// API v1 routes
	v1 := api.Group(constants.APIV1Prefix)
	billingController := controllers.NewBillingController(h.deps.Billing, h.deps.AllowedOrigins)
	apiServer := apiv1.NewAPIServer(billingController)
	apiv1.RegisterHandlers(v1, apiServer,
		middleware.BearerAuthMiddleware(h.deps.Verifier),
		middleware.RequireSubject,
	)
}

func NewApiRouter(deps Dependencies) *ApiRouter {
	return &ApiRouter{deps: deps}
}
