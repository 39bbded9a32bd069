package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fit9to5/billing-api/app/controllers"
	"github.com/fit9to5/billing-api/internal/pkg/auth"
)

// Router installs a set of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// Dependencies are the collaborators the routes are wired to.
type Dependencies struct {
	Billing        controllers.BillingService
	Verifier       auth.Verifier
	AllowedOrigins []string
	RateLimitMax   int
	// LimiterStorage is nil for in-memory rate limiting.
	LimiterStorage fiber.Storage
}

func InstallRouter(app *fiber.App, deps Dependencies) {
	// HttpRouter installs CORS first so preflight requests to the API are
	// answered before the limiter and auth run.
	setup(app, NewHttpRouter(deps), NewApiRouter(deps))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
