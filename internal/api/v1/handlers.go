package apiv1

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fit9to5/billing-api/app/controllers"
	"github.com/fit9to5/billing-api/internal/pkg/constants"
)

// APIServer implements the v1 HTTP surface
type APIServer struct {
	billing *controllers.BillingController
}

// NewAPIServer creates a new API server instance
func NewAPIServer(billing *controllers.BillingController) *APIServer {
	return &APIServer{billing: billing}
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	response := Pong{
		Ping: "pong",
	}

	return c.Status(fiber.StatusOK).JSON(response)
}

// PostCheckout opens a checkout session for the authenticated caller.
func (s *APIServer) PostCheckout(c *fiber.Ctx) error {
	return s.billing.HandleCheckout(c)
}

// PostSubscriptionCancel schedules cancellation at period end.
func (s *APIServer) PostSubscriptionCancel(c *fiber.Ctx) error {
	return s.billing.HandleCancelSubscription(c)
}

// PostSubscriptionReactivate clears a scheduled cancellation.
func (s *APIServer) PostSubscriptionReactivate(c *fiber.Ctx) error {
	return s.billing.HandleReactivateSubscription(c)
}

// GetSubscription returns the caller's stored status.
func (s *APIServer) GetSubscription(c *fiber.Ctx) error {
	return s.billing.HandleGetSubscription(c)
}

// PostStripeWebhook receives signed Stripe events. Authenticated by the
// Stripe-Signature header, not by a bearer token.
func (s *APIServer) PostStripeWebhook(c *fiber.Ctx) error {
	return s.billing.HandleStripeWebhook(c)
}

// Pong defines the ping response.
type Pong struct {
	Ping string `json:"ping"`
}

// RegisterHandlers mounts the v1 routes. requireAuth guards every route
// except ping and the webhook.
func RegisterHandlers(router fiber.Router, s *APIServer, requireAuth ...fiber.Handler) {
	router.Get("/ping", s.GetPing)

	billing := router.Group(constants.BillingPrefix)
	billing.Post(constants.StripeWebhookPath, s.PostStripeWebhook)

	authed := func(h fiber.Handler) []fiber.Handler {
		return append(append([]fiber.Handler{}, requireAuth...), h)
	}
	billing.Post("/checkout", authed(s.PostCheckout)...)
	billing.Post("/subscription/cancel", authed(s.PostSubscriptionCancel)...)
	billing.Post("/subscription/reactivate", authed(s.PostSubscriptionReactivate)...)
	billing.Get("/subscription", authed(s.GetSubscription)...)
}
