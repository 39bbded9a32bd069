package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/fit9to5/billing-api/app/models"
	"github.com/fit9to5/billing-api/internal/pkg/billing"
	"github.com/fit9to5/billing-api/internal/pkg/usercontext"
)

const billingRequestTimeout = 15 * time.Second

// BillingService is the billing behaviour the HTTP handlers depend on.
type BillingService interface {
	StartCheckout(ctx context.Context, in billing.CheckoutRequest) (string, error)
	CancelSubscription(ctx context.Context, subject string) error
	ReactivateSubscription(ctx context.Context, subject string) error
	GetStatus(ctx context.Context, subject string) (models.SubscriptionStatus, error)
	HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) (*billing.WebhookResult, error)
}

// BillingController exposes the billing service over HTTP.
type BillingController struct {
	svc            BillingService
	allowedOrigins []string
}

func NewBillingController(svc BillingService, allowedOrigins []string) *BillingController {
	return &BillingController{svc: svc, allowedOrigins: allowedOrigins}
}

// HandleCheckout opens a Stripe checkout session for the caller.
func (bc *BillingController) HandleCheckout(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsAuthenticated {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Missing or invalid authentication")
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), billingRequestTimeout)
	defer cancel()

	sessionID, err := bc.svc.StartCheckout(ctx, billing.CheckoutRequest{
		Subject: userCtx.Subject,
		Email:   userCtx.Email,
		Origin:  requestOrigin(c, bc.allowedOrigins),
	})
	if err != nil {
		return bc.commandError(c, "checkout", userCtx.Subject, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"sessionId": sessionID})
}

// HandleCancelSubscription schedules the caller's subscription to end at
// period end.
func (bc *BillingController) HandleCancelSubscription(c *fiber.Ctx) error {
	return bc.handleSubscriptionCommand(c, "cancel", bc.svc.CancelSubscription)
}

// HandleReactivateSubscription clears a scheduled cancellation.
func (bc *BillingController) HandleReactivateSubscription(c *fiber.Ctx) error {
	return bc.handleSubscriptionCommand(c, "reactivate", bc.svc.ReactivateSubscription)
}

func (bc *BillingController) handleSubscriptionCommand(c *fiber.Ctx, name string, command func(context.Context, string) error) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsAuthenticated {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Missing or invalid authentication")
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), billingRequestTimeout)
	defer cancel()

	if err := command(ctx, userCtx.Subject); err != nil {
		return bc.commandError(c, name, userCtx.Subject, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
}

// HandleGetSubscription returns the stored subscription status.
func (bc *BillingController) HandleGetSubscription(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsAuthenticated {
		return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "Missing or invalid authentication")
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), billingRequestTimeout)
	defer cancel()

	status, err := bc.svc.GetStatus(ctx, userCtx.Subject)
	if err != nil {
		log.Errorf("[Billing] status read failed for subject %s: %v", userCtx.Subject, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load subscription status")
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": status})
}

// HandleStripeWebhook verifies and applies a Stripe event. Any failure is
// answered with 400 so Stripe redelivers.
func (bc *BillingController) HandleStripeWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.Body()...)
	signature := c.Get("Stripe-Signature")

	ctx, cancel := context.WithTimeout(c.UserContext(), billingRequestTimeout)
	defer cancel()

	result, err := bc.svc.HandleWebhook(ctx, rawBody, signature)
	if err != nil {
		if errors.Is(err, billing.ErrSignatureInvalid) {
			log.Warnf("[Billing] rejected stripe webhook from %s: %v", c.IP(), err)
			return jsonError(c, fiber.StatusBadRequest, "invalid_signature", "Webhook signature verification failed")
		}
		log.Errorf("[Billing] stripe webhook processing failed: %v", err)
		return jsonError(c, fiber.StatusBadRequest, "webhook_failed", "Webhook could not be processed")
	}

	log.Infof("[Billing] stripe webhook %s (%s) %s", result.EventID, result.EventType, result.Outcome)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true})
}

func (bc *BillingController) commandError(c *fiber.Ctx, name, subject string, err error) error {
	switch {
	case errors.Is(err, billing.ErrNoCustomer):
		return jsonError(c, fiber.StatusNotFound, "not_found", "No customer found")
	case errors.Is(err, billing.ErrNoActiveSubscription):
		return jsonError(c, fiber.StatusNotFound, "not_found", "No active subscription found")
	case errors.Is(err, billing.ErrMissingEmail):
		log.Errorf("[Billing] %s for subject %s: identity has no email", name, subject)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Identity has no email address")
	default:
		log.Errorf("[Billing] %s failed for subject %s: %v", name, subject, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Billing request failed")
	}
}
