package billing

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeWebhookVerifier checks the Stripe-Signature header over the exact raw
// body and decodes the event envelope.
type StripeWebhookVerifier struct{}

func (StripeWebhookVerifier) Verify(payload []byte, signatureHeader, secret string) (Event, error) {
	sig := strings.TrimSpace(signatureHeader)
	if sig == "" {
		return Event{}, fmt.Errorf("%w: missing signature header", ErrSignatureInvalid)
	}
	if strings.TrimSpace(secret) == "" {
		return Event{}, fmt.Errorf("%w: webhook secret is not configured", ErrSignatureInvalid)
	}

	ev, err := webhook.ConstructEventWithOptions(payload, sig, secret, webhook.ConstructEventOptions{
		Tolerance:                webhook.DefaultTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}

	out := Event{ID: ev.ID, Type: string(ev.Type)}
	if ev.Data != nil {
		out.Object = ev.Data.Raw
	}
	return out, nil
}

// checkoutSessionReference returns the client reference (the subject) of a
// checkout.session object.
func checkoutSessionReference(ev Event) (string, error) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(ev.Object, &session); err != nil {
		return "", fmt.Errorf("decode checkout.session: %w", err)
	}
	return strings.TrimSpace(session.ClientReferenceID), nil
}

// subscriptionFromEvent decodes a customer.subscription.* object.
func subscriptionFromEvent(ev Event) (ProcessorSubscription, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(ev.Object, &sub); err != nil {
		return ProcessorSubscription{}, fmt.Errorf("decode subscription: %w", err)
	}
	return toProcessorSubscription(&sub), nil
}
