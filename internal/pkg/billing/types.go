package billing

import (
	"encoding/json"

	"github.com/fit9to5/billing-api/app/models"
)

// Stripe event types the reconciler acts on.
const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
	EventSubscriptionUpdated      = "customer.subscription.updated"
	EventSubscriptionDeleted      = "customer.subscription.deleted"
)

// ProcessorSubscription is the subset of a Stripe subscription the service
// derives local state from.
type ProcessorSubscription struct {
	ID                string
	CustomerID        string
	Status            string
	CancelAtPeriodEnd bool
}

// CheckoutRequest is the verified caller of start-checkout.
type CheckoutRequest struct {
	Subject string
	Email   string
	Origin  string
}

// CheckoutSessionInput describes the hosted checkout session to open.
type CheckoutSessionInput struct {
	CustomerID string
	PriceID    string
	Subject    string
	SuccessURL string
	CancelURL  string
}

// Event is an authenticated webhook event. Object holds the raw JSON of
// data.object.
type Event struct {
	ID     string
	Type   string
	Object json.RawMessage
}

// WebhookOutcome classifies what a webhook delivery did to the store.
type WebhookOutcome string

const (
	WebhookApplied   WebhookOutcome = models.WebhookOutcomeApplied
	WebhookIgnored   WebhookOutcome = models.WebhookOutcomeIgnored
	WebhookOrphan    WebhookOutcome = models.WebhookOutcomeOrphan
	WebhookDuplicate WebhookOutcome = "duplicate"
)

// WebhookResult summarizes a processed webhook delivery.
type WebhookResult struct {
	EventID   string
	EventType string
	Subject   string
	Status    models.SubscriptionStatus
	Outcome   WebhookOutcome
}
