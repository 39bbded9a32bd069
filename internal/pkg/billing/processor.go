package billing

import "context"

// Processor is the payment processor surface the service depends on.
type Processor interface {
	// FindCustomerByEmail returns the first customer with the email (limit 1).
	FindCustomerByEmail(ctx context.Context, email string) (customerID string, found bool, err error)
	CreateCustomer(ctx context.Context, email, subject string) (string, error)
	CreateCheckoutSession(ctx context.Context, in CheckoutSessionInput) (string, error)
	// FindActiveSubscription returns the first active subscription of the
	// customer, nil when there is none. More than one active subscription per
	// customer is assumed not to happen; only the first is considered.
	FindActiveSubscription(ctx context.Context, customerID string) (*ProcessorSubscription, error)
	SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) (*ProcessorSubscription, error)
}

// WebhookVerifier authenticates a raw webhook body against its signature
// header and decodes the event envelope.
type WebhookVerifier interface {
	Verify(payload []byte, signatureHeader, secret string) (Event, error)
}
