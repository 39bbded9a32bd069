package billing

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// customerIdempotencyNamespace scopes the idempotency keys used when creating
// customers. Keys are unique per create attempt; Stripe replays a key's first
// response, errors included, for 24h.
var customerIdempotencyNamespace = uuid.MustParse("6f1c7a52-2a1e-4d0e-9a5d-0c7f3b1e8a41")

// StripeConfig configures the Stripe API client.
type StripeConfig struct {
	SecretKey string
	// BaseURL overrides the API host, used by tests.
	BaseURL    string
	HTTPClient *http.Client
}

// StripeProcessor implements Processor with stripe-go.
type StripeProcessor struct {
	api *client.API
}

// NewStripeProcessor creates a Stripe client. Network retries are disabled:
// callers decide whether to retry a failed command.
func NewStripeProcessor(cfg StripeConfig) (*StripeProcessor, error) {
	key := strings.TrimSpace(cfg.SecretKey)
	if key == "" {
		return nil, errors.New("STRIPE_SECRET_KEY is not configured")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	backendCfg := &stripe.BackendConfig{
		HTTPClient:        httpClient,
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		backendCfg.URL = stripe.String(base)
	}

	return &StripeProcessor{
		api: client.New(key, stripe.NewBackendsWithConfig(backendCfg)),
	}, nil
}

func (p *StripeProcessor) FindCustomerByEmail(ctx context.Context, email string) (string, bool, error) {
	params := &stripe.CustomerListParams{Email: stripe.String(email)}
	params.Context = ctx
	params.Limit = stripe.Int64(1)

	it := p.api.Customers.List(params)
	if it.Next() {
		return it.Customer().ID, true, nil
	}
	if err := it.Err(); err != nil {
		return "", false, err
	}
	return "", false, nil
}

func (p *StripeProcessor) CreateCustomer(ctx context.Context, email, subject string) (string, error) {
	params := &stripe.CustomerParams{Email: stripe.String(email)}
	params.Context = ctx
	params.AddMetadata("subject", subject)
	params.SetIdempotencyKey(customerIdempotencyKey(subject, email, uuid.New()))

	c, err := p.api.Customers.New(params)
	if err != nil {
		return "", err
	}
	return c.ID, nil
}

func (p *StripeProcessor) CreateCheckoutSession(ctx context.Context, in CheckoutSessionInput) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Customer:           stripe.String(in.CustomerID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(in.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(in.SuccessURL),
		CancelURL:         stripe.String(in.CancelURL),
		ClientReferenceID: stripe.String(in.Subject),
	}
	params.Context = ctx

	s, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return "", err
	}
	return s.ID, nil
}

func (p *StripeProcessor) FindActiveSubscription(ctx context.Context, customerID string) (*ProcessorSubscription, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String(string(stripe.SubscriptionStatusActive)),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(1)

	it := p.api.Subscriptions.List(params)
	if it.Next() {
		sub := toProcessorSubscription(it.Subscription())
		return &sub, nil
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return nil, nil
}

func (p *StripeProcessor) SetCancelAtPeriodEnd(ctx context.Context, subscriptionID string, cancel bool) (*ProcessorSubscription, error) {
	params := &stripe.SubscriptionParams{CancelAtPeriodEnd: stripe.Bool(cancel)}
	params.Context = ctx

	s, err := p.api.Subscriptions.Update(subscriptionID, params)
	if err != nil {
		return nil, err
	}
	sub := toProcessorSubscription(s)
	return &sub, nil
}

func toProcessorSubscription(s *stripe.Subscription) ProcessorSubscription {
	if s == nil {
		return ProcessorSubscription{}
	}
	out := ProcessorSubscription{
		ID:                s.ID,
		Status:            string(s.Status),
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	return out
}

func customerIdempotencyKey(subject, email string, attempt uuid.UUID) string {
	return "customer-" + uuid.NewSHA1(customerIdempotencyNamespace, []byte(subject+"\x00"+email+"\x00"+attempt.String())).String()
}
