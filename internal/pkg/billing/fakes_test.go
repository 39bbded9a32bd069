package billing

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v82/webhook"
	"gorm.io/gorm"

	"github.com/fit9to5/billing-api/app/models"
)

const testWebhookSecret = "whsec_test_secret"

type memRepository struct {
	mu          sync.Mutex
	nextID      uint
	subscribers map[string]*models.BillingSubscriber
	events      map[string]*models.BillingWebhookEvent
	statusSets  int
	mappingSets int

	setStatusErr error
}

func newMemRepository() *memRepository {
	return &memRepository{
		subscribers: map[string]*models.BillingSubscriber{},
		events:      map[string]*models.BillingWebhookEvent{},
	}
}

func (r *memRepository) row(subject string) *models.BillingSubscriber {
	s, ok := r.subscribers[subject]
	if !ok {
		r.nextID++
		s = &models.BillingSubscriber{ID: r.nextID, Subject: subject, SubscriptionStatus: models.SubscriptionStatusUnsubscribed}
		r.subscribers[subject] = s
	}
	return s
}

func (r *memRepository) GetSubscriber(_ context.Context, subject string) (*models.BillingSubscriber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subscribers[subject]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *memRepository) GetStatus(ctx context.Context, subject string) (models.SubscriptionStatus, error) {
	s, err := r.GetSubscriber(ctx, subject)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.SubscriptionStatusUnsubscribed, nil
	}
	if err != nil {
		return "", err
	}
	return s.EffectiveStatus(), nil
}

func (r *memRepository) SetCustomerID(_ context.Context, subject, email, customerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.row(subject)
	s.Email = email
	s.StripeCustomerID = customerID
	r.mappingSets++
	return nil
}

func (r *memRepository) SetStatus(_ context.Context, subject string, status models.SubscriptionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.setStatusErr != nil {
		return r.setStatusErr
	}
	r.row(subject).SubscriptionStatus = status
	r.statusSets++
	return nil
}

func (r *memRepository) FindSubjectByCustomerID(_ context.Context, customerID string) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matches []*models.BillingSubscriber
	for _, s := range r.subscribers {
		if customerID != "" && s.StripeCustomerID == customerID {
			matches = append(matches, s)
		}
	}
	if len(matches) == 0 {
		return "", false, nil
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
	return matches[0].Subject, true, nil
}

func (r *memRepository) CreateWebhookEventIfNotExists(_ context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if stored, ok := r.events[event.ProviderEventID]; ok {
		cp := *stored
		return false, &cp, nil
	}
	r.nextID++
	event.ID = r.nextID
	stored := *event
	r.events[event.ProviderEventID] = &stored
	cp := stored
	return true, &cp, nil
}

func (r *memRepository) MarkWebhookProcessed(_ context.Context, id uint, subject, outcome, processingError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.ID == id {
			now := time.Now()
			e.Subject = subject
			e.Outcome = outcome
			e.ProcessedAt = &now
			e.ProcessingError = processingError
		}
	}
	return nil
}

func (r *memRepository) statuses() map[string]models.SubscriptionStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]models.SubscriptionStatus, len(r.subscribers))
	for k, v := range r.subscribers {
		out[k] = v.SubscriptionStatus
	}
	return out
}

type fakeProcessor struct {
	mu sync.Mutex

	customersByEmail map[string]string
	subscriptions    map[string]*ProcessorSubscription // by customer id
	nextCustomer     int

	createCustomerCalls int
	sessions            []CheckoutSessionInput
	mutations           []bool

	listCustomersErr  error
	createCustomerErr error
	sessionErr        error
	listSubsErr       error
	updateErr         error
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{
		customersByEmail: map[string]string{},
		subscriptions:    map[string]*ProcessorSubscription{},
	}
}

func (p *fakeProcessor) FindCustomerByEmail(_ context.Context, email string) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listCustomersErr != nil {
		return "", false, p.listCustomersErr
	}
	id, ok := p.customersByEmail[email]
	return id, ok, nil
}

func (p *fakeProcessor) CreateCustomer(_ context.Context, email, _ string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.createCustomerCalls++
	if p.createCustomerErr != nil {
		return "", p.createCustomerErr
	}
	p.nextCustomer++
	id := "cus_new_" + strconv.Itoa(p.nextCustomer)
	p.customersByEmail[email] = id
	return id, nil
}

func (p *fakeProcessor) CreateCheckoutSession(_ context.Context, in CheckoutSessionInput) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sessionErr != nil {
		return "", p.sessionErr
	}
	p.sessions = append(p.sessions, in)
	return "cs_test_" + in.Subject, nil
}

func (p *fakeProcessor) FindActiveSubscription(_ context.Context, customerID string) (*ProcessorSubscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listSubsErr != nil {
		return nil, p.listSubsErr
	}
	sub, ok := p.subscriptions[customerID]
	if !ok || sub.Status != models.BillingStatusActive {
		return nil, nil
	}
	cp := *sub
	return &cp, nil
}

func (p *fakeProcessor) SetCancelAtPeriodEnd(_ context.Context, subscriptionID string, cancel bool) (*ProcessorSubscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mutations = append(p.mutations, cancel)
	if p.updateErr != nil {
		return nil, p.updateErr
	}
	for _, sub := range p.subscriptions {
		if sub.ID == subscriptionID {
			sub.CancelAtPeriodEnd = cancel
			cp := *sub
			return &cp, nil
		}
	}
	return nil, errors.New("no such subscription")
}

func newTestService(repo Repository, processor Processor) *Service {
	return NewService(repo, processor, StripeWebhookVerifier{}, Config{
		PriceID:       "price_test_monthly",
		WebhookSecret: testWebhookSecret,
	})
}

// stripeEvent builds a Stripe event envelope around a data object.
func stripeEvent(t *testing.T, id, eventType string, object map[string]any) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"id":          id,
		"object":      "event",
		"type":        eventType,
		"api_version": "2025-04-30.basil",
		"created":     time.Now().Unix(),
		"data":        map[string]any{"object": object},
	})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return raw
}

func subscriptionObject(customerID, status string, cancelAtPeriodEnd bool) map[string]any {
	return map[string]any{
		"id":                   "sub_" + customerID,
		"object":               "subscription",
		"customer":             customerID,
		"status":               status,
		"cancel_at_period_end": cancelAtPeriodEnd,
	}
}

func signPayload(payload []byte, secret string) string {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
		Scheme:    "v1",
	})
	return signed.Header
}
