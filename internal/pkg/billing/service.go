package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"

	"github.com/fit9to5/billing-api/app/models"
	"github.com/fit9to5/billing-api/internal/pkg/metrics"
)

// Config holds the deploy-time billing settings.
type Config struct {
	PriceID       string
	WebhookSecret string
}

// Service reconciles subscription state between the caller, Stripe and the
// state store.
type Service struct {
	repo      Repository
	processor Processor
	verifier  WebhookVerifier
	directory *CustomerDirectory
	cfg       Config
}

// NewService creates a billing service from injected collaborators.
func NewService(repo Repository, processor Processor, verifier WebhookVerifier, cfg Config) *Service {
	return &Service{
		repo:      repo,
		processor: processor,
		verifier:  verifier,
		directory: NewCustomerDirectory(repo, processor),
		cfg:       cfg,
	}
}

// StartCheckout resolves the caller's Stripe customer and opens a
// subscription checkout session. No subscription status is written here;
// checkout.session.completed does that.
func (s *Service) StartCheckout(ctx context.Context, in CheckoutRequest) (string, error) {
	sessionID, err := s.startCheckout(ctx, in)
	metrics.ObserveCommand("checkout", resultLabel(err))
	return sessionID, err
}

func (s *Service) startCheckout(ctx context.Context, in CheckoutRequest) (string, error) {
	if strings.TrimSpace(in.Email) == "" {
		return "", ErrMissingEmail
	}
	if strings.TrimSpace(s.cfg.PriceID) == "" {
		return "", errors.New("STRIPE_PRICE_ID is not configured")
	}

	customerID, err := s.directory.ResolveCustomer(ctx, in.Subject, in.Email)
	if err != nil {
		return "", err
	}

	origin := strings.TrimRight(in.Origin, "/")
	sessionID, err := s.processor.CreateCheckoutSession(ctx, CheckoutSessionInput{
		CustomerID: customerID,
		PriceID:    s.cfg.PriceID,
		Subject:    in.Subject,
		SuccessURL: origin + "/success",
		CancelURL:  origin + "/",
	})
	if err != nil {
		return "", fmt.Errorf("%w: create checkout session: %w", ErrUpstream, err)
	}
	return sessionID, nil
}

// CancelSubscription schedules the active subscription to end at period end.
func (s *Service) CancelSubscription(ctx context.Context, subject string) error {
	err := s.setCancelAtPeriodEnd(ctx, subject, true)
	metrics.ObserveCommand("cancel", resultLabel(err))
	return err
}

// ReactivateSubscription clears a scheduled cancellation.
func (s *Service) ReactivateSubscription(ctx context.Context, subject string) error {
	err := s.setCancelAtPeriodEnd(ctx, subject, false)
	metrics.ObserveCommand("reactivate", resultLabel(err))
	return err
}

// setCancelAtPeriodEnd issues exactly one processor mutation and then
// writes the resulting status optimistically, before Stripe's
// customer.subscription.updated event confirms it. A webhook handled
// concurrently may overwrite this write (last write wins); the next event
// settles the store. Do not add locking here: the command must not wait for
// the webhook.
func (s *Service) setCancelAtPeriodEnd(ctx context.Context, subject string, cancel bool) error {
	customerID, err := s.directory.CustomerIDForSubject(ctx, subject)
	if err != nil {
		return err
	}

	sub, err := s.processor.FindActiveSubscription(ctx, customerID)
	if err != nil {
		return fmt.Errorf("%w: list subscriptions: %w", ErrUpstream, err)
	}
	if sub == nil {
		return ErrNoActiveSubscription
	}

	if _, err := s.processor.SetCancelAtPeriodEnd(ctx, sub.ID, cancel); err != nil {
		return fmt.Errorf("%w: update subscription %s: %w", ErrUpstream, sub.ID, err)
	}

	status := DeriveStatus(models.BillingStatusActive, cancel)
	if err := s.repo.SetStatus(ctx, subject, status); err != nil {
		return fmt.Errorf("store subscription status: %w", err)
	}
	metrics.ObserveStatusWrite("optimistic", status.String())
	return nil
}

// GetStatus returns the stored status; subjects without a record are
// unsubscribed.
func (s *Service) GetStatus(ctx context.Context, subject string) (models.SubscriptionStatus, error) {
	return s.repo.GetStatus(ctx, subject)
}

// HandleWebhook authenticates and applies a Stripe event. Nothing is read
// from or written to the store before the signature is verified. Every
// branch is an unconditional set, so redelivering an event is harmless;
// events applied out of order leave the last applied state in place until
// Stripe delivers the next one.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) (*WebhookResult, error) {
	ev, err := s.verifier.Verify(payload, signatureHeader, s.cfg.WebhookSecret)
	if err != nil {
		if !errors.Is(err, ErrSignatureInvalid) {
			err = fmt.Errorf("%w: %w", ErrSignatureInvalid, err)
		}
		metrics.ObserveWebhook("unknown", "rejected")
		return nil, err
	}

	result := &WebhookResult{EventID: ev.ID, EventType: ev.Type}

	created, stored, err := s.repo.CreateWebhookEventIfNotExists(ctx, &models.BillingWebhookEvent{
		Provider:        models.BillingProviderStripe,
		ProviderEventID: webhookEventID(ev, payload),
		EventType:       ev.Type,
		PayloadJSON:     string(payload),
	})
	if err != nil {
		return nil, fmt.Errorf("journal webhook event: %w", err)
	}
	if !created && stored.Processed() {
		log.Infof("[Billing] duplicate webhook %s (%s), already processed", ev.ID, ev.Type)
		result.Subject = stored.Subject
		result.Outcome = WebhookDuplicate
		metrics.ObserveWebhook(eventTypeLabel(ev.Type), string(WebhookDuplicate))
		return result, nil
	}

	applyErr := s.applyEvent(ctx, ev, result)

	errMsg := ""
	if applyErr != nil {
		errMsg = applyErr.Error()
	}
	if err := s.repo.MarkWebhookProcessed(ctx, stored.ID, result.Subject, string(result.Outcome), errMsg); err != nil {
		log.Errorf("[Billing] failed to mark webhook %s processed: %v", ev.ID, err)
	}
	if applyErr != nil {
		metrics.ObserveWebhook(eventTypeLabel(ev.Type), "failed")
		return nil, applyErr
	}
	metrics.ObserveWebhook(eventTypeLabel(ev.Type), string(result.Outcome))
	return result, nil
}

func (s *Service) applyEvent(ctx context.Context, ev Event, result *WebhookResult) error {
	switch ev.Type {
	case EventCheckoutSessionCompleted:
		subject, err := checkoutSessionReference(ev)
		if err != nil {
			return err
		}
		if subject == "" {
			log.Warnf("[Billing] checkout session in event %s has no client reference, ignoring", ev.ID)
			result.Outcome = WebhookOrphan
			return nil
		}
		return s.writeWebhookStatus(ctx, result, subject, models.SubscriptionStatusSubscribed)

	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		sub, err := subscriptionFromEvent(ev)
		if err != nil {
			return err
		}
		subject, found, err := s.repo.FindSubjectByCustomerID(ctx, sub.CustomerID)
		if err != nil {
			return fmt.Errorf("lookup subject for customer %s: %w", sub.CustomerID, err)
		}
		if !found {
			log.Warnf("[Billing] no subject linked to stripe customer %q (event %s, %s), ignoring", sub.CustomerID, ev.ID, ev.Type)
			result.Outcome = WebhookOrphan
			return nil
		}
		status := models.SubscriptionStatusUnsubscribed
		if ev.Type == EventSubscriptionUpdated {
			status = sub.DerivedStatus()
		}
		return s.writeWebhookStatus(ctx, result, subject, status)

	default:
		log.Infof("[Billing] unhandled event type %s (%s)", ev.Type, ev.ID)
		result.Outcome = WebhookIgnored
		return nil
	}
}

func (s *Service) writeWebhookStatus(ctx context.Context, result *WebhookResult, subject string, status models.SubscriptionStatus) error {
	result.Subject = subject
	if err := s.repo.SetStatus(ctx, subject, status); err != nil {
		return fmt.Errorf("store subscription status for %s: %w", subject, err)
	}
	result.Status = status
	result.Outcome = WebhookApplied
	metrics.ObserveStatusWrite("webhook", status.String())
	log.Infof("[Billing] %s set subject %s to %s (event %s)", result.EventType, subject, status, result.EventID)
	return nil
}

func webhookEventID(ev Event, payload []byte) string {
	if id := strings.TrimSpace(ev.ID); id != "" {
		return id
	}
	sum := sha256.Sum256(payload)
	return "hash:" + hex.EncodeToString(sum[:])
}

func eventTypeLabel(eventType string) string {
	switch eventType {
	case EventCheckoutSessionCompleted, EventSubscriptionUpdated, EventSubscriptionDeleted:
		return eventType
	default:
		return "other"
	}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNoCustomer), errors.Is(err, ErrNoActiveSubscription):
		return "not_found"
	case errors.Is(err, ErrUpstream):
		return "upstream_error"
	default:
		return "error"
	}
}
