package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// CustomerDirectory maps subjects to Stripe customers.
type CustomerDirectory struct {
	repo      Repository
	processor Processor
}

// NewCustomerDirectory creates a directory over the store and the processor.
func NewCustomerDirectory(repo Repository, processor Processor) *CustomerDirectory {
	return &CustomerDirectory{repo: repo, processor: processor}
}

// ResolveCustomer returns the Stripe customer for the subject, reusing the
// first customer registered under the email or creating a new one tagged with
// the subject. The mapping is persisted only after the processor returned
// the id.
func (d *CustomerDirectory) ResolveCustomer(ctx context.Context, subject, email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", ErrMissingEmail
	}

	customerID, found, err := d.processor.FindCustomerByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("%w: list customers: %w", ErrUpstream, err)
	}
	if !found {
		customerID, err = d.processor.CreateCustomer(ctx, email, subject)
		if err != nil {
			return "", fmt.Errorf("%w: create customer: %w", ErrUpstream, err)
		}
	}

	if err := d.repo.SetCustomerID(ctx, subject, email, customerID); err != nil {
		return "", fmt.Errorf("store customer mapping: %w", err)
	}
	return customerID, nil
}

// CustomerIDForSubject looks up the linked customer; ErrNoCustomer when none.
func (d *CustomerDirectory) CustomerIDForSubject(ctx context.Context, subject string) (string, error) {
	s, err := d.repo.GetSubscriber(ctx, subject)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNoCustomer
		}
		return "", fmt.Errorf("load customer mapping: %w", err)
	}
	if strings.TrimSpace(s.StripeCustomerID) == "" {
		return "", ErrNoCustomer
	}
	return s.StripeCustomerID, nil
}
