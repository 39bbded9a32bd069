package billing

import "errors"

var (
	// ErrNoCustomer is returned when a subject has no linked Stripe customer.
	ErrNoCustomer = errors.New("no stripe customer found")
	// ErrNoActiveSubscription is returned when the customer has no active subscription.
	ErrNoActiveSubscription = errors.New("no active subscription found")
	// ErrMissingEmail is returned when the verified identity carries no email address.
	ErrMissingEmail = errors.New("identity does not contain an email address")
	// ErrSignatureInvalid rejects webhook payloads that fail authenticity checks.
	ErrSignatureInvalid = errors.New("webhook signature verification failed")
	// ErrUpstream wraps failures of payment processor calls.
	ErrUpstream = errors.New("payment processor request failed")
)
