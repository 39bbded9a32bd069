package models

import "strings"

// SubscriptionStatus is the user-facing subscription state derived from the
// processor subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusSubscribed          SubscriptionStatus = "subscribed"
	SubscriptionStatusPendingCancellation SubscriptionStatus = "pending_cancellation"
	SubscriptionStatusUnsubscribed        SubscriptionStatus = "unsubscribed"
)

// BillingStatusActive is the only processor subscription status that grants
// access. Every other processor status derives to unsubscribed.
const BillingStatusActive = "active"

// ParseSubscriptionStatus normalizes a stored value. Anything unrecognized
// reads as unsubscribed.
func ParseSubscriptionStatus(raw string) SubscriptionStatus {
	switch SubscriptionStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case SubscriptionStatusSubscribed:
		return SubscriptionStatusSubscribed
	case SubscriptionStatusPendingCancellation:
		return SubscriptionStatusPendingCancellation
	default:
		return SubscriptionStatusUnsubscribed
	}
}

func (s SubscriptionStatus) String() string {
	return string(s)
}
