package billing

import (
	"strings"

	"github.com/fit9to5/billing-api/app/models"
)

// DeriveStatus maps a processor subscription onto the local status:
// active and cancelling is pending_cancellation, active otherwise is
// subscribed, every other processor status is unsubscribed.
func DeriveStatus(processorStatus string, cancelAtPeriodEnd bool) models.SubscriptionStatus {
	if normalizeProcessorStatus(processorStatus) != models.BillingStatusActive {
		return models.SubscriptionStatusUnsubscribed
	}
	if cancelAtPeriodEnd {
		return models.SubscriptionStatusPendingCancellation
	}
	return models.SubscriptionStatusSubscribed
}

// DerivedStatus derives the local status of the subscription.
func (s ProcessorSubscription) DerivedStatus() models.SubscriptionStatus {
	return DeriveStatus(s.Status, s.CancelAtPeriodEnd)
}

func normalizeProcessorStatus(status string) string {
	return strings.ToLower(strings.TrimSpace(status))
}
