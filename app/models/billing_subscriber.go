package models

import "time"

// Billing provider constants used across billing-related models.
const (
	BillingProviderStripe = "stripe"
)

// BillingSubscriber is the single billing record per subject: the linked
// Stripe customer and the subscription status the browser renders.
// A subject without a row reads as unsubscribed.
type BillingSubscriber struct {
	ID                 uint               `gorm:"primaryKey" json:"id"`
	Subject            string             `gorm:"type:varchar(191);not null;uniqueIndex:ux_billing_subscribers_subject" json:"subject"`
	Email              string             `gorm:"type:varchar(200);default:''" json:"email"`
	StripeCustomerID   string             `gorm:"type:varchar(191);not null;default:'';index:idx_billing_subscribers_customer" json:"stripe_customer_id"`
	SubscriptionStatus SubscriptionStatus `gorm:"type:varchar(32);not null;default:'unsubscribed'" json:"subscription_status"`
	CreatedAt          time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

// EffectiveStatus returns the stored status, treating unknown values as
// unsubscribed.
func (s *BillingSubscriber) EffectiveStatus() SubscriptionStatus {
	if s == nil {
		return SubscriptionStatusUnsubscribed
	}
	return ParseSubscriptionStatus(string(s.SubscriptionStatus))
}
