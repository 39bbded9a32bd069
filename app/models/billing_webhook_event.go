package models

import "time"

// Webhook outcomes recorded on the journal row.
const (
	WebhookOutcomeApplied = "applied"
	WebhookOutcomeIgnored = "ignored"
	WebhookOutcomeOrphan  = "orphan"
)

// BillingWebhookEvent journals authenticated provider webhook deliveries,
// keyed by provider event id so redeliveries can be recognized.
type BillingWebhookEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Provider        string     `gorm:"type:varchar(20);not null;index:ux_billing_webhook_events_provider_event,unique,priority:1" json:"provider"`
	ProviderEventID string     `gorm:"type:varchar(191);not null;index:ux_billing_webhook_events_provider_event,unique,priority:2" json:"provider_event_id"`
	EventType       string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	Subject         string     `gorm:"type:varchar(191);default:''" json:"subject"`
	PayloadJSON     string     `gorm:"type:longtext;not null" json:"-"`
	Outcome         string     `gorm:"type:varchar(20);default:''" json:"outcome"`
	ProcessedAt     *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processing_error"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// Processed reports whether an earlier delivery finished without error.
func (e *BillingWebhookEvent) Processed() bool {
	return e != nil && e.ProcessedAt != nil && e.ProcessingError == ""
}
