package billing

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fit9to5/billing-api/app/models"
)

// Repository is the subscription state store and customer directory backing
// the billing service. Every write is an unconditional set; there is no
// locking between a read and the write that follows it, so concurrent
// writers resolve as last-write-wins.
type Repository interface {
	// GetSubscriber returns gorm.ErrRecordNotFound when the subject has no row.
	GetSubscriber(ctx context.Context, subject string) (*models.BillingSubscriber, error)
	// GetStatus reads the subscription status; a missing row reads as unsubscribed.
	GetStatus(ctx context.Context, subject string) (models.SubscriptionStatus, error)
	SetCustomerID(ctx context.Context, subject, email, customerID string) error
	SetStatus(ctx context.Context, subject string, status models.SubscriptionStatus) error
	// FindSubjectByCustomerID is the reverse index stripe customer id -> subject.
	// At most one match is expected; if several rows reference the same
	// customer the oldest row wins. found is false when nothing matches.
	FindSubjectByCustomerID(ctx context.Context, customerID string) (subject string, found bool, err error)
	CreateWebhookEventIfNotExists(ctx context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error)
	MarkWebhookProcessed(ctx context.Context, id uint, subject, outcome, processingError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetSubscriber(ctx context.Context, subject string) (*models.BillingSubscriber, error) {
	var s models.BillingSubscriber
	if err := r.db.WithContext(ctx).Where("subject = ?", subject).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *gormRepository) GetStatus(ctx context.Context, subject string) (models.SubscriptionStatus, error) {
	s, err := r.GetSubscriber(ctx, subject)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.SubscriptionStatusUnsubscribed, nil
		}
		return "", err
	}
	return s.EffectiveStatus(), nil
}

func (r *gormRepository) SetCustomerID(ctx context.Context, subject, email, customerID string) error {
	s := &models.BillingSubscriber{
		Subject:            subject,
		Email:              email,
		StripeCustomerID:   customerID,
		SubscriptionStatus: models.SubscriptionStatusUnsubscribed,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "subject"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "stripe_customer_id", "updated_at"}),
	}).Create(s).Error
}

func (r *gormRepository) SetStatus(ctx context.Context, subject string, status models.SubscriptionStatus) error {
	s := &models.BillingSubscriber{
		Subject:            subject,
		SubscriptionStatus: status,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "subject"}},
		DoUpdates: clause.AssignmentColumns([]string{"subscription_status", "updated_at"}),
	}).Create(s).Error
}

func (r *gormRepository) FindSubjectByCustomerID(ctx context.Context, customerID string) (string, bool, error) {
	if customerID == "" {
		return "", false, nil
	}
	var rows []models.BillingSubscriber
	err := r.db.WithContext(ctx).
		Where("stripe_customer_id = ?", customerID).
		Order("id ASC").
		Limit(2).
		Find(&rows).Error
	if err != nil {
		return "", false, err
	}
	if len(rows) == 0 {
		return "", false, nil
	}
	if len(rows) > 1 {
		log.Warnf("[Billing] stripe customer %s is linked to more than one subject, using %s", customerID, rows[0].Subject)
	}
	return rows[0].Subject, true, nil
}

func (r *gormRepository) CreateWebhookEventIfNotExists(ctx context.Context, event *models.BillingWebhookEvent) (bool, *models.BillingWebhookEvent, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.BillingWebhookEvent
	if err := r.db.WithContext(ctx).
		Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(ctx context.Context, id uint, subject, outcome, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"subject":          subject,
		"outcome":          outcome,
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.WithContext(ctx).Model(&models.BillingWebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}
