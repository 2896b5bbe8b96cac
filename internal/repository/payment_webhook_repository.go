package repository

import (
	"errors"
	"time"

	"github.com/nutriplan/payments/internal/models"

	"gorm.io/gorm"
)

// PaymentWebhookRepository is the webhook inbox data access interface.
type PaymentWebhookRepository interface {
	Create(webhook *models.PaymentWebhook) error
	GetByID(id uint) (*models.PaymentWebhook, error)
	MarkProcessed(id uint, processedAt time.Time) error
	MarkFailed(id uint, reason string) error
	ListUnprocessed(limit int) ([]models.PaymentWebhook, error)
	List(filter WebhookListFilter) ([]models.PaymentWebhook, int64, error)
}

// GormPaymentWebhookRepository is the GORM implementation.
type GormPaymentWebhookRepository struct {
	db *gorm.DB
}

// NewPaymentWebhookRepository creates a webhook repository.
func NewPaymentWebhookRepository(db *gorm.DB) *GormPaymentWebhookRepository {
	return &GormPaymentWebhookRepository{db: db}
}

// Create inserts a webhook row.
func (r *GormPaymentWebhookRepository) Create(webhook *models.PaymentWebhook) error {
	return r.db.Create(webhook).Error
}

// GetByID fetches a webhook by primary key.
func (r *GormPaymentWebhookRepository) GetByID(id uint) (*models.PaymentWebhook, error) {
	var webhook models.PaymentWebhook
	if err := r.db.First(&webhook, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &webhook, nil
}

// MarkProcessed flips the processed flag and clears the last error.
func (r *GormPaymentWebhookRepository) MarkProcessed(id uint, processedAt time.Time) error {
	return r.db.Model(&models.PaymentWebhook{}).Where("id = ?", id).Updates(map[string]interface{}{
		"processed":    true,
		"processed_at": processedAt,
		"error":        "",
	}).Error
}

// MarkFailed records the processing failure, leaving the row retryable.
func (r *GormPaymentWebhookRepository) MarkFailed(id uint, reason string) error {
	return r.db.Model(&models.PaymentWebhook{}).Where("id = ?", id).Updates(map[string]interface{}{
		"processed": false,
		"error":     reason,
	}).Error
}

// ListUnprocessed lists rows still waiting for a successful reconciliation.
func (r *GormPaymentWebhookRepository) ListUnprocessed(limit int) ([]models.PaymentWebhook, error) {
	query := r.db.Where("processed = ?", false).Order("id asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var webhooks []models.PaymentWebhook
	if err := query.Find(&webhooks).Error; err != nil {
		return nil, err
	}
	return webhooks, nil
}

// List lists webhooks by filter with a total count.
func (r *GormPaymentWebhookRepository) List(filter WebhookListFilter) ([]models.PaymentWebhook, int64, error) {
	query := r.db.Model(&models.PaymentWebhook{})

	if filter.Provider != "" {
		query = query.Where("provider = ?", filter.Provider)
	}
	if filter.EventType != "" {
		query = query.Where("event_type = ?", filter.EventType)
	}
	if filter.Processed != nil {
		query = query.Where("processed = ?", *filter.Processed)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var webhooks []models.PaymentWebhook
	if err := query.Order("id desc").Find(&webhooks).Error; err != nil {
		return nil, 0, err
	}
	return webhooks, total, nil
}
