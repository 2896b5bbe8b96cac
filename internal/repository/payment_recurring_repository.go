package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/nutriplan/payments/internal/constants"
	"github.com/nutriplan/payments/internal/models"

	"gorm.io/gorm"
)

// PaymentRecurringRepository is the subscription data access interface.
type PaymentRecurringRepository interface {
	Create(recurring *models.PaymentRecurring) error
	Update(recurring *models.PaymentRecurring) error
	GetByID(id uint) (*models.PaymentRecurring, error)
	GetByGatewaySubscriptionID(subscriptionID string) (*models.PaymentRecurring, error)
	GetActiveByCustomer(customerID uint, refDate time.Time) (*models.PaymentRecurring, error)
	ListByCustomerID(customerID uint) ([]models.PaymentRecurring, error)
	WithTx(tx *gorm.DB) *GormPaymentRecurringRepository
}

// GormPaymentRecurringRepository is the GORM implementation.
type GormPaymentRecurringRepository struct {
	db *gorm.DB
}

// NewPaymentRecurringRepository creates a subscription repository.
func NewPaymentRecurringRepository(db *gorm.DB) *GormPaymentRecurringRepository {
	return &GormPaymentRecurringRepository{db: db}
}

// WithTx binds a transaction.
func (r *GormPaymentRecurringRepository) WithTx(tx *gorm.DB) *GormPaymentRecurringRepository {
	if tx == nil {
		return r
	}
	return &GormPaymentRecurringRepository{db: tx}
}

// Create inserts a subscription row.
func (r *GormPaymentRecurringRepository) Create(recurring *models.PaymentRecurring) error {
	return r.db.Create(recurring).Error
}

// Update saves a subscription row.
func (r *GormPaymentRecurringRepository) Update(recurring *models.PaymentRecurring) error {
	return r.db.Save(recurring).Error
}

// GetByID fetches a subscription by primary key.
func (r *GormPaymentRecurringRepository) GetByID(id uint) (*models.PaymentRecurring, error) {
	var recurring models.PaymentRecurring
	if err := r.db.Preload("Plan").First(&recurring, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &recurring, nil
}

// GetByGatewaySubscriptionID fetches a subscription by its provider-side id.
func (r *GormPaymentRecurringRepository) GetByGatewaySubscriptionID(subscriptionID string) (*models.PaymentRecurring, error) {
	subscriptionID = strings.TrimSpace(subscriptionID)
	if subscriptionID == "" {
		return nil, nil
	}
	var recurring models.PaymentRecurring
	result := r.db.Where("gateway_subscription_id = ?", subscriptionID).Limit(1).Find(&recurring)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &recurring, nil
}

// GetActiveByCustomer fetches the customer's active subscription whose next
// billing date is unset or not yet past the reference date.
func (r *GormPaymentRecurringRepository) GetActiveByCustomer(customerID uint, refDate time.Time) (*models.PaymentRecurring, error) {
	var recurring models.PaymentRecurring
	result := r.db.Preload("Plan").
		Where("customer_id = ? AND status = ? AND (next_billing_date IS NULL OR next_billing_date >= ?)",
			customerID,
			constants.RecurringStatusActive,
			refDate,
		).Order("id desc").Limit(1).Find(&recurring)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &recurring, nil
}

// ListByCustomerID lists a customer's subscriptions, newest first.
func (r *GormPaymentRecurringRepository) ListByCustomerID(customerID uint) ([]models.PaymentRecurring, error) {
	var recurrings []models.PaymentRecurring
	if err := r.db.Preload("Plan").Where("customer_id = ?", customerID).
		Order("id desc").Find(&recurrings).Error; err != nil {
		return nil, err
	}
	return recurrings, nil
}
