package repository

import (
	"errors"

	"github.com/nutriplan/payments/internal/models"

	"gorm.io/gorm"
)

// PaymentCardRepository is the stored-card data access interface.
type PaymentCardRepository interface {
	Create(card *models.PaymentCard) error
	GetByID(id uint) (*models.PaymentCard, error)
	ListByCustomerID(customerID uint) ([]models.PaymentCard, error)
	GetDefaultByCustomerID(customerID uint) (*models.PaymentCard, error)
	SetDefault(customerID uint, cardID uint) error
	Delete(id uint) error
	WithTx(tx *gorm.DB) *GormPaymentCardRepository
}

// GormPaymentCardRepository is the GORM implementation.
type GormPaymentCardRepository struct {
	db *gorm.DB
}

// NewPaymentCardRepository creates a card repository.
func NewPaymentCardRepository(db *gorm.DB) *GormPaymentCardRepository {
	return &GormPaymentCardRepository{db: db}
}

// WithTx binds a transaction.
func (r *GormPaymentCardRepository) WithTx(tx *gorm.DB) *GormPaymentCardRepository {
	if tx == nil {
		return r
	}
	return &GormPaymentCardRepository{db: tx}
}

// Create inserts a card row.
func (r *GormPaymentCardRepository) Create(card *models.PaymentCard) error {
	return r.db.Create(card).Error
}

// GetByID fetches a card by primary key.
func (r *GormPaymentCardRepository) GetByID(id uint) (*models.PaymentCard, error) {
	var card models.PaymentCard
	if err := r.db.First(&card, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &card, nil
}

// ListByCustomerID lists a customer's cards, default first.
func (r *GormPaymentCardRepository) ListByCustomerID(customerID uint) ([]models.PaymentCard, error) {
	var cards []models.PaymentCard
	if err := r.db.Where("customer_id = ?", customerID).
		Order("default_card desc, id desc").Find(&cards).Error; err != nil {
		return nil, err
	}
	return cards, nil
}

// GetDefaultByCustomerID fetches the customer's default card.
func (r *GormPaymentCardRepository) GetDefaultByCustomerID(customerID uint) (*models.PaymentCard, error) {
	var card models.PaymentCard
	result := r.db.Where("customer_id = ? AND default_card = ?", customerID, true).Limit(1).Find(&card)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &card, nil
}

// SetDefault marks one card as default and clears the flag on every other
// card of the customer inside a single transaction.
func (r *GormPaymentCardRepository) SetDefault(customerID uint, cardID uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.PaymentCard{}).
			Where("customer_id = ? AND id <> ?", customerID, cardID).
			Update("default_card", false).Error; err != nil {
			return err
		}
		return tx.Model(&models.PaymentCard{}).
			Where("customer_id = ? AND id = ?", customerID, cardID).
			Update("default_card", true).Error
	})
}

// Delete soft-deletes a card.
func (r *GormPaymentCardRepository) Delete(id uint) error {
	return r.db.Delete(&models.PaymentCard{}, id).Error
}
