package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/nutriplan/payments/internal/models"

	"gorm.io/gorm"
)

// PaymentRepository is the payment data access interface.
type PaymentRepository interface {
	Create(payment *models.Payment) error
	Update(payment *models.Payment) error
	GetByID(id uint) (*models.Payment, error)
	GetByPaymentID(paymentID string) (*models.Payment, error)
	GetLatestByGatewayRef(gatewayRef string) (*models.Payment, error)
	ListByCustomerID(customerID uint) ([]models.Payment, error)
	UpdateStatusMetadata(id uint, status string, metadata models.JSON, paidAt *time.Time, gatewayRef string) error
	Search(filter PaymentSearchFilter) ([]models.Payment, int64, error)
	WithTx(tx *gorm.DB) *GormPaymentRepository
}

// GormPaymentRepository is the GORM implementation.
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a payment repository.
func NewPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// WithTx binds a transaction.
func (r *GormPaymentRepository) WithTx(tx *gorm.DB) *GormPaymentRepository {
	if tx == nil {
		return r
	}
	return &GormPaymentRepository{db: tx}
}

// Create inserts a payment row.
func (r *GormPaymentRepository) Create(payment *models.Payment) error {
	return r.db.Create(payment).Error
}

// Update saves a payment row.
func (r *GormPaymentRepository) Update(payment *models.Payment) error {
	return r.db.Save(payment).Error
}

// GetByID fetches a payment by primary key.
func (r *GormPaymentRepository) GetByID(id uint) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.First(&payment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

// GetByPaymentID fetches a payment by its correlation id.
func (r *GormPaymentRepository) GetByPaymentID(paymentID string) (*models.Payment, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, nil
	}
	var payment models.Payment
	result := r.db.Where("payment_id = ?", paymentID).Limit(1).Find(&payment)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &payment, nil
}

// GetLatestByGatewayRef fetches the newest payment holding a provider-side id.
func (r *GormPaymentRepository) GetLatestByGatewayRef(gatewayRef string) (*models.Payment, error) {
	gatewayRef = strings.TrimSpace(gatewayRef)
	if gatewayRef == "" {
		return nil, nil
	}
	var payment models.Payment
	result := r.db.Where("gateway_ref = ?", gatewayRef).Order("id desc").Limit(1).Find(&payment)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &payment, nil
}

// ListByCustomerID lists a customer's payments, newest first.
func (r *GormPaymentRepository) ListByCustomerID(customerID uint) ([]models.Payment, error) {
	var payments []models.Payment
	if err := r.db.Where("customer_id = ?", customerID).Order("id desc").Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

// UpdateStatusMetadata writes status, metadata, paid_at and a gateway ref
// backfill in one statement so a reconciled event lands as a single row
// update. Empty gatewayRef leaves the column untouched.
func (r *GormPaymentRepository) UpdateStatusMetadata(id uint, status string, metadata models.JSON, paidAt *time.Time, gatewayRef string) error {
	updates := map[string]interface{}{
		"status":   status,
		"metadata": metadata,
	}
	if paidAt != nil {
		updates["paid_at"] = *paidAt
	}
	if strings.TrimSpace(gatewayRef) != "" {
		updates["gateway_ref"] = strings.TrimSpace(gatewayRef)
	}
	return r.db.Model(&models.Payment{}).Where("id = ?", id).Updates(updates).Error
}

// Search lists payments by filter with a total count.
func (r *GormPaymentRepository) Search(filter PaymentSearchFilter) ([]models.Payment, int64, error) {
	query := r.db.Model(&models.Payment{})

	if filter.CustomerID != 0 {
		query = query.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.Provider != "" {
		query = query.Where("provider = ?", filter.Provider)
	}
	if filter.Method != "" {
		query = query.Where("method = ?", filter.Method)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + search + "%"
		query = query.Where("payment_id LIKE ? OR gateway_ref LIKE ? OR description LIKE ?", like, like, like)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}
	if filter.AmountMin != nil {
		query = query.Where("amount >= ?", *filter.AmountMin)
	}
	if filter.AmountMax != nil {
		query = query.Where("amount <= ?", *filter.AmountMax)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var payments []models.Payment
	if err := query.Order("id desc").Find(&payments).Error; err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}
