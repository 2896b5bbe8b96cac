package repository

import (
	"errors"
	"strings"

	"github.com/nutriplan/payments/internal/models"

	"gorm.io/gorm"
)

// PaymentPlanRepository is the plan catalog data access interface.
type PaymentPlanRepository interface {
	Create(plan *models.PaymentPlan) error
	Update(plan *models.PaymentPlan) error
	GetByID(id uint) (*models.PaymentPlan, error)
	GetByCode(code string) (*models.PaymentPlan, error)
	ListActive() ([]models.PaymentPlan, error)
}

// GormPaymentPlanRepository is the GORM implementation.
type GormPaymentPlanRepository struct {
	db *gorm.DB
}

// NewPaymentPlanRepository creates a plan repository.
func NewPaymentPlanRepository(db *gorm.DB) *GormPaymentPlanRepository {
	return &GormPaymentPlanRepository{db: db}
}

// Create inserts a plan row.
func (r *GormPaymentPlanRepository) Create(plan *models.PaymentPlan) error {
	return r.db.Create(plan).Error
}

// Update saves a plan row.
func (r *GormPaymentPlanRepository) Update(plan *models.PaymentPlan) error {
	return r.db.Save(plan).Error
}

// GetByID fetches a plan by primary key.
func (r *GormPaymentPlanRepository) GetByID(id uint) (*models.PaymentPlan, error) {
	var plan models.PaymentPlan
	if err := r.db.First(&plan, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

// GetByCode fetches a plan by its stable code.
func (r *GormPaymentPlanRepository) GetByCode(code string) (*models.PaymentPlan, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}
	var plan models.PaymentPlan
	result := r.db.Where("code = ?", code).Limit(1).Find(&plan)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &plan, nil
}

// ListActive lists plans available for sale.
func (r *GormPaymentPlanRepository) ListActive() ([]models.PaymentPlan, error) {
	var plans []models.PaymentPlan
	if err := r.db.Where("active = ?", true).Order("amount asc").Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}
