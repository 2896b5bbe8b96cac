package models

import (
	"time"

	"gorm.io/gorm"
)

// PaymentPlan is a recurring billing plan in the catalog.
type PaymentPlan struct {
	ID            uint           `gorm:"primarykey" json:"id"`
	Code          string         `gorm:"uniqueIndex;not null" json:"code"`          // stable plan code
	Name          string         `gorm:"not null" json:"name"`
	Description   string         `gorm:"type:text" json:"description"`
	Amount        Money          `gorm:"type:decimal(20,2);not null" json:"amount"` // per-cycle charge
	Currency      string         `gorm:"not null" json:"currency"`
	Interval      string         `gorm:"not null" json:"interval"`                  // monthly / quarterly / semiannual / yearly
	StripePriceID string         `json:"stripe_price_id"`                           // provider price mapping
	AsaasPlanID   string         `json:"asaas_plan_id"`
	Active        bool           `gorm:"index;not null;default:true" json:"active"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName sets the table name.
func (PaymentPlan) TableName() string {
	return "payment_plans"
}
