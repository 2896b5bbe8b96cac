package models

import (
	"time"

	"gorm.io/gorm"
)

// PaymentRecurring is an active or historical subscription agreement.
type PaymentRecurring struct {
	ID                    uint           `gorm:"primarykey" json:"id"`
	CustomerID            uint           `gorm:"index;not null" json:"customer_id"`
	PlanID                uint           `gorm:"index;not null" json:"plan_id"`
	CardID                *uint          `gorm:"index" json:"card_id"` // nil for PIX subscriptions
	Provider              string         `gorm:"index;not null" json:"provider"`
	Method                string         `gorm:"not null" json:"method"`
	Status                string         `gorm:"index;not null" json:"status"`
	GatewaySubscriptionID string         `gorm:"uniqueIndex;not null" json:"gateway_subscription_id"`
	NextBillingDate       *time.Time     `gorm:"index" json:"next_billing_date"`
	Metadata              JSON           `gorm:"type:json" json:"metadata"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
	CancelledAt           *time.Time     `json:"cancelled_at"`
	DeletedAt             gorm.DeletedAt `gorm:"index" json:"-"`

	Plan *PaymentPlan `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
}

// TableName sets the table name.
func (PaymentRecurring) TableName() string {
	return "payment_recurrings"
}
