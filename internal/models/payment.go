package models

import (
	"time"

	"gorm.io/gorm"
)

// Payment is a single payment attempt.
type Payment struct {
	ID          uint           `gorm:"primarykey" json:"id"`
	PaymentID   string         `gorm:"uniqueIndex;not null" json:"payment_id"`     // correlation id sent to the gateway
	CustomerID  uint           `gorm:"index;not null" json:"customer_id"`          // owner
	RecurringID *uint          `gorm:"index" json:"recurring_id"`                  // originating subscription, if any
	Provider    string         `gorm:"index;not null" json:"provider"`             // stripe / asaas
	Method      string         `gorm:"not null" json:"method"`                     // card / debit / pix
	Amount      Money          `gorm:"type:decimal(20,2);not null" json:"amount"`  // charged amount
	Currency    string         `gorm:"not null" json:"currency"`                   // BRL
	Status      string         `gorm:"index;not null" json:"status"`               // payment status
	GatewayRef  string         `gorm:"index" json:"gateway_ref"`                   // provider-side charge/intent id
	Description string         `gorm:"type:text" json:"description"`               // human readable purpose
	Metadata    JSON           `gorm:"type:json" json:"metadata"`                  // gateway payloads, PIX artifacts
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"index" json:"updated_at"`
	PaidAt      *time.Time     `gorm:"index" json:"paid_at"`
	ExpiresAt   *time.Time     `gorm:"index" json:"expires_at"` // PIX charge expiration
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName sets the table name.
func (Payment) TableName() string {
	return "payments"
}
