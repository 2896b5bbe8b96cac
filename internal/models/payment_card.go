package models

import (
	"time"

	"gorm.io/gorm"
)

// PaymentCard is a tokenized card stored for a customer. Only the gateway
// token and display data live here, never the PAN.
type PaymentCard struct {
	ID          uint           `gorm:"primarykey" json:"id"`
	CustomerID  uint           `gorm:"index;not null" json:"customer_id"`
	Provider    string         `gorm:"not null" json:"provider"`      // gateway holding the token
	Token       string         `gorm:"not null" json:"-"`             // gateway payment-method token
	Brand       string         `gorm:"not null" json:"brand"`         // visa / mastercard / ...
	LastDigits  string         `gorm:"not null" json:"last_digits"`   // last 4 digits
	ExpiryMonth int            `gorm:"not null" json:"expiry_month"`
	ExpiryYear  int            `gorm:"not null" json:"expiry_year"`
	HolderName  string         `json:"holder_name"`
	DefaultCard bool           `gorm:"index;not null;default:false" json:"default_card"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName sets the table name.
func (PaymentCard) TableName() string {
	return "payment_cards"
}
