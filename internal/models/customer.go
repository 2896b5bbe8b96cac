package models

import (
	"time"

	"gorm.io/gorm"
)

// Customer is the platform customer row shared with the user-management
// service. This module reads it to resolve provider customer ids.
type Customer struct {
	ID               uint           `gorm:"primarykey" json:"id"`
	Name             string         `gorm:"not null" json:"name"`
	Email            string         `gorm:"uniqueIndex;not null" json:"email"`
	Document         string         `gorm:"index" json:"document"` // CPF/CNPJ
	StripeCustomerID string         `gorm:"index" json:"stripe_customer_id"`
	AsaasCustomerID  string         `gorm:"index" json:"asaas_customer_id"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName sets the table name.
func (Customer) TableName() string {
	return "customers"
}

// ProviderCustomerID returns the customer id registered at the provider.
func (c Customer) ProviderCustomerID(provider string) string {
	switch provider {
	case "stripe":
		return c.StripeCustomerID
	case "asaas":
		return c.AsaasCustomerID
	}
	return ""
}
