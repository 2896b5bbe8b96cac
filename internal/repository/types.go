package repository

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentSearchFilter filters the payment search listing.
type PaymentSearchFilter struct {
	Page        int
	PageSize    int
	CustomerID  uint
	Provider    string
	Method      string
	Status      string
	Search      string // matches payment_id, gateway_ref and description
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	AmountMin   *decimal.Decimal
	AmountMax   *decimal.Decimal
}

// WebhookListFilter filters webhook listings.
type WebhookListFilter struct {
	Page      int
	PageSize  int
	Provider  string
	EventType string
	Processed *bool
}
