package models

import (
	"time"
)

// PaymentWebhook is a received provider notification. The row is persisted
// before any processing so a crash never loses the event.
type PaymentWebhook struct {
	ID          uint       `gorm:"primarykey" json:"id"`
	Provider    string     `gorm:"index;not null" json:"provider"`
	EventType   string     `gorm:"index" json:"event_type"`
	EventID     string     `gorm:"index" json:"event_id"`    // provider event id when present
	Payload     JSON       `gorm:"type:json" json:"payload"` // raw envelope
	Processed   bool       `gorm:"index;not null;default:false" json:"processed"`
	Error       string     `gorm:"type:text" json:"error"` // last processing failure
	ReceivedAt  time.Time  `gorm:"index;not null" json:"received_at"`
	ProcessedAt *time.Time `json:"processed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName sets the table name.
func (PaymentWebhook) TableName() string {
	return "payment_webhooks"
}
