package constants

// Payment status constants
const (
	PaymentStatusPending    = "pending"
	PaymentStatusProcessing = "processing"
	PaymentStatusCompleted  = "completed"
	PaymentStatusFailed     = "failed"
	PaymentStatusRefunded   = "refunded"
)

// Recurring payment status constants
const (
	RecurringStatusPending   = "pending"
	RecurringStatusActive    = "active"
	RecurringStatusPastDue   = "past_due"
	RecurringStatusCancelled = "cancelled"
	RecurringStatusExpired   = "expired"
)

// Payment method constants
const (
	PaymentMethodCard  = "card"
	PaymentMethodDebit = "debit"
	PaymentMethodPix   = "pix"
)

// Payment provider constants
const (
	PaymentProviderStripe = "stripe"
	PaymentProviderAsaas  = "asaas"
)

// Billing interval constants
const (
	BillingIntervalMonthly    = "monthly"
	BillingIntervalQuarterly  = "quarterly"
	BillingIntervalSemiannual = "semiannual"
	BillingIntervalYearly     = "yearly"
)

// Queue constants
const (
	QueueDefault            = "default"
	QueueCritical           = "critical"
	TaskPaymentStatusNotify = "payment:status_notify"
	TaskWebhookReplay       = "webhook:replay_unprocessed"
)

// Cache defaults
const (
	RedisPrefixDefault = "np"
)

// Currency constants
const (
	CurrencyDefault = "BRL"
)

// Metadata key constants shared between gateways and the reconciler
const (
	MetadataKeyPixPayload    = "pix_payload"
	MetadataKeyPixQRCode     = "pix_qr_code"
	MetadataKeyPixKey        = "pix_key"
	MetadataKeyPixExpiresAt  = "pix_expires_at"
	MetadataKeyGatewayStatus = "gateway_status"
	MetadataKeyGatewayEvent  = "gateway_event"
	MetadataKeyGatewayAmount = "gateway_amount"
	MetadataKeyFailureReason = "failure_reason"
	MetadataKeyRefundID      = "refund_id"
)
