package gateway

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrUnsupportedOperation marks an operation a provider cannot perform,
// e.g. card confirmation on a PIX-only gateway.
var ErrUnsupportedOperation = errors.New("gateway operation unsupported")

// Webhook event kinds after provider classification.
const (
	EventKindPayment      = "payment"
	EventKindSubscription = "subscription"
	EventKindIgnored      = "ignored"
)

// WebhookEvent is a provider notification normalized for reconciliation.
type WebhookEvent struct {
	EventID         string
	EventType       string
	Kind            string
	PaymentID       string // our correlation id when the provider echoes it
	GatewayRef      string // provider-side charge/intent id
	SubscriptionID  string // provider-side subscription id
	Status          string // mapped internal status
	Amount          string // provider-reported amount in major units, empty when absent
	NextBillingDate *time.Time
	Raw             map[string]interface{}
}

// CardChargeInput describes a card capture request.
type CardChargeInput struct {
	PaymentID          string // our correlation id, echoed back by webhooks
	ProviderCustomerID string
	CardToken          string
	Amount             string
	Currency           string
	Description        string
}

// PixChargeInput describes a PIX charge request.
type PixChargeInput struct {
	PaymentID          string
	ProviderCustomerID string
	Amount             string
	Currency           string
	Description        string
	ExpiresAt          time.Time
}

// SubscriptionInput describes a recurring subscription request.
type SubscriptionInput struct {
	PaymentID          string
	ProviderCustomerID string
	CardToken          string
	PlanRef            string // provider-side price/plan id
	Amount             string
	Currency           string
	Interval           string
	Description        string
	ChargeImmediately  bool
}

// RefundInput describes a refund request.
type RefundInput struct {
	GatewayRef string // provider-side charge/intent id
	Amount     string // empty refunds the full amount
	Currency   string
	Reason     string
}

// ChargeResult is the normalized outcome of a card capture or confirmation.
type ChargeResult struct {
	GatewayRef string
	Status     string // internal payment status
	Raw        map[string]interface{}
}

// PixChargeResult is the normalized outcome of a PIX charge creation.
type PixChargeResult struct {
	GatewayRef  string
	Status      string
	QRCodeImage string // base64 PNG
	Payload     string // copy-paste payload
	PixKey      string
	ExpiresAt   *time.Time
	Raw         map[string]interface{}
}

// SubscriptionResult is the normalized outcome of a subscription creation.
type SubscriptionResult struct {
	GatewaySubscriptionID string
	Status                string // internal recurring status
	NextBillingDate       *time.Time
	Raw                   map[string]interface{}
}

// RefundResult is the normalized outcome of a refund request.
type RefundResult struct {
	RefundID string
	Status   string
	Raw      map[string]interface{}
}

// Gateway is the provider adapter contract. Implementations never leak
// provider status vocabulary; every status is mapped before returning.
type Gateway interface {
	Provider() string
	CreateCardPayment(ctx context.Context, input CardChargeInput) (*ChargeResult, error)
	ConfirmCardPayment(ctx context.Context, gatewayRef string) (*ChargeResult, error)
	CreatePixCharge(ctx context.Context, input PixChargeInput) (*PixChargeResult, error)
	CreateSubscription(ctx context.Context, input SubscriptionInput) (*SubscriptionResult, error)
	Refund(ctx context.Context, input RefundInput) (*RefundResult, error)
}

// Registry routes payment methods to their adapter. Built once at startup.
type Registry struct {
	byMethod map[string]Gateway
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byMethod: make(map[string]Gateway)}
}

// Register binds a payment method to an adapter.
func (r *Registry) Register(method string, gw Gateway) {
	if r == nil || gw == nil {
		return
	}
	method = strings.ToLower(strings.TrimSpace(method))
	if method == "" {
		return
	}
	r.byMethod[method] = gw
}

// ForMethod resolves the adapter for a payment method, nil when unbound.
func (r *Registry) ForMethod(method string) Gateway {
	if r == nil {
		return nil
	}
	return r.byMethod[strings.ToLower(strings.TrimSpace(method))]
}

// ForProvider resolves an adapter by provider name, nil when unbound.
func (r *Registry) ForProvider(provider string) Gateway {
	if r == nil {
		return nil
	}
	provider = strings.ToLower(strings.TrimSpace(provider))
	for _, gw := range r.byMethod {
		if gw.Provider() == provider {
			return gw
		}
	}
	return nil
}
