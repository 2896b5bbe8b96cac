package asaas

import (
	"bytes"
	"context"
	"crypto/hmac"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nutriplan/payments/internal/constants"
	"github.com/nutriplan/payments/internal/gateway"

	"github.com/shopspring/decimal"
)

var (
	ErrConfigInvalid   = errors.New("asaas config invalid")
	ErrRequestFailed   = errors.New("asaas request failed")
	ErrResponseInvalid = errors.New("asaas response invalid")
	ErrTokenInvalid    = errors.New("asaas webhook token invalid")
)

const (
	defaultAPIBaseURL     = "https://api.asaas.com"
	defaultTimeoutSeconds = 15

	billingTypePix        = "PIX"
	billingTypeCreditCard = "CREDIT_CARD"

	// WebhookTokenHeader carries the shared token on inbound notifications.
	WebhookTokenHeader = "asaas-access-token"

	dueDateLayout        = "2006-01-02"
	expirationDateLayout = "2006-01-02 15:04:05"
)

// Config holds Asaas API credentials.
type Config struct {
	APIKey         string `json:"api_key"`
	APIBaseURL     string `json:"api_base_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// ParseConfig parses a raw config map.
func ParseConfig(raw map[string]interface{}) (*Config, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: empty config", ErrConfigInvalid)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal config failed", ErrConfigInvalid)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: unmarshal config failed", ErrConfigInvalid)
	}
	cfg.normalize()
	return &cfg, nil
}

// ValidateConfig validates the config.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return fmt.Errorf("%w: api_key is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		return fmt.Errorf("%w: api_base_url is required", ErrConfigInvalid)
	}
	if _, err := url.ParseRequestURI(strings.TrimSpace(cfg.APIBaseURL)); err != nil {
		return fmt.Errorf("%w: api_base_url is invalid", ErrConfigInvalid)
	}
	return nil
}

func (c *Config) normalize() {
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.APIBaseURL), "/")
	if c.APIBaseURL == "" {
		c.APIBaseURL = defaultAPIBaseURL
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = defaultTimeoutSeconds
	}
}

// Client is the Asaas gateway adapter. It covers PIX charges and recurring
// subscriptions, card capture stays on the other provider.
type Client struct {
	cfg *Config
}

// New creates an Asaas adapter from a validated config.
func New(cfg *Config) (*Client, error) {
	if cfg != nil {
		cfg.normalize()
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return &Client{cfg: cfg}, nil
}

// Provider returns the provider name.
func (c *Client) Provider() string {
	return constants.PaymentProviderAsaas
}

// CreateCardPayment is not available on this provider.
func (c *Client) CreateCardPayment(ctx context.Context, input gateway.CardChargeInput) (*gateway.ChargeResult, error) {
	return nil, fmt.Errorf("%w: asaas does not capture cards here", gateway.ErrUnsupportedOperation)
}

// ConfirmCardPayment is not available on this provider.
func (c *Client) ConfirmCardPayment(ctx context.Context, gatewayRef string) (*gateway.ChargeResult, error) {
	return nil, fmt.Errorf("%w: asaas has no card confirmation", gateway.ErrUnsupportedOperation)
}

// CreatePixCharge creates a PIX charge and fetches its QR code. Our payment
// id travels in externalReference so webhooks can be correlated back.
func (c *Client) CreatePixCharge(ctx context.Context, input gateway.PixChargeInput) (*gateway.PixChargeResult, error) {
	paymentID := strings.TrimSpace(input.PaymentID)
	if paymentID == "" {
		return nil, fmt.Errorf("%w: payment_id is required", ErrConfigInvalid)
	}
	customerID := strings.TrimSpace(input.ProviderCustomerID)
	if customerID == "" {
		return nil, fmt.Errorf("%w: provider customer id is required", ErrConfigInvalid)
	}
	value, err := parseAmount(input.Amount)
	if err != nil {
		return nil, err
	}
	dueDate := input.ExpiresAt
	if dueDate.IsZero() {
		dueDate = time.Now().Add(30 * time.Minute)
	}

	payload := map[string]interface{}{
		"customer":          customerID,
		"billingType":       billingTypePix,
		"value":             value,
		"dueDate":           dueDate.Format(dueDateLayout),
		"externalReference": paymentID,
	}
	if description := strings.TrimSpace(input.Description); description != "" {
		payload["description"] = description
	}

	raw, err := c.doJSON(ctx, http.MethodPost, "/v3/payments", payload)
	if err != nil {
		return nil, err
	}
	chargeID := strings.TrimSpace(readString(raw, "id"))
	if chargeID == "" {
		return nil, fmt.Errorf("%w: missing charge id", ErrResponseInvalid)
	}

	result := &gateway.PixChargeResult{
		GatewayRef: chargeID,
		Status:     MapPaymentStatus(readString(raw, "status")),
		Raw:        raw,
	}

	qrPath := fmt.Sprintf("/v3/payments/%s/pixQrCode", url.PathEscape(chargeID))
	qrRaw, err := c.doJSON(ctx, http.MethodGet, qrPath, nil)
	if err != nil {
		return nil, err
	}
	result.QRCodeImage = strings.TrimSpace(readString(qrRaw, "encodedImage"))
	result.Payload = strings.TrimSpace(readString(qrRaw, "payload"))
	result.PixKey = strings.TrimSpace(readString(qrRaw, "pixKey"))
	if result.Payload == "" {
		return nil, fmt.Errorf("%w: missing pix payload", ErrResponseInvalid)
	}
	if expiration := strings.TrimSpace(readString(qrRaw, "expirationDate")); expiration != "" {
		if parsed, err := time.ParseInLocation(expirationDateLayout, expiration, time.Local); err == nil {
			result.ExpiresAt = &parsed
		}
	}
	if result.ExpiresAt == nil {
		result.ExpiresAt = &dueDate
	}
	return result, nil
}

// CreateSubscription creates a recurring subscription. The cycle is derived
// from the billing interval, the first due date depends on the
// charge-immediately flag.
func (c *Client) CreateSubscription(ctx context.Context, input gateway.SubscriptionInput) (*gateway.SubscriptionResult, error) {
	customerID := strings.TrimSpace(input.ProviderCustomerID)
	if customerID == "" {
		return nil, fmt.Errorf("%w: provider customer id is required", ErrConfigInvalid)
	}
	value, err := parseAmount(input.Amount)
	if err != nil {
		return nil, err
	}
	cycle, err := cycleFromInterval(input.Interval)
	if err != nil {
		return nil, err
	}

	nextDueDate := time.Now()
	if !input.ChargeImmediately {
		nextDueDate = advanceByInterval(nextDueDate, input.Interval)
	}

	billingType := billingTypePix
	token := strings.TrimSpace(input.CardToken)
	if token != "" {
		billingType = billingTypeCreditCard
	}

	payload := map[string]interface{}{
		"customer":    customerID,
		"billingType": billingType,
		"value":       value,
		"nextDueDate": nextDueDate.Format(dueDateLayout),
		"cycle":       cycle,
	}
	if paymentID := strings.TrimSpace(input.PaymentID); paymentID != "" {
		payload["externalReference"] = paymentID
	}
	if description := strings.TrimSpace(input.Description); description != "" {
		payload["description"] = description
	}
	if token != "" {
		payload["creditCardToken"] = token
	}

	raw, err := c.doJSON(ctx, http.MethodPost, "/v3/subscriptions", payload)
	if err != nil {
		return nil, err
	}
	subscriptionID := strings.TrimSpace(readString(raw, "id"))
	if subscriptionID == "" {
		return nil, fmt.Errorf("%w: missing subscription id", ErrResponseInvalid)
	}
	result := &gateway.SubscriptionResult{
		GatewaySubscriptionID: subscriptionID,
		Status:                MapSubscriptionStatus(readString(raw, "status")),
		Raw:                   raw,
	}
	if next := strings.TrimSpace(readString(raw, "nextDueDate")); next != "" {
		if parsed, err := time.ParseInLocation(dueDateLayout, next, time.Local); err == nil {
			result.NextBillingDate = &parsed
		}
	}
	if result.NextBillingDate == nil {
		result.NextBillingDate = &nextDueDate
	}
	return result, nil
}

// Refund refunds a received charge, fully or partially.
func (c *Client) Refund(ctx context.Context, input gateway.RefundInput) (*gateway.RefundResult, error) {
	gatewayRef := strings.TrimSpace(input.GatewayRef)
	if gatewayRef == "" {
		return nil, fmt.Errorf("%w: gateway_ref is required", ErrConfigInvalid)
	}
	payload := map[string]interface{}{}
	if strings.TrimSpace(input.Amount) != "" {
		value, err := parseAmount(input.Amount)
		if err != nil {
			return nil, err
		}
		payload["value"] = value
	}
	if reason := strings.TrimSpace(input.Reason); reason != "" {
		payload["description"] = reason
	}

	path := fmt.Sprintf("/v3/payments/%s/refund", url.PathEscape(gatewayRef))
	raw, err := c.doJSON(ctx, http.MethodPost, path, payload)
	if err != nil {
		return nil, err
	}
	refundID := strings.TrimSpace(readString(raw, "id"))
	if refundID == "" {
		refundID = gatewayRef
	}
	return &gateway.RefundResult{
		RefundID: refundID,
		Status:   MapPaymentStatus(readString(raw, "status")),
		Raw:      raw,
	}, nil
}

// ParseWebhookEvent classifies an Asaas webhook envelope. The status map is
// total, unknown events land as pending payment events so nothing is ever
// rejected at this layer.
// VerifyWebhookToken compares the inbound asaas-access-token header with the
// configured shared token in constant time.
func VerifyWebhookToken(expected, received string) error {
	expected = strings.TrimSpace(expected)
	received = strings.TrimSpace(received)
	if expected == "" {
		return fmt.Errorf("%w: webhook token is required", ErrConfigInvalid)
	}
	if received == "" {
		return fmt.Errorf("%w: %s is required", ErrTokenInvalid, WebhookTokenHeader)
	}
	if !hmac.Equal([]byte(expected), []byte(received)) {
		return fmt.Errorf("%w: verify failed", ErrTokenInvalid)
	}
	return nil
}

func ParseWebhookEvent(raw map[string]interface{}) (*gateway.WebhookEvent, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: empty payload", ErrResponseInvalid)
	}
	eventType := strings.TrimSpace(readString(raw, "event"))
	if eventType == "" {
		return nil, fmt.Errorf("%w: missing event name", ErrResponseInvalid)
	}
	paymentRaw := readMap(raw, "payment")
	if paymentRaw == nil {
		return nil, fmt.Errorf("%w: missing payment object", ErrResponseInvalid)
	}

	event := &gateway.WebhookEvent{
		EventID:        strings.TrimSpace(readString(raw, "id")),
		EventType:      eventType,
		Kind:           gateway.EventKindPayment,
		PaymentID:      strings.TrimSpace(readString(paymentRaw, "externalReference")),
		GatewayRef:     strings.TrimSpace(readString(paymentRaw, "id")),
		SubscriptionID: strings.TrimSpace(readString(paymentRaw, "subscription")),
		Status:         MapEventStatus(eventType),
		Raw:            raw,
	}
	if value := readAmount(paymentRaw, "value"); value != "" {
		if amount, err := parseAmount(value); err == nil {
			event.Amount = amount.String()
		}
	}
	return event, nil
}

// readAmount reads a monetary field without the integer truncation of
// readString, provider payloads carry value as a JSON number.
func readAmount(raw map[string]interface{}, key string) string {
	if raw == nil {
		return ""
	}
	value, ok := raw[key]
	if !ok || value == nil {
		return ""
	}
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return strings.TrimSpace(typed.String())
	case float64:
		return decimal.NewFromFloat(typed).String()
	default:
		return ""
	}
}

// MapPaymentStatus maps a charge status to the internal vocabulary.
// Total map, unknown values are pending.
func MapPaymentStatus(status string) string {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "RECEIVED", "CONFIRMED", "RECEIVED_IN_CASH":
		return constants.PaymentStatusCompleted
	case "AWAITING_RISK_ANALYSIS":
		return constants.PaymentStatusProcessing
	case "OVERDUE":
		return constants.PaymentStatusFailed
	case "REFUNDED", "REFUND_REQUESTED", "REFUND_IN_PROGRESS":
		return constants.PaymentStatusRefunded
	default:
		return constants.PaymentStatusPending
	}
}

// MapEventStatus maps a webhook event name to the internal vocabulary.
// Total map, unknown values are pending.
func MapEventStatus(eventType string) string {
	switch strings.ToUpper(strings.TrimSpace(eventType)) {
	case "PAYMENT_CONFIRMED", "PAYMENT_RECEIVED":
		return constants.PaymentStatusCompleted
	case "PAYMENT_AWAITING_RISK_ANALYSIS":
		return constants.PaymentStatusProcessing
	case "PAYMENT_OVERDUE", "PAYMENT_DELETED":
		return constants.PaymentStatusFailed
	case "PAYMENT_REFUNDED":
		return constants.PaymentStatusRefunded
	default:
		return constants.PaymentStatusPending
	}
}

// MapSubscriptionStatus maps a subscription status to the internal
// recurring vocabulary. Total map, unknown values are pending.
func MapSubscriptionStatus(status string) string {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "ACTIVE":
		return constants.RecurringStatusActive
	case "OVERDUE":
		return constants.RecurringStatusPastDue
	case "INACTIVE":
		return constants.RecurringStatusCancelled
	case "EXPIRED":
		return constants.RecurringStatusExpired
	default:
		return constants.RecurringStatusPending
	}
}

func cycleFromInterval(interval string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(interval)) {
	case constants.BillingIntervalMonthly:
		return "MONTHLY", nil
	case constants.BillingIntervalQuarterly:
		return "QUARTERLY", nil
	case constants.BillingIntervalSemiannual:
		return "SEMIANNUALLY", nil
	case constants.BillingIntervalYearly:
		return "YEARLY", nil
	default:
		return "", fmt.Errorf("%w: unknown billing interval %q", ErrConfigInvalid, interval)
	}
}

func advanceByInterval(from time.Time, interval string) time.Time {
	switch strings.ToLower(strings.TrimSpace(interval)) {
	case constants.BillingIntervalQuarterly:
		return from.AddDate(0, 3, 0)
	case constants.BillingIntervalSemiannual:
		return from.AddDate(0, 6, 0)
	case constants.BillingIntervalYearly:
		return from.AddDate(1, 0, 0)
	default:
		return from.AddDate(0, 1, 0)
	}
}

func parseAmount(amount string) (json.Number, error) {
	parsed, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return "", fmt.Errorf("%w: amount is invalid", ErrConfigInvalid)
	}
	if parsed.LessThanOrEqual(decimal.Zero) {
		return "", fmt.Errorf("%w: amount must be greater than zero", ErrConfigInvalid)
	}
	return json.Number(parsed.Round(2).StringFixed(2)), nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload map[string]interface{}) (map[string]interface{}, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: encode request failed", ErrRequestFailed)
		}
		body = bytes.NewReader(encoded)
	}
	endpoint := c.cfg.APIBaseURL + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("%w: build request failed", ErrRequestFailed)
	}
	req.Header.Set("access_token", c.cfg.APIKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := &http.Client{Timeout: time.Duration(c.cfg.TimeoutSeconds) * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response failed", ErrResponseInvalid)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s %s status %d", ErrResponseInvalid, method, path, resp.StatusCode)
	}
	return decodeRawMap(respBody)
}

func decodeRawMap(body []byte) (map[string]interface{}, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode response failed", ErrResponseInvalid)
	}
	return raw, nil
}

func readString(raw map[string]interface{}, key string) string {
	if raw == nil || strings.TrimSpace(key) == "" {
		return ""
	}
	value, ok := raw[key]
	if !ok || value == nil {
		return ""
	}
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return strings.TrimSpace(typed.String())
	case float64:
		return strings.TrimSpace(strconv.FormatFloat(typed, 'f', -1, 64))
	case int64:
		return strings.TrimSpace(strconv.FormatInt(typed, 10))
	case int:
		return strings.TrimSpace(strconv.Itoa(typed))
	default:
		return ""
	}
}

func readMap(raw map[string]interface{}, key string) map[string]interface{} {
	if raw == nil || strings.TrimSpace(key) == "" {
		return nil
	}
	value, ok := raw[key]
	if !ok || value == nil {
		return nil
	}
	mapped, ok := value.(map[string]interface{})
	if !ok {
		return nil
	}
	return mapped
}
