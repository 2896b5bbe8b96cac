package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
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
	ErrConfigInvalid    = errors.New("stripe config invalid")
	ErrRequestFailed    = errors.New("stripe request failed")
	ErrResponseInvalid  = errors.New("stripe response invalid")
	ErrSignatureInvalid = errors.New("stripe signature invalid")
)

const (
	defaultAPIBaseURL     = "https://api.stripe.com"
	defaultTimeoutSeconds = 15

	// SignatureHeader carries the webhook signature on inbound notifications.
	SignatureHeader = "Stripe-Signature"

	defaultWebhookToleranceSeconds = 300
)

var zeroDecimalCurrencies = map[string]struct{}{
	"BIF": {},
	"CLP": {},
	"DJF": {},
	"GNF": {},
	"JPY": {},
	"KMF": {},
	"KRW": {},
	"MGA": {},
	"PYG": {},
	"RWF": {},
	"UGX": {},
	"VND": {},
	"VUV": {},
	"XAF": {},
	"XOF": {},
	"XPF": {},
}

// Config holds Stripe API credentials.
type Config struct {
	SecretKey      string `json:"secret_key"`
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
	if strings.TrimSpace(cfg.SecretKey) == "" {
		return fmt.Errorf("%w: secret_key is required", ErrConfigInvalid)
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
	c.SecretKey = strings.TrimSpace(c.SecretKey)
	c.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.APIBaseURL), "/")
	if c.APIBaseURL == "" {
		c.APIBaseURL = defaultAPIBaseURL
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = defaultTimeoutSeconds
	}
}

// Client is the Stripe gateway adapter.
type Client struct {
	cfg *Config
}

// New creates a Stripe adapter from a validated config.
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
	return constants.PaymentProviderStripe
}

// CreateCardPayment creates and confirms a payment intent against a stored
// card token. Our payment id travels in the intent metadata so webhooks can
// be correlated back.
func (c *Client) CreateCardPayment(ctx context.Context, input gateway.CardChargeInput) (*gateway.ChargeResult, error) {
	paymentID := strings.TrimSpace(input.PaymentID)
	if paymentID == "" {
		return nil, fmt.Errorf("%w: payment_id is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(input.CardToken) == "" {
		return nil, fmt.Errorf("%w: card token is required", ErrConfigInvalid)
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		return nil, fmt.Errorf("%w: currency is required", ErrConfigInvalid)
	}
	minorAmount, err := toMinorAmount(input.Amount, currency)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(minorAmount, 10))
	form.Set("currency", strings.ToLower(currency))
	form.Set("payment_method", strings.TrimSpace(input.CardToken))
	form.Set("confirm", "true")
	form.Set("off_session", "true")
	form.Set("metadata[payment_id]", paymentID)
	if customer := strings.TrimSpace(input.ProviderCustomerID); customer != "" {
		form.Set("customer", customer)
	}
	if description := strings.TrimSpace(input.Description); description != "" {
		form.Set("description", description)
	}

	raw, err := c.doForm(ctx, http.MethodPost, "/v1/payment_intents", form)
	if err != nil {
		return nil, err
	}
	return chargeResultFromIntent(raw)
}

// ConfirmCardPayment confirms a previously created payment intent.
func (c *Client) ConfirmCardPayment(ctx context.Context, gatewayRef string) (*gateway.ChargeResult, error) {
	gatewayRef = strings.TrimSpace(gatewayRef)
	if gatewayRef == "" {
		return nil, fmt.Errorf("%w: gateway_ref is required", ErrConfigInvalid)
	}
	path := fmt.Sprintf("/v1/payment_intents/%s/confirm", url.PathEscape(gatewayRef))
	raw, err := c.doForm(ctx, http.MethodPost, path, url.Values{})
	if err != nil {
		return nil, err
	}
	return chargeResultFromIntent(raw)
}

// CreatePixCharge is not available on this provider.
func (c *Client) CreatePixCharge(ctx context.Context, input gateway.PixChargeInput) (*gateway.PixChargeResult, error) {
	return nil, fmt.Errorf("%w: stripe does not support pix", gateway.ErrUnsupportedOperation)
}

// CreateSubscription creates a subscription on a provider price.
func (c *Client) CreateSubscription(ctx context.Context, input gateway.SubscriptionInput) (*gateway.SubscriptionResult, error) {
	if strings.TrimSpace(input.ProviderCustomerID) == "" {
		return nil, fmt.Errorf("%w: provider customer id is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(input.PlanRef) == "" {
		return nil, fmt.Errorf("%w: price id is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(input.CardToken) == "" {
		return nil, fmt.Errorf("%w: card token is required", ErrConfigInvalid)
	}

	form := url.Values{}
	form.Set("customer", strings.TrimSpace(input.ProviderCustomerID))
	form.Set("items[0][price]", strings.TrimSpace(input.PlanRef))
	form.Set("default_payment_method", strings.TrimSpace(input.CardToken))
	if paymentID := strings.TrimSpace(input.PaymentID); paymentID != "" {
		form.Set("metadata[payment_id]", paymentID)
	}
	if description := strings.TrimSpace(input.Description); description != "" {
		form.Set("description", description)
	}

	raw, err := c.doForm(ctx, http.MethodPost, "/v1/subscriptions", form)
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
	if periodEnd := readInt64(raw, "current_period_end"); periodEnd > 0 {
		next := time.Unix(periodEnd, 0).UTC()
		result.NextBillingDate = &next
	}
	return result, nil
}

// Refund refunds a payment intent, fully or partially.
func (c *Client) Refund(ctx context.Context, input gateway.RefundInput) (*gateway.RefundResult, error) {
	gatewayRef := strings.TrimSpace(input.GatewayRef)
	if gatewayRef == "" {
		return nil, fmt.Errorf("%w: gateway_ref is required", ErrConfigInvalid)
	}
	form := url.Values{}
	form.Set("payment_intent", gatewayRef)
	if strings.TrimSpace(input.Amount) != "" {
		currency := strings.ToUpper(strings.TrimSpace(input.Currency))
		minorAmount, err := toMinorAmount(input.Amount, currency)
		if err != nil {
			return nil, err
		}
		form.Set("amount", strconv.FormatInt(minorAmount, 10))
	}
	if reason := strings.TrimSpace(input.Reason); reason != "" {
		form.Set("metadata[reason]", reason)
	}

	raw, err := c.doForm(ctx, http.MethodPost, "/v1/refunds", form)
	if err != nil {
		return nil, err
	}
	refundID := strings.TrimSpace(readString(raw, "id"))
	if refundID == "" {
		return nil, fmt.Errorf("%w: missing refund id", ErrResponseInvalid)
	}
	return &gateway.RefundResult{
		RefundID: refundID,
		Status:   constants.PaymentStatusRefunded,
		Raw:      raw,
	}, nil
}

// VerifyWebhookSignature checks the Stripe-Signature header against the raw
// body. The header carries a unix timestamp and one or more v1 HMAC-SHA256
// signatures over "<timestamp>.<body>"; any matching signature passes.
// toleranceSeconds <= 0 falls back to the default window.
func VerifyWebhookSignature(secret, signatureHeader string, body []byte, toleranceSeconds int, now time.Time) error {
	if strings.TrimSpace(secret) == "" {
		return fmt.Errorf("%w: webhook secret is required", ErrConfigInvalid)
	}
	if len(body) == 0 {
		return fmt.Errorf("%w: body is empty", ErrSignatureInvalid)
	}
	if strings.TrimSpace(signatureHeader) == "" {
		return fmt.Errorf("%w: %s is required", ErrSignatureInvalid, SignatureHeader)
	}
	if now.IsZero() {
		now = time.Now()
	}
	if toleranceSeconds <= 0 {
		toleranceSeconds = defaultWebhookToleranceSeconds
	}

	timestamp, signatures, err := parseSignatureHeader(signatureHeader)
	if err != nil {
		return err
	}
	delta := now.Unix() - timestamp
	if delta < 0 {
		delta = -delta
	}
	if delta > int64(toleranceSeconds) {
		return fmt.Errorf("%w: timestamp outside tolerance", ErrSignatureInvalid)
	}

	expected := computeSignature(secret, timestamp, body)
	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return nil
		}
	}
	return fmt.Errorf("%w: verify failed", ErrSignatureInvalid)
}

func computeSignature(secret string, timestamp int64, body []byte) string {
	payload := strconv.FormatInt(timestamp, 10) + "." + string(body)
	h := hmac.New(sha256.New, []byte(secret))
	_, _ = h.Write([]byte(payload))
	return strings.ToLower(hex.EncodeToString(h.Sum(nil)))
}

func parseSignatureHeader(signatureHeader string) (int64, []string, error) {
	timestamp := int64(0)
	signatures := make([]string, 0)
	for _, part := range strings.Split(signatureHeader, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		key := strings.TrimSpace(kv[0])
		value := strings.TrimSpace(kv[1])
		switch key {
		case "t":
			parsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil || parsed <= 0 {
				return 0, nil, fmt.Errorf("%w: invalid timestamp", ErrSignatureInvalid)
			}
			timestamp = parsed
		case "v1":
			if value != "" {
				signatures = append(signatures, strings.ToLower(value))
			}
		}
	}
	if timestamp <= 0 {
		return 0, nil, fmt.Errorf("%w: timestamp is missing", ErrSignatureInvalid)
	}
	if len(signatures) == 0 {
		return 0, nil, fmt.Errorf("%w: v1 signature is missing", ErrSignatureInvalid)
	}
	return timestamp, signatures, nil
}

// ParseWebhookEvent classifies a Stripe webhook envelope. The status map is
// total, unknown event types land as pending payment events so nothing is
// ever rejected at this layer.
func ParseWebhookEvent(raw map[string]interface{}) (*gateway.WebhookEvent, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: empty payload", ErrResponseInvalid)
	}
	eventType := strings.TrimSpace(readString(raw, "type"))
	if eventType == "" {
		return nil, fmt.Errorf("%w: missing event type", ErrResponseInvalid)
	}
	dataRaw := readMap(raw, "data")
	objectRaw := readMap(dataRaw, "object")
	if objectRaw == nil {
		return nil, fmt.Errorf("%w: missing event object", ErrResponseInvalid)
	}

	event := &gateway.WebhookEvent{
		EventID:   strings.TrimSpace(readString(raw, "id")),
		EventType: eventType,
		Raw:       raw,
	}
	metadata := readMap(objectRaw, "metadata")
	event.PaymentID = strings.TrimSpace(readString(metadata, "payment_id"))

	objectType := strings.TrimSpace(readString(objectRaw, "object"))
	switch objectType {
	case "subscription":
		event.Kind = gateway.EventKindSubscription
		event.SubscriptionID = strings.TrimSpace(readString(objectRaw, "id"))
		event.Status = MapSubscriptionStatus(readString(objectRaw, "status"))
		if periodEnd := readInt64(objectRaw, "current_period_end"); periodEnd > 0 {
			next := time.Unix(periodEnd, 0).UTC()
			event.NextBillingDate = &next
		}
	case "charge":
		event.Kind = gateway.EventKindPayment
		event.GatewayRef = readPaymentIntentID(objectRaw)
		if event.GatewayRef == "" {
			event.GatewayRef = strings.TrimSpace(readString(objectRaw, "id"))
		}
		event.Status = MapEventStatus(eventType)
		minorKey := "amount"
		if strings.EqualFold(eventType, "charge.refunded") {
			minorKey = "amount_refunded"
		}
		if minor := readInt64(objectRaw, minorKey); minor > 0 {
			event.Amount = fromMinorAmount(minor, readString(objectRaw, "currency"))
		}
	default:
		event.Kind = gateway.EventKindPayment
		event.GatewayRef = strings.TrimSpace(readString(objectRaw, "id"))
		event.Status = MapEventStatus(eventType)
		minor := readInt64(objectRaw, "amount_received")
		if minor <= 0 {
			minor = readInt64(objectRaw, "amount")
		}
		if minor > 0 {
			event.Amount = fromMinorAmount(minor, readString(objectRaw, "currency"))
		}
	}
	return event, nil
}

// MapIntentStatus maps a payment intent status to the internal vocabulary.
// Total map, unknown values are pending.
func MapIntentStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "succeeded":
		return constants.PaymentStatusCompleted
	case "processing", "requires_capture", "requires_action", "requires_confirmation":
		return constants.PaymentStatusProcessing
	case "canceled", "requires_payment_method":
		return constants.PaymentStatusFailed
	default:
		return constants.PaymentStatusPending
	}
}

// MapEventStatus maps a webhook event type to the internal vocabulary.
// Total map, unknown values are pending.
func MapEventStatus(eventType string) string {
	switch strings.ToLower(strings.TrimSpace(eventType)) {
	case "payment_intent.succeeded":
		return constants.PaymentStatusCompleted
	case "payment_intent.processing":
		return constants.PaymentStatusProcessing
	case "payment_intent.payment_failed", "payment_intent.canceled":
		return constants.PaymentStatusFailed
	case "charge.refunded":
		return constants.PaymentStatusRefunded
	default:
		return constants.PaymentStatusPending
	}
}

// MapSubscriptionStatus maps a subscription status to the internal
// recurring vocabulary. Total map, unknown values are pending.
func MapSubscriptionStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "active", "trialing":
		return constants.RecurringStatusActive
	case "past_due":
		return constants.RecurringStatusPastDue
	case "canceled", "unpaid":
		return constants.RecurringStatusCancelled
	case "incomplete_expired":
		return constants.RecurringStatusExpired
	default:
		return constants.RecurringStatusPending
	}
}

func chargeResultFromIntent(raw map[string]interface{}) (*gateway.ChargeResult, error) {
	intentID := strings.TrimSpace(readString(raw, "id"))
	if intentID == "" {
		return nil, fmt.Errorf("%w: missing payment intent id", ErrResponseInvalid)
	}
	return &gateway.ChargeResult{
		GatewayRef: intentID,
		Status:     MapIntentStatus(readString(raw, "status")),
		Raw:        raw,
	}, nil
}

func toMinorAmount(amount string, currency string) (int64, error) {
	parsed, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return 0, fmt.Errorf("%w: amount is invalid", ErrConfigInvalid)
	}
	if parsed.LessThanOrEqual(decimal.Zero) {
		return 0, fmt.Errorf("%w: amount must be greater than zero", ErrConfigInvalid)
	}
	scale := currencyScale(currency)
	minor := parsed.Shift(int32(scale)).Round(0)
	if !minor.BigInt().IsInt64() {
		return 0, fmt.Errorf("%w: amount overflows minor units", ErrConfigInvalid)
	}
	return minor.IntPart(), nil
}

func fromMinorAmount(minor int64, currency string) string {
	scale := currencyScale(currency)
	return decimal.NewFromInt(minor).Shift(int32(-scale)).StringFixed(int32(scale))
}

func currencyScale(currency string) int {
	upper := strings.ToUpper(strings.TrimSpace(currency))
	if _, ok := zeroDecimalCurrencies[upper]; ok {
		return 0
	}
	return 2
}

func (c *Client) doForm(ctx context.Context, method, path string, form url.Values) (map[string]interface{}, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	endpoint := c.cfg.APIBaseURL + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: build request failed", ErrRequestFailed)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := &http.Client{Timeout: time.Duration(c.cfg.TimeoutSeconds) * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response failed", ErrResponseInvalid)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s %s status %d", ErrResponseInvalid, method, path, resp.StatusCode)
	}
	return decodeRawMap(body)
}

func decodeRawMap(body []byte) (map[string]interface{}, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode response failed", ErrResponseInvalid)
	}
	return raw, nil
}

func readPaymentIntentID(raw map[string]interface{}) string {
	if raw == nil {
		return ""
	}
	value, ok := raw["payment_intent"]
	if !ok || value == nil {
		return ""
	}
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case map[string]interface{}:
		return strings.TrimSpace(readString(typed, "id"))
	default:
		return ""
	}
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
		return strings.TrimSpace(strconv.FormatInt(int64(typed), 10))
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

func readInt64(raw map[string]interface{}, key string) int64 {
	if raw == nil || strings.TrimSpace(key) == "" {
		return 0
	}
	value, ok := raw[key]
	if !ok || value == nil {
		return 0
	}
	switch typed := value.(type) {
	case int64:
		return typed
	case int:
		return int64(typed)
	case float64:
		return int64(typed)
	case json.Number:
		parsed, err := typed.Int64()
		if err == nil {
			return parsed
		}
		floatVal, err := typed.Float64()
		if err != nil {
			return 0
		}
		return int64(floatVal)
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}
