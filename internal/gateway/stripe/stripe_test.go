package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/nutriplan/payments/internal/constants"
	"github.com/nutriplan/payments/internal/gateway"
)

func TestParseAndValidateConfig(t *testing.T) {
	cfg, err := ParseConfig(map[string]interface{}{
		"secret_key": " sk_test_123 ",
	})
	if err != nil {
		t.Fatalf("parse config failed: %v", err)
	}
	if cfg.SecretKey != "sk_test_123" {
		t.Fatalf("unexpected secret key: %s", cfg.SecretKey)
	}
	if cfg.APIBaseURL != defaultAPIBaseURL {
		t.Fatalf("unexpected default api base url: %s", cfg.APIBaseURL)
	}
	if cfg.TimeoutSeconds != defaultTimeoutSeconds {
		t.Fatalf("unexpected default timeout: %d", cfg.TimeoutSeconds)
	}
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("validate config failed: %v", err)
	}
}

func TestNewRequiresSecretKey(t *testing.T) {
	_, err := New(&Config{})
	if !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected config invalid, got: %v", err)
	}
}

func TestMapIntentStatusTotal(t *testing.T) {
	cases := map[string]string{
		"succeeded":               constants.PaymentStatusCompleted,
		"processing":              constants.PaymentStatusProcessing,
		"requires_action":         constants.PaymentStatusProcessing,
		"requires_confirmation":   constants.PaymentStatusProcessing,
		"canceled":                constants.PaymentStatusFailed,
		"requires_payment_method": constants.PaymentStatusFailed,
		"something_new":           constants.PaymentStatusPending,
		"":                        constants.PaymentStatusPending,
	}
	for input, want := range cases {
		if got := MapIntentStatus(input); got != want {
			t.Fatalf("MapIntentStatus(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestMapEventStatusTotal(t *testing.T) {
	cases := map[string]string{
		"payment_intent.succeeded":      constants.PaymentStatusCompleted,
		"payment_intent.processing":     constants.PaymentStatusProcessing,
		"payment_intent.payment_failed": constants.PaymentStatusFailed,
		"payment_intent.canceled":       constants.PaymentStatusFailed,
		"charge.refunded":               constants.PaymentStatusRefunded,
		"invoice.finalized":             constants.PaymentStatusPending,
		"totally.unknown":               constants.PaymentStatusPending,
	}
	for input, want := range cases {
		if got := MapEventStatus(input); got != want {
			t.Fatalf("MapEventStatus(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestMapSubscriptionStatusTotal(t *testing.T) {
	cases := map[string]string{
		"active":             constants.RecurringStatusActive,
		"trialing":           constants.RecurringStatusActive,
		"past_due":           constants.RecurringStatusPastDue,
		"canceled":           constants.RecurringStatusCancelled,
		"unpaid":             constants.RecurringStatusCancelled,
		"incomplete_expired": constants.RecurringStatusExpired,
		"incomplete":         constants.RecurringStatusPending,
		"":                   constants.RecurringStatusPending,
	}
	for input, want := range cases {
		if got := MapSubscriptionStatus(input); got != want {
			t.Fatalf("MapSubscriptionStatus(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestToMinorAmount(t *testing.T) {
	if got, err := toMinorAmount("12.34", "BRL"); err != nil || got != 1234 {
		t.Fatalf("expected 1234, got %d (err %v)", got, err)
	}
	if got, err := toMinorAmount("12.345", "BRL"); err != nil || got != 1235 {
		t.Fatalf("expected rounded 1235, got %d (err %v)", got, err)
	}
	if got, err := toMinorAmount("1288", "JPY"); err != nil || got != 1288 {
		t.Fatalf("expected zero-decimal 1288, got %d (err %v)", got, err)
	}
	if _, err := toMinorAmount("0", "BRL"); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected zero amount rejection, got: %v", err)
	}
	if _, err := toMinorAmount("not-a-number", "BRL"); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected invalid amount rejection, got: %v", err)
	}
	if _, err := toMinorAmount("999999999999999999999", "BRL"); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("expected overflow rejection, got: %v", err)
	}
}

func TestFromMinorAmount(t *testing.T) {
	if got := fromMinorAmount(1234, "BRL"); got != "12.34" {
		t.Fatalf("expected 12.34, got %s", got)
	}
	if got := fromMinorAmount(1288, "JPY"); got != "1288" {
		t.Fatalf("expected 1288, got %s", got)
	}
}

func TestCreateCardPayment(t *testing.T) {
	var gotForm map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payment_intents" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk_test_123" {
			t.Fatalf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form failed: %v", err)
		}
		gotForm = map[string]string{
			"amount":               r.PostForm.Get("amount"),
			"currency":             r.PostForm.Get("currency"),
			"confirm":              r.PostForm.Get("confirm"),
			"metadata[payment_id]": r.PostForm.Get("metadata[payment_id]"),
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "pi_test_1",
			"status": "succeeded",
		})
	}))
	defer server.Close()

	client, err := New(&Config{SecretKey: "sk_test_123", APIBaseURL: server.URL})
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}
	result, err := client.CreateCardPayment(context.Background(), gateway.CardChargeInput{
		PaymentID:          "pay-uuid-1",
		ProviderCustomerID: "cus_123",
		CardToken:          "pm_123",
		Amount:             "49.90",
		Currency:           "BRL",
	})
	if err != nil {
		t.Fatalf("create card payment failed: %v", err)
	}
	if result.GatewayRef != "pi_test_1" {
		t.Fatalf("unexpected gateway ref: %s", result.GatewayRef)
	}
	if result.Status != constants.PaymentStatusCompleted {
		t.Fatalf("unexpected status: %s", result.Status)
	}
	if gotForm["amount"] != "4990" {
		t.Fatalf("unexpected minor amount: %s", gotForm["amount"])
	}
	if gotForm["currency"] != "brl" {
		t.Fatalf("unexpected currency: %s", gotForm["currency"])
	}
	if gotForm["confirm"] != "true" {
		t.Fatalf("expected confirm=true, got %s", gotForm["confirm"])
	}
	if gotForm["metadata[payment_id]"] != "pay-uuid-1" {
		t.Fatalf("unexpected correlation id: %s", gotForm["metadata[payment_id]"])
	}
}

func TestCreateCardPaymentErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"code":"card_declined"}}`))
	}))
	defer server.Close()

	client, err := New(&Config{SecretKey: "sk_test_123", APIBaseURL: server.URL})
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}
	_, err = client.CreateCardPayment(context.Background(), gateway.CardChargeInput{
		PaymentID: "pay-uuid-2",
		CardToken: "pm_123",
		Amount:    "10.00",
		Currency:  "BRL",
	})
	if !errors.Is(err, ErrResponseInvalid) {
		t.Fatalf("expected response invalid, got: %v", err)
	}
}

func TestCreatePixChargeUnsupported(t *testing.T) {
	client, err := New(&Config{SecretKey: "sk_test_123"})
	if err != nil {
		t.Fatalf("new client failed: %v", err)
	}
	_, err = client.CreatePixCharge(context.Background(), gateway.PixChargeInput{})
	if !errors.Is(err, gateway.ErrUnsupportedOperation) {
		t.Fatalf("expected unsupported operation, got: %v", err)
	}
}

func TestParseWebhookEventPaymentIntent(t *testing.T) {
	raw := map[string]interface{}{
		"id":   "evt_1",
		"type": "payment_intent.succeeded",
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"object":          "payment_intent",
				"id":              "pi_test_9",
				"amount_received": float64(4990),
				"currency":        "brl",
				"metadata": map[string]interface{}{
					"payment_id": "pay-uuid-9",
				},
			},
		},
	}
	event, err := ParseWebhookEvent(raw)
	if err != nil {
		t.Fatalf("parse webhook failed: %v", err)
	}
	if event.Kind != gateway.EventKindPayment {
		t.Fatalf("unexpected kind: %s", event.Kind)
	}
	if event.PaymentID != "pay-uuid-9" {
		t.Fatalf("unexpected payment id: %s", event.PaymentID)
	}
	if event.GatewayRef != "pi_test_9" {
		t.Fatalf("unexpected gateway ref: %s", event.GatewayRef)
	}
	if event.Status != constants.PaymentStatusCompleted {
		t.Fatalf("unexpected status: %s", event.Status)
	}
	if event.Amount != "49.90" {
		t.Fatalf("unexpected amount: %s", event.Amount)
	}
}

func TestParseWebhookEventChargeRefunded(t *testing.T) {
	raw := map[string]interface{}{
		"id":   "evt_2",
		"type": "charge.refunded",
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"object":          "charge",
				"id":              "ch_test_1",
				"payment_intent":  "pi_test_9",
				"amount_refunded": float64(2000),
				"currency":        "brl",
			},
		},
	}
	event, err := ParseWebhookEvent(raw)
	if err != nil {
		t.Fatalf("parse webhook failed: %v", err)
	}
	if event.GatewayRef != "pi_test_9" {
		t.Fatalf("expected charge to resolve the intent ref, got: %s", event.GatewayRef)
	}
	if event.Status != constants.PaymentStatusRefunded {
		t.Fatalf("unexpected status: %s", event.Status)
	}
	if event.Amount != "20.00" {
		t.Fatalf("unexpected refunded amount: %s", event.Amount)
	}
}

func signatureHeaderFor(secret string, body []byte, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(at.Unix(), 10) + "." + string(body)))
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifyWebhookSignature(t *testing.T) {
	const secret = "whsec_test_0123456789"
	body := []byte(`{"type":"payment_intent.succeeded"}`)
	now := time.Now()

	header := signatureHeaderFor(secret, body, now)
	if err := VerifyWebhookSignature(secret, header, body, 300, now); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}

	// Tampered body.
	if err := VerifyWebhookSignature(secret, header, []byte(`{"type":"charge.refunded"}`), 300, now); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("tampered body must fail, got: %v", err)
	}

	// Wrong secret.
	if err := VerifyWebhookSignature("whsec_other", header, body, 300, now); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("wrong secret must fail, got: %v", err)
	}

	// Replayed outside the tolerance window.
	stale := signatureHeaderFor(secret, body, now.Add(-10*time.Minute))
	if err := VerifyWebhookSignature(secret, stale, body, 300, now); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("stale timestamp must fail, got: %v", err)
	}
	// Same header inside a wider window.
	if err := VerifyWebhookSignature(secret, stale, body, 3600, now); err != nil {
		t.Fatalf("tolerance window must apply, got: %v", err)
	}

	// Malformed headers.
	if err := VerifyWebhookSignature(secret, "", body, 300, now); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("missing header must fail, got: %v", err)
	}
	if err := VerifyWebhookSignature(secret, "t=abc,v1=deadbeef", body, 300, now); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("bad timestamp must fail, got: %v", err)
	}
	if err := VerifyWebhookSignature(secret, fmt.Sprintf("t=%d", now.Unix()), body, 300, now); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("missing v1 must fail, got: %v", err)
	}

	// Missing secret is a config problem, not a signature one.
	if err := VerifyWebhookSignature("", header, body, 300, now); !errors.Is(err, ErrConfigInvalid) {
		t.Fatalf("missing secret must report config invalid, got: %v", err)
	}
}

func TestParseWebhookEventSubscription(t *testing.T) {
	raw := map[string]interface{}{
		"id":   "evt_3",
		"type": "customer.subscription.updated",
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"object":             "subscription",
				"id":                 "sub_test_1",
				"status":             "past_due",
				"current_period_end": float64(1760000000),
			},
		},
	}
	event, err := ParseWebhookEvent(raw)
	if err != nil {
		t.Fatalf("parse webhook failed: %v", err)
	}
	if event.Kind != gateway.EventKindSubscription {
		t.Fatalf("unexpected kind: %s", event.Kind)
	}
	if event.SubscriptionID != "sub_test_1" {
		t.Fatalf("unexpected subscription id: %s", event.SubscriptionID)
	}
	if event.Status != constants.RecurringStatusPastDue {
		t.Fatalf("unexpected status: %s", event.Status)
	}
	if event.NextBillingDate == nil || event.NextBillingDate.Unix() != 1760000000 {
		t.Fatalf("unexpected next billing date: %v", event.NextBillingDate)
	}
}

func TestParseWebhookEventMissingType(t *testing.T) {
	_, err := ParseWebhookEvent(map[string]interface{}{"id": "evt_4"})
	if !errors.Is(err, ErrResponseInvalid) {
		t.Fatalf("expected response invalid, got: %v", err)
	}
}
