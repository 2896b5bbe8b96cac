package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nutriplan/payments/internal/config"
	"github.com/nutriplan/payments/internal/constants"
	"github.com/nutriplan/payments/internal/gateway"
	"github.com/nutriplan/payments/internal/gateway/asaas"
	"github.com/nutriplan/payments/internal/models"
	"github.com/nutriplan/payments/internal/queue"
	"github.com/nutriplan/payments/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupPaymentServiceTest(t *testing.T, gateways *gateway.Registry) (*gorm.DB, *PaymentService) {
	t.Helper()
	dsn := fmt.Sprintf("file:payment_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open test db failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Customer{}, &models.Payment{}, &models.PaymentCard{}); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	if gateways == nil {
		gateways = gateway.NewRegistry()
	}
	queueClient, err := queue.NewClient(nil)
	if err != nil {
		t.Fatalf("queue client failed: %v", err)
	}
	svc := NewPaymentService(
		repository.NewPaymentRepository(db),
		repository.NewCustomerRepository(db),
		repository.NewPaymentCardRepository(db),
		gateways,
		queueClient,
		config.PaymentConfig{},
	)
	return db, svc
}

func createTestCustomer(t *testing.T, db *gorm.DB, asaasID string) *models.Customer {
	t.Helper()
	customer := &models.Customer{
		Name:            "Test Customer",
		Email:           fmt.Sprintf("test_%d@example.com", time.Now().UnixNano()),
		AsaasCustomerID: asaasID,
	}
	if err := db.Create(customer).Error; err != nil {
		t.Fatalf("create customer failed: %v", err)
	}
	return customer
}

func TestCreatePaymentIntentValidation(t *testing.T) {
	db, svc := setupPaymentServiceTest(t, nil)
	customer := createTestCustomer(t, db, "")

	_, err := svc.CreatePaymentIntent(context.Background(), CreatePaymentIntentInput{
		CustomerID: customer.ID,
		Method:     "boleto",
		Amount:     decimal.NewFromInt(10),
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for unknown method, got: %v", err)
	}

	_, err = svc.CreatePaymentIntent(context.Background(), CreatePaymentIntentInput{
		CustomerID: customer.ID,
		Method:     constants.PaymentMethodCard,
		Amount:     decimal.Zero,
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for zero amount, got: %v", err)
	}

	_, err = svc.CreatePaymentIntent(context.Background(), CreatePaymentIntentInput{
		CustomerID: customer.ID + 100,
		Method:     constants.PaymentMethodCard,
		Amount:     decimal.NewFromInt(10),
	})
	if !errors.Is(err, ErrCustomerNotFound) {
		t.Fatalf("expected customer not found, got: %v", err)
	}
}

func TestCreatePaymentIntentUnboundMethodStaysPending(t *testing.T) {
	db, svc := setupPaymentServiceTest(t, nil)
	customer := createTestCustomer(t, db, "")

	payment, err := svc.CreatePaymentIntent(context.Background(), CreatePaymentIntentInput{
		CustomerID:  customer.ID,
		Method:      constants.PaymentMethodDebit,
		Amount:      decimal.RequireFromString("15.50"),
		Description: "debit order",
	})
	if err != nil {
		t.Fatalf("create intent failed: %v", err)
	}
	if payment.Status != constants.PaymentStatusPending {
		t.Fatalf("expected pending intent, got: %s", payment.Status)
	}
	if payment.Provider != "" || payment.GatewayRef != "" {
		t.Fatalf("unbound method must not reach a provider: %+v", payment)
	}
	if payment.PaymentID == "" {
		t.Fatalf("expected a correlation id")
	}
	if payment.Amount.String() != "15.50" {
		t.Fatalf("unexpected amount: %s", payment.Amount.String())
	}
}

func TestCreatePaymentIntentPix(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v3/payments":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"id":     "pay_asaas_1",
				"status": "PENDING",
			})
		case r.Method == http.MethodGet && r.URL.Path == "/v3/payments/pay_asaas_1/pixQrCode":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"encodedImage": "base64image",
				"payload":      "00020126briqrcode",
				"pixKey":       "pix@example.com",
			})
		default:
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	asaasClient, err := asaas.New(&asaas.Config{APIKey: "key_123", APIBaseURL: server.URL})
	if err != nil {
		t.Fatalf("asaas client failed: %v", err)
	}
	gateways := gateway.NewRegistry()
	gateways.Register(constants.PaymentMethodPix, asaasClient)

	db, svc := setupPaymentServiceTest(t, gateways)
	customer := createTestCustomer(t, db, "cus_000000000001")

	payment, err := svc.CreatePaymentIntent(context.Background(), CreatePaymentIntentInput{
		CustomerID:  customer.ID,
		Method:      constants.PaymentMethodPix,
		Amount:      decimal.RequireFromString("49.90"),
		Description: "pix order",
	})
	if err != nil {
		t.Fatalf("create pix intent failed: %v", err)
	}
	if payment.Status != constants.PaymentStatusPending {
		t.Fatalf("pix must stay pending until the webhook, got: %s", payment.Status)
	}
	if payment.Provider != constants.PaymentProviderAsaas {
		t.Fatalf("unexpected provider: %s", payment.Provider)
	}
	if payment.GatewayRef != "pay_asaas_1" {
		t.Fatalf("unexpected gateway ref: %s", payment.GatewayRef)
	}
	if payment.Metadata[constants.MetadataKeyPixPayload] != "00020126briqrcode" {
		t.Fatalf("expected pix payload in metadata: %v", payment.Metadata)
	}
	if payment.ExpiresAt == nil {
		t.Fatalf("expected a pix expiration")
	}
}

func TestCreatePaymentIntentPixRequiresRegistration(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("gateway must not be called")
	}))
	defer server.Close()

	asaasClient, err := asaas.New(&asaas.Config{APIKey: "key_123", APIBaseURL: server.URL})
	if err != nil {
		t.Fatalf("asaas client failed: %v", err)
	}
	gateways := gateway.NewRegistry()
	gateways.Register(constants.PaymentMethodPix, asaasClient)

	db, svc := setupPaymentServiceTest(t, gateways)
	customer := createTestCustomer(t, db, "")

	_, err = svc.CreatePaymentIntent(context.Background(), CreatePaymentIntentInput{
		CustomerID: customer.ID,
		Method:     constants.PaymentMethodPix,
		Amount:     decimal.NewFromInt(10),
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for unregistered customer, got: %v", err)
	}
}

func TestUpdatePaymentStatusForwardOnly(t *testing.T) {
	db, svc := setupPaymentServiceTest(t, nil)
	customer := createTestCustomer(t, db, "")

	payment, err := svc.CreatePaymentIntent(context.Background(), CreatePaymentIntentInput{
		CustomerID: customer.ID,
		Method:     constants.PaymentMethodDebit,
		Amount:     decimal.NewFromInt(10),
	})
	if err != nil {
		t.Fatalf("create intent failed: %v", err)
	}

	if err := svc.UpdatePaymentStatus(payment.PaymentID, constants.PaymentStatusCompleted, models.JSON{"first": "event"}); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	updated, err := svc.GetPayment(customer.ID, payment.PaymentID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if updated.Status != constants.PaymentStatusCompleted {
		t.Fatalf("unexpected status: %s", updated.Status)
	}
	if updated.PaidAt == nil {
		t.Fatalf("expected paid_at on completion")
	}

	// Backward movement is ignored without an error.
	if err := svc.UpdatePaymentStatus(payment.PaymentID, constants.PaymentStatusProcessing, nil); err != nil {
		t.Fatalf("backward update must not fail: %v", err)
	}
	updated, err = svc.GetPayment(customer.ID, payment.PaymentID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if updated.Status != constants.PaymentStatusCompleted {
		t.Fatalf("backward transition must be ignored, got: %s", updated.Status)
	}
}

func TestUpdatePaymentStatusReplayMergesMetadata(t *testing.T) {
	db, svc := setupPaymentServiceTest(t, nil)
	customer := createTestCustomer(t, db, "")

	payment, err := svc.CreatePaymentIntent(context.Background(), CreatePaymentIntentInput{
		CustomerID: customer.ID,
		Method:     constants.PaymentMethodDebit,
		Amount:     decimal.NewFromInt(10),
	})
	if err != nil {
		t.Fatalf("create intent failed: %v", err)
	}

	if err := svc.UpdatePaymentStatus(payment.PaymentID, constants.PaymentStatusCompleted, models.JSON{"first": "event"}); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if err := svc.UpdatePaymentStatus(payment.PaymentID, constants.PaymentStatusCompleted, models.JSON{"second": "replay"}); err != nil {
		t.Fatalf("replay must converge: %v", err)
	}

	updated, err := svc.GetPayment(customer.ID, payment.PaymentID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if updated.Status != constants.PaymentStatusCompleted {
		t.Fatalf("unexpected status after replay: %s", updated.Status)
	}
	if updated.Metadata["first"] != "event" || updated.Metadata["second"] != "replay" {
		t.Fatalf("replay must merge metadata: %v", updated.Metadata)
	}
}

func TestUpdatePaymentStatusUnknownIDIsNoop(t *testing.T) {
	_, svc := setupPaymentServiceTest(t, nil)
	if err := svc.UpdatePaymentStatus("pay-uuid-missing", constants.PaymentStatusCompleted, nil); err != nil {
		t.Fatalf("unknown id must be a silent no-op, got: %v", err)
	}
}

func TestApplyGatewayEventRefFallbackAndBackfill(t *testing.T) {
	db, svc := setupPaymentServiceTest(t, nil)
	customer := createTestCustomer(t, db, "")

	payment, err := svc.CreatePaymentIntent(context.Background(), CreatePaymentIntentInput{
		CustomerID: customer.ID,
		Method:     constants.PaymentMethodDebit,
		Amount:     decimal.NewFromInt(10),
	})
	if err != nil {
		t.Fatalf("create intent failed: %v", err)
	}

	// Correlation id missing from the event, ref missing on the row. The
	// first event backfills the ref, the second matches through it.
	if err := svc.ApplyGatewayEvent(payment.PaymentID, "pi_late_ref", constants.PaymentStatusProcessing, nil); err != nil {
		t.Fatalf("apply event failed: %v", err)
	}
	updated, err := svc.GetPayment(customer.ID, payment.PaymentID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if updated.GatewayRef != "pi_late_ref" {
		t.Fatalf("expected gateway ref backfill, got: %s", updated.GatewayRef)
	}

	if err := svc.ApplyGatewayEvent("", "pi_late_ref", constants.PaymentStatusCompleted, nil); err != nil {
		t.Fatalf("apply event by ref failed: %v", err)
	}
	updated, err = svc.GetPayment(customer.ID, payment.PaymentID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if updated.Status != constants.PaymentStatusCompleted {
		t.Fatalf("expected ref fallback to settle the payment, got: %s", updated.Status)
	}

	// Both identifiers unknown is a logged no-op.
	if err := svc.ApplyGatewayEvent("pay-none", "pi_none", constants.PaymentStatusCompleted, nil); err != nil {
		t.Fatalf("unmatched event must not fail: %v", err)
	}
}

func TestRefundRequiresCompletedPayment(t *testing.T) {
	db, svc := setupPaymentServiceTest(t, nil)
	customer := createTestCustomer(t, db, "")

	payment, err := svc.CreatePaymentIntent(context.Background(), CreatePaymentIntentInput{
		CustomerID: customer.ID,
		Method:     constants.PaymentMethodDebit,
		Amount:     decimal.NewFromInt(10),
	})
	if err != nil {
		t.Fatalf("create intent failed: %v", err)
	}

	_, err = svc.RefundPayment(context.Background(), customer.ID, payment.PaymentID, nil, "test")
	if !errors.Is(err, ErrInvalidStatusTransition) {
		t.Fatalf("expected transition error for pending refund, got: %v", err)
	}
}

func TestConfirmPaymentRejectsPix(t *testing.T) {
	db, svc := setupPaymentServiceTest(t, nil)
	customer := createTestCustomer(t, db, "")

	payment := &models.Payment{
		PaymentID:  "pay-uuid-pix",
		CustomerID: customer.ID,
		Provider:   constants.PaymentProviderAsaas,
		Method:     constants.PaymentMethodPix,
		Amount:     models.NewMoneyFromDecimal(decimal.NewFromInt(10)),
		Currency:   constants.CurrencyDefault,
		Status:     constants.PaymentStatusPending,
	}
	if err := db.Create(payment).Error; err != nil {
		t.Fatalf("create payment failed: %v", err)
	}

	_, err := svc.ConfirmPayment(context.Background(), customer.ID, payment.PaymentID)
	if !errors.Is(err, ErrOperationNotSupported) {
		t.Fatalf("expected unsupported confirmation for pix, got: %v", err)
	}
}

func TestGetPaymentEnforcesOwnership(t *testing.T) {
	db, svc := setupPaymentServiceTest(t, nil)
	customer := createTestCustomer(t, db, "")

	payment, err := svc.CreatePaymentIntent(context.Background(), CreatePaymentIntentInput{
		CustomerID: customer.ID,
		Method:     constants.PaymentMethodDebit,
		Amount:     decimal.NewFromInt(10),
	})
	if err != nil {
		t.Fatalf("create intent failed: %v", err)
	}

	if _, err := svc.GetPayment(customer.ID+1, payment.PaymentID); !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("foreign customer must not see the payment, got: %v", err)
	}
}

func TestPaymentTransitionTable(t *testing.T) {
	allowed := []struct{ from, to string }{
		{constants.PaymentStatusPending, constants.PaymentStatusProcessing},
		{constants.PaymentStatusPending, constants.PaymentStatusCompleted},
		{constants.PaymentStatusPending, constants.PaymentStatusFailed},
		{constants.PaymentStatusProcessing, constants.PaymentStatusCompleted},
		{constants.PaymentStatusProcessing, constants.PaymentStatusFailed},
		{constants.PaymentStatusCompleted, constants.PaymentStatusRefunded},
	}
	for _, tc := range allowed {
		if !isTransitionAllowed(tc.from, tc.to) {
			t.Fatalf("transition %s -> %s must be allowed", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to string }{
		{constants.PaymentStatusCompleted, constants.PaymentStatusProcessing},
		{constants.PaymentStatusCompleted, constants.PaymentStatusPending},
		{constants.PaymentStatusFailed, constants.PaymentStatusCompleted},
		{constants.PaymentStatusRefunded, constants.PaymentStatusCompleted},
		{constants.PaymentStatusProcessing, constants.PaymentStatusPending},
	}
	for _, tc := range denied {
		if isTransitionAllowed(tc.from, tc.to) {
			t.Fatalf("transition %s -> %s must be denied", tc.from, tc.to)
		}
	}
}
