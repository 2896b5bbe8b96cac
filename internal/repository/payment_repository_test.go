package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/nutriplan/payments/internal/constants"
	"github.com/nutriplan/payments/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupPaymentRepoTest(t *testing.T) (*gorm.DB, *GormPaymentRepository) {
	t.Helper()
	dsn := fmt.Sprintf("file:payment_repo_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open test db failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Payment{}); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	return db, NewPaymentRepository(db)
}

func newTestPayment(customerID uint, paymentID, provider, method, status, description string, amount string) *models.Payment {
	value, _ := decimal.NewFromString(amount)
	return &models.Payment{
		PaymentID:   paymentID,
		CustomerID:  customerID,
		Provider:    provider,
		Method:      method,
		Amount:      models.NewMoneyFromDecimal(value),
		Currency:    constants.CurrencyDefault,
		Status:      status,
		Description: description,
	}
}

func TestPaymentRepositoryGetByPaymentID(t *testing.T) {
	_, repo := setupPaymentRepoTest(t)

	payment := newTestPayment(1, "pay-uuid-1", constants.PaymentProviderStripe, constants.PaymentMethodCard, constants.PaymentStatusPending, "order", "10.00")
	if err := repo.Create(payment); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	found, err := repo.GetByPaymentID("pay-uuid-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if found == nil || found.ID != payment.ID {
		t.Fatalf("expected payment, got: %+v", found)
	}

	missing, err := repo.GetByPaymentID("pay-uuid-none")
	if err != nil {
		t.Fatalf("get missing failed: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing payment, got: %+v", missing)
	}
}

func TestPaymentRepositoryGetLatestByGatewayRef(t *testing.T) {
	_, repo := setupPaymentRepoTest(t)

	older := newTestPayment(1, "pay-uuid-1", constants.PaymentProviderAsaas, constants.PaymentMethodPix, constants.PaymentStatusFailed, "", "10.00")
	older.GatewayRef = "pay_asaas_1"
	newer := newTestPayment(1, "pay-uuid-2", constants.PaymentProviderAsaas, constants.PaymentMethodPix, constants.PaymentStatusPending, "", "10.00")
	newer.GatewayRef = "pay_asaas_1"
	if err := repo.Create(older); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := repo.Create(newer); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	found, err := repo.GetLatestByGatewayRef("pay_asaas_1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if found == nil || found.ID != newer.ID {
		t.Fatalf("expected the newest row, got: %+v", found)
	}

	if found, err := repo.GetLatestByGatewayRef(""); err != nil || found != nil {
		t.Fatalf("expected nil for empty ref, got: %+v (err %v)", found, err)
	}
}

func TestPaymentRepositoryUpdateStatusMetadata(t *testing.T) {
	_, repo := setupPaymentRepoTest(t)

	payment := newTestPayment(1, "pay-uuid-1", constants.PaymentProviderStripe, constants.PaymentMethodCard, constants.PaymentStatusPending, "", "10.00")
	payment.Metadata = models.JSON{"created": "yes"}
	if err := repo.Create(payment); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	paidAt := time.Now()
	metadata := payment.Metadata.Merge(models.JSON{"gateway_event": "payment_intent.succeeded"})
	if err := repo.UpdateStatusMetadata(payment.ID, constants.PaymentStatusCompleted, metadata, &paidAt, "pi_backfilled"); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	updated, err := repo.GetByID(payment.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if updated.Status != constants.PaymentStatusCompleted {
		t.Fatalf("unexpected status: %s", updated.Status)
	}
	if updated.GatewayRef != "pi_backfilled" {
		t.Fatalf("expected gateway ref backfill, got: %s", updated.GatewayRef)
	}
	if updated.PaidAt == nil {
		t.Fatalf("expected paid_at to be set")
	}
	if updated.Metadata["created"] != "yes" || updated.Metadata["gateway_event"] != "payment_intent.succeeded" {
		t.Fatalf("unexpected metadata: %v", updated.Metadata)
	}

	// Empty gateway ref must leave the column untouched.
	if err := repo.UpdateStatusMetadata(payment.ID, constants.PaymentStatusCompleted, metadata, nil, ""); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	updated, err = repo.GetByID(payment.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if updated.GatewayRef != "pi_backfilled" {
		t.Fatalf("gateway ref must survive empty update, got: %s", updated.GatewayRef)
	}
}

func TestPaymentRepositorySearchFilters(t *testing.T) {
	_, repo := setupPaymentRepoTest(t)

	rows := []*models.Payment{
		newTestPayment(1, "pay-a", constants.PaymentProviderStripe, constants.PaymentMethodCard, constants.PaymentStatusCompleted, "premium plan", "59.90"),
		newTestPayment(1, "pay-b", constants.PaymentProviderAsaas, constants.PaymentMethodPix, constants.PaymentStatusPending, "basic plan", "29.90"),
		newTestPayment(2, "pay-c", constants.PaymentProviderStripe, constants.PaymentMethodCard, constants.PaymentStatusFailed, "premium plan", "59.90"),
	}
	for _, row := range rows {
		if err := repo.Create(row); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	payments, total, err := repo.Search(PaymentSearchFilter{CustomerID: 1})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if total != 2 || len(payments) != 2 {
		t.Fatalf("expected 2 rows for customer 1, got total %d len %d", total, len(payments))
	}

	payments, total, err = repo.Search(PaymentSearchFilter{CustomerID: 1, Provider: constants.PaymentProviderAsaas})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if total != 1 || payments[0].PaymentID != "pay-b" {
		t.Fatalf("unexpected provider filter result: total %d rows %+v", total, payments)
	}

	payments, total, err = repo.Search(PaymentSearchFilter{Status: constants.PaymentStatusCompleted})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if total != 1 || payments[0].PaymentID != "pay-a" {
		t.Fatalf("unexpected status filter result: total %d", total)
	}

	_, total, err = repo.Search(PaymentSearchFilter{Search: "premium"})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 rows matching description, got %d", total)
	}

	minAmount := decimal.RequireFromString("50.00")
	_, total, err = repo.Search(PaymentSearchFilter{AmountMin: &minAmount})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2 rows above 50.00, got %d", total)
	}

	future := time.Now().Add(time.Hour)
	_, total, err = repo.Search(PaymentSearchFilter{CreatedFrom: &future})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if total != 0 {
		t.Fatalf("expected no rows created in the future, got %d", total)
	}
}

func TestPaymentRepositorySearchPagination(t *testing.T) {
	_, repo := setupPaymentRepoTest(t)

	for i := 0; i < 5; i++ {
		row := newTestPayment(1, fmt.Sprintf("pay-%d", i), constants.PaymentProviderStripe, constants.PaymentMethodCard, constants.PaymentStatusPending, "", "10.00")
		if err := repo.Create(row); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	payments, total, err := repo.Search(PaymentSearchFilter{CustomerID: 1, Page: 2, PageSize: 2})
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if total != 5 {
		t.Fatalf("expected total 5, got %d", total)
	}
	if len(payments) != 2 {
		t.Fatalf("expected page of 2, got %d", len(payments))
	}
	// Newest first, so page 2 holds pay-2 and pay-1.
	if payments[0].PaymentID != "pay-2" || payments[1].PaymentID != "pay-1" {
		t.Fatalf("unexpected page content: %s, %s", payments[0].PaymentID, payments[1].PaymentID)
	}
}
