package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nutriplan/payments/internal/constants"
	"github.com/nutriplan/payments/internal/models"
	"github.com/nutriplan/payments/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupCardServiceTest(t *testing.T) (*gorm.DB, *CardService) {
	t.Helper()
	dsn := fmt.Sprintf("file:card_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open test db failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Customer{}, &models.PaymentCard{}); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	svc := NewCardService(
		repository.NewPaymentCardRepository(db),
		repository.NewCustomerRepository(db),
	)
	return db, svc
}

func validCardInput(token string) AddCardInput {
	return AddCardInput{
		Provider:    constants.PaymentProviderStripe,
		Token:       token,
		Brand:       "Visa",
		LastDigits:  "4242",
		ExpiryMonth: 12,
		ExpiryYear:  time.Now().Year() + 2,
		HolderName:  "Test Holder",
	}
}

func TestAddCardFirstBecomesDefault(t *testing.T) {
	db, svc := setupCardServiceTest(t)
	customer := createTestCustomer(t, db, "")

	first, err := svc.AddCard(customer.ID, validCardInput("pm_1"))
	if err != nil {
		t.Fatalf("add card failed: %v", err)
	}
	if !first.DefaultCard {
		t.Fatalf("first card must become the default")
	}
	if first.Brand != "visa" {
		t.Fatalf("brand must be normalized, got: %s", first.Brand)
	}

	second, err := svc.AddCard(customer.ID, validCardInput("pm_2"))
	if err != nil {
		t.Fatalf("add card failed: %v", err)
	}
	if second.DefaultCard {
		t.Fatalf("second card must not steal the default")
	}
}

func TestAddCardExplicitDefaultSwaps(t *testing.T) {
	db, svc := setupCardServiceTest(t)
	customer := createTestCustomer(t, db, "")

	first, err := svc.AddCard(customer.ID, validCardInput("pm_1"))
	if err != nil {
		t.Fatalf("add card failed: %v", err)
	}

	input := validCardInput("pm_2")
	input.SetDefault = true
	second, err := svc.AddCard(customer.ID, input)
	if err != nil {
		t.Fatalf("add card failed: %v", err)
	}
	if !second.DefaultCard {
		t.Fatalf("explicit default must apply")
	}

	cards, err := svc.ListCards(customer.ID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	for _, card := range cards {
		if card.ID == first.ID && card.DefaultCard {
			t.Fatalf("old default must be cleared")
		}
	}
}

func TestAddCardValidation(t *testing.T) {
	db, svc := setupCardServiceTest(t)
	customer := createTestCustomer(t, db, "")

	input := validCardInput("")
	if _, err := svc.AddCard(customer.ID, input); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected token validation, got: %v", err)
	}

	input = validCardInput("pm_1")
	input.LastDigits = "42"
	if _, err := svc.AddCard(customer.ID, input); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected last digits validation, got: %v", err)
	}

	input = validCardInput("pm_1")
	input.ExpiryMonth = 13
	if _, err := svc.AddCard(customer.ID, input); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected expiry month validation, got: %v", err)
	}

	input = validCardInput("pm_1")
	input.ExpiryYear = time.Now().Year() - 1
	if _, err := svc.AddCard(customer.ID, input); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected expired card rejection, got: %v", err)
	}

	if _, err := svc.AddCard(customer.ID+100, validCardInput("pm_1")); !errors.Is(err, ErrCustomerNotFound) {
		t.Fatalf("expected customer not found, got: %v", err)
	}
}

func TestSetDefaultCardOwnership(t *testing.T) {
	db, svc := setupCardServiceTest(t)
	owner := createTestCustomer(t, db, "")
	other := createTestCustomer(t, db, "")

	card, err := svc.AddCard(owner.ID, validCardInput("pm_1"))
	if err != nil {
		t.Fatalf("add card failed: %v", err)
	}

	if err := svc.SetDefaultCard(other.ID, card.ID); !errors.Is(err, ErrCardNotFound) {
		t.Fatalf("foreign customer must not set default, got: %v", err)
	}
	if err := svc.SetDefaultCard(owner.ID, card.ID); err != nil {
		t.Fatalf("owner set default failed: %v", err)
	}
}

func TestDeleteCard(t *testing.T) {
	db, svc := setupCardServiceTest(t)
	owner := createTestCustomer(t, db, "")
	other := createTestCustomer(t, db, "")

	card, err := svc.AddCard(owner.ID, validCardInput("pm_1"))
	if err != nil {
		t.Fatalf("add card failed: %v", err)
	}

	if err := svc.DeleteCard(other.ID, card.ID); !errors.Is(err, ErrCardNotFound) {
		t.Fatalf("foreign customer must not delete, got: %v", err)
	}
	if err := svc.DeleteCard(owner.ID, card.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	cards, err := svc.ListCards(owner.ID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(cards) != 0 {
		t.Fatalf("expected no cards after delete, got %d", len(cards))
	}
}
