package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/nutriplan/payments/internal/constants"
	"github.com/nutriplan/payments/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupCardRepoTest(t *testing.T) (*gorm.DB, *GormPaymentCardRepository) {
	t.Helper()
	dsn := fmt.Sprintf("file:card_repo_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open test db failed: %v", err)
	}
	if err := db.AutoMigrate(&models.PaymentCard{}); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	return db, NewPaymentCardRepository(db)
}

func newTestCard(customerID uint, lastDigits string, defaultCard bool) *models.PaymentCard {
	return &models.PaymentCard{
		CustomerID:  customerID,
		Provider:    constants.PaymentProviderStripe,
		Token:       "pm_" + lastDigits,
		Brand:       "visa",
		LastDigits:  lastDigits,
		ExpiryMonth: 12,
		ExpiryYear:  2030,
		DefaultCard: defaultCard,
	}
}

func TestCardRepositorySetDefaultSwapsAtomically(t *testing.T) {
	_, repo := setupCardRepoTest(t)

	first := newTestCard(1, "1111", true)
	second := newTestCard(1, "2222", false)
	other := newTestCard(2, "3333", true)
	for _, card := range []*models.PaymentCard{first, second, other} {
		if err := repo.Create(card); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	if err := repo.SetDefault(1, second.ID); err != nil {
		t.Fatalf("set default failed: %v", err)
	}

	cards, err := repo.ListByCustomerID(1)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	defaults := 0
	for _, card := range cards {
		if card.DefaultCard {
			defaults++
			if card.ID != second.ID {
				t.Fatalf("wrong card is default: %d", card.ID)
			}
		}
	}
	if defaults != 1 {
		t.Fatalf("expected exactly one default card, got %d", defaults)
	}

	// Another customer's default card is untouched.
	otherCard, err := repo.GetDefaultByCustomerID(2)
	if err != nil {
		t.Fatalf("get default failed: %v", err)
	}
	if otherCard == nil || otherCard.ID != other.ID {
		t.Fatalf("other customer's default was disturbed: %+v", otherCard)
	}
}

func TestCardRepositoryListOrdersDefaultFirst(t *testing.T) {
	_, repo := setupCardRepoTest(t)

	first := newTestCard(1, "1111", false)
	second := newTestCard(1, "2222", true)
	for _, card := range []*models.PaymentCard{first, second} {
		if err := repo.Create(card); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	cards, err := repo.ListByCustomerID(1)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(cards) != 2 || !cards[0].DefaultCard {
		t.Fatalf("expected default card first, got: %+v", cards)
	}
}

func TestCardRepositoryDeleteSoftDeletes(t *testing.T) {
	_, repo := setupCardRepoTest(t)

	card := newTestCard(1, "1111", true)
	if err := repo.Create(card); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := repo.Delete(card.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	found, err := repo.GetByID(card.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if found != nil {
		t.Fatalf("expected deleted card to be invisible, got: %+v", found)
	}

	cards, err := repo.ListByCustomerID(1)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(cards) != 0 {
		t.Fatalf("expected empty list after delete, got %d", len(cards))
	}
}
