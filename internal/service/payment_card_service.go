package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/nutriplan/payments/internal/logger"
	"github.com/nutriplan/payments/internal/models"
	"github.com/nutriplan/payments/internal/repository"
)

// CardService manages stored cards and the single-default invariant.
type CardService struct {
	cardRepo     repository.PaymentCardRepository
	customerRepo repository.CustomerRepository
}

// NewCardService creates a card service.
func NewCardService(cardRepo repository.PaymentCardRepository, customerRepo repository.CustomerRepository) *CardService {
	return &CardService{cardRepo: cardRepo, customerRepo: customerRepo}
}

// AddCardInput is the card registration request.
type AddCardInput struct {
	Provider    string
	Token       string
	Brand       string
	LastDigits  string
	ExpiryMonth int
	ExpiryYear  int
	HolderName  string
	SetDefault  bool
}

// AddCard stores a tokenized card. The first card of a customer becomes the
// default automatically, an explicit default swaps atomically.
func (s *CardService) AddCard(customerID uint, input AddCardInput) (*models.PaymentCard, error) {
	if strings.TrimSpace(input.Token) == "" {
		return nil, fmt.Errorf("%w: card token is required", ErrValidation)
	}
	if len(strings.TrimSpace(input.LastDigits)) != 4 {
		return nil, fmt.Errorf("%w: last digits must have 4 characters", ErrValidation)
	}
	if input.ExpiryMonth < 1 || input.ExpiryMonth > 12 {
		return nil, fmt.Errorf("%w: expiry month is invalid", ErrValidation)
	}
	if input.ExpiryYear < time.Now().Year() {
		return nil, fmt.Errorf("%w: card is expired", ErrValidation)
	}

	customer, err := s.customerRepo.GetByID(customerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if customer == nil {
		return nil, ErrCustomerNotFound
	}

	existing, err := s.cardRepo.ListByCustomerID(customerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	card := &models.PaymentCard{
		CustomerID:  customerID,
		Provider:    strings.ToLower(strings.TrimSpace(input.Provider)),
		Token:       strings.TrimSpace(input.Token),
		Brand:       strings.ToLower(strings.TrimSpace(input.Brand)),
		LastDigits:  strings.TrimSpace(input.LastDigits),
		ExpiryMonth: input.ExpiryMonth,
		ExpiryYear:  input.ExpiryYear,
		HolderName:  strings.TrimSpace(input.HolderName),
	}
	if err := s.cardRepo.Create(card); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if input.SetDefault || len(existing) == 0 {
		if err := s.cardRepo.SetDefault(customerID, card.ID); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		card.DefaultCard = true
	}

	logger.Infow("card_added",
		"customer_id", customerID,
		"card_id", card.ID,
		"brand", card.Brand,
		"default", card.DefaultCard,
	)
	return card, nil
}

// ListCards lists a customer's stored cards.
func (s *CardService) ListCards(customerID uint) ([]models.PaymentCard, error) {
	return s.cardRepo.ListByCustomerID(customerID)
}

// SetDefaultCard swaps the customer's default card.
func (s *CardService) SetDefaultCard(customerID uint, cardID uint) error {
	card, err := s.cardRepo.GetByID(cardID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if card == nil || card.CustomerID != customerID {
		return ErrCardNotFound
	}
	return s.cardRepo.SetDefault(customerID, cardID)
}

// DeleteCard removes a stored card.
func (s *CardService) DeleteCard(customerID uint, cardID uint) error {
	card, err := s.cardRepo.GetByID(cardID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if card == nil || card.CustomerID != customerID {
		return ErrCardNotFound
	}
	if err := s.cardRepo.Delete(cardID); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	logger.Infow("card_deleted", "customer_id", customerID, "card_id", cardID)
	return nil
}
