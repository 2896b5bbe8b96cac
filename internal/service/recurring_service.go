package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nutriplan/payments/internal/config"
	"github.com/nutriplan/payments/internal/constants"
	"github.com/nutriplan/payments/internal/gateway"
	"github.com/nutriplan/payments/internal/logger"
	"github.com/nutriplan/payments/internal/models"
	"github.com/nutriplan/payments/internal/repository"

	"github.com/google/uuid"
)

// RecurringService orchestrates subscription agreements.
type RecurringService struct {
	recurringRepo repository.PaymentRecurringRepository
	customerRepo  repository.CustomerRepository
	cardRepo      repository.PaymentCardRepository
	planService   *PlanService
	gateways      *gateway.Registry
	cfg           config.PaymentConfig
}

// NewRecurringService creates a recurring payment service.
func NewRecurringService(
	recurringRepo repository.PaymentRecurringRepository,
	customerRepo repository.CustomerRepository,
	cardRepo repository.PaymentCardRepository,
	planService *PlanService,
	gateways *gateway.Registry,
	cfg config.PaymentConfig,
) *RecurringService {
	return &RecurringService{
		recurringRepo: recurringRepo,
		customerRepo:  customerRepo,
		cardRepo:      cardRepo,
		planService:   planService,
		gateways:      gateways,
		cfg:           cfg,
	}
}

// CreateSubscriptionInput is the subscription creation request.
type CreateSubscriptionInput struct {
	CustomerID        uint
	PlanCode          string
	Method            string // card or pix
	CardID            *uint  // nil uses the default card for card methods
	ChargeImmediately bool
}

// CreateSubscription creates a subscription on the provider bound to the
// requested method. A customer holds at most one active subscription.
func (s *RecurringService) CreateSubscription(ctx context.Context, input CreateSubscriptionInput) (*models.PaymentRecurring, error) {
	method := strings.ToLower(strings.TrimSpace(input.Method))
	switch method {
	case constants.PaymentMethodCard, constants.PaymentMethodPix:
	default:
		return nil, fmt.Errorf("%w: unknown subscription method %q", ErrValidation, input.Method)
	}

	customer, err := s.customerRepo.GetByID(input.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if customer == nil {
		return nil, ErrCustomerNotFound
	}

	active, err := s.HasActiveRecurringPayment(customer.ID, time.Now())
	if err != nil {
		return nil, err
	}
	if active {
		return nil, ErrRecurringExists
	}

	plan, err := s.planService.GetActivePlanByCode(input.PlanCode)
	if err != nil {
		return nil, err
	}

	gw := s.gateways.ForMethod(method)
	if gw == nil {
		return nil, fmt.Errorf("%w: no adapter for method %s", ErrGatewayConfigInvalid, method)
	}
	providerCustomerID := customer.ProviderCustomerID(gw.Provider())
	if providerCustomerID == "" {
		return nil, fmt.Errorf("%w: customer %d has no %s registration", ErrValidation, customer.ID, gw.Provider())
	}

	var card *models.PaymentCard
	cardToken := ""
	if method == constants.PaymentMethodCard {
		card, err = s.resolveCard(customer.ID, input.CardID)
		if err != nil {
			return nil, err
		}
		cardToken = card.Token
	}

	planRef := plan.StripePriceID
	if gw.Provider() == constants.PaymentProviderAsaas {
		planRef = plan.AsaasPlanID
	}

	timeout := time.Duration(s.cfg.GatewayTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if ctx == nil {
		ctx = context.Background()
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := gw.CreateSubscription(callCtx, gateway.SubscriptionInput{
		PaymentID:          uuid.NewString(),
		ProviderCustomerID: providerCustomerID,
		CardToken:          cardToken,
		PlanRef:            planRef,
		Amount:             plan.Amount.String(),
		Currency:           plan.Currency,
		Interval:           plan.Interval,
		Description:        plan.Name,
		ChargeImmediately:  input.ChargeImmediately,
	})
	if err != nil {
		logger.Warnw("recurring_create_failed",
			"customer_id", customer.ID,
			"plan_code", plan.Code,
			"error", err,
		)
		if errors.Is(err, gateway.ErrUnsupportedOperation) {
			return nil, fmt.Errorf("%w: %v", ErrOperationNotSupported, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrGatewayRequestFailed, err)
	}

	recurring := &models.PaymentRecurring{
		CustomerID:            customer.ID,
		PlanID:                plan.ID,
		Provider:              gw.Provider(),
		Method:                method,
		Status:                result.Status,
		GatewaySubscriptionID: result.GatewaySubscriptionID,
		NextBillingDate:       result.NextBillingDate,
		Metadata:              models.JSON{},
	}
	if card != nil {
		recurring.CardID = &card.ID
	}
	if err := s.recurringRepo.Create(recurring); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	logger.Infow("recurring_create_success",
		"customer_id", customer.ID,
		"plan_code", plan.Code,
		"gateway_subscription_id", recurring.GatewaySubscriptionID,
		"status", recurring.Status,
	)
	return recurring, nil
}

// HasActiveRecurringPayment reports whether the customer has an ACTIVE
// subscription whose next billing date is unset or not in the past.
func (s *RecurringService) HasActiveRecurringPayment(customerID uint, refDate time.Time) (bool, error) {
	recurring, err := s.recurringRepo.GetActiveByCustomer(customerID, truncateToDay(refDate))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return recurring != nil, nil
}

// GetActiveSubscription fetches the customer's active subscription.
func (s *RecurringService) GetActiveSubscription(customerID uint) (*models.PaymentRecurring, error) {
	recurring, err := s.recurringRepo.GetActiveByCustomer(customerID, truncateToDay(time.Now()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if recurring == nil {
		return nil, ErrRecurringNotFound
	}
	return recurring, nil
}

// ListSubscriptions lists a customer's subscriptions.
func (s *RecurringService) ListSubscriptions(customerID uint) ([]models.PaymentRecurring, error) {
	return s.recurringRepo.ListByCustomerID(customerID)
}

// ApplySubscriptionEvent applies a webhook-derived subscription status keyed
// by the gateway subscription id. Unknown ids and downgrades are logged
// no-ops, a replay of the current status only refreshes the billing date.
func (s *RecurringService) ApplySubscriptionEvent(subscriptionID string, status string, nextBillingDate *time.Time) error {
	recurring, err := s.recurringRepo.GetByGatewaySubscriptionID(subscriptionID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if recurring == nil {
		logger.Debugw("recurring_event_unmatched", "gateway_subscription_id", subscriptionID)
		return nil
	}

	if nextBillingDate != nil {
		recurring.NextBillingDate = nextBillingDate
	}

	if status != recurring.Status {
		if !isRecurringTransitionAllowed(recurring.Status, status) {
			logger.Warnw("recurring_status_transition_ignored",
				"gateway_subscription_id", subscriptionID,
				"from", recurring.Status,
				"to", status,
			)
			return nil
		}
		recurring.Status = status
		if status == constants.RecurringStatusCancelled {
			now := time.Now()
			recurring.CancelledAt = &now
		}
	}

	if err := s.recurringRepo.Update(recurring); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	logger.Infow("recurring_status_updated",
		"gateway_subscription_id", subscriptionID,
		"status", recurring.Status,
	)
	return nil
}

func (s *RecurringService) resolveCard(customerID uint, cardID *uint) (*models.PaymentCard, error) {
	var card *models.PaymentCard
	var err error
	if cardID != nil {
		card, err = s.cardRepo.GetByID(*cardID)
	} else {
		card, err = s.cardRepo.GetDefaultByCustomerID(customerID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if card == nil || card.CustomerID != customerID {
		return nil, ErrCardNotFound
	}
	return card, nil
}

// isRecurringTransitionAllowed is the subscription state machine. CANCELLED
// and EXPIRED are terminal, PAST_DUE can recover to ACTIVE.
func isRecurringTransitionAllowed(from, to string) bool {
	switch from {
	case constants.RecurringStatusPending:
		return to == constants.RecurringStatusActive ||
			to == constants.RecurringStatusPastDue ||
			to == constants.RecurringStatusCancelled ||
			to == constants.RecurringStatusExpired
	case constants.RecurringStatusActive:
		return to == constants.RecurringStatusPastDue ||
			to == constants.RecurringStatusCancelled ||
			to == constants.RecurringStatusExpired
	case constants.RecurringStatusPastDue:
		return to == constants.RecurringStatusActive ||
			to == constants.RecurringStatusCancelled ||
			to == constants.RecurringStatusExpired
	default:
		return false
	}
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
