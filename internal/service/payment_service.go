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
	"github.com/nutriplan/payments/internal/queue"
	"github.com/nutriplan/payments/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentService orchestrates payment intents against the gateways.
type PaymentService struct {
	paymentRepo  repository.PaymentRepository
	customerRepo repository.CustomerRepository
	cardRepo     repository.PaymentCardRepository
	gateways     *gateway.Registry
	queueClient  *queue.Client
	cfg          config.PaymentConfig
}

// NewPaymentService creates a payment service.
func NewPaymentService(
	paymentRepo repository.PaymentRepository,
	customerRepo repository.CustomerRepository,
	cardRepo repository.PaymentCardRepository,
	gateways *gateway.Registry,
	queueClient *queue.Client,
	cfg config.PaymentConfig,
) *PaymentService {
	return &PaymentService{
		paymentRepo:  paymentRepo,
		customerRepo: customerRepo,
		cardRepo:     cardRepo,
		gateways:     gateways,
		queueClient:  queueClient,
		cfg:          cfg,
	}
}

// CreatePaymentIntentInput is the intent creation request.
type CreatePaymentIntentInput struct {
	CustomerID  uint
	Method      string
	Amount      decimal.Decimal
	Description string
	CardID      *uint // nil uses the default card for card methods
}

// CreatePaymentIntent persists a PENDING payment row and then drives the
// gateway. The row always exists before any external call, so a timed-out
// or failed call leaves a pending payment the webhooks can still settle.
func (s *PaymentService) CreatePaymentIntent(ctx context.Context, input CreatePaymentIntentInput) (*models.Payment, error) {
	method := strings.ToLower(strings.TrimSpace(input.Method))
	switch method {
	case constants.PaymentMethodCard, constants.PaymentMethodDebit, constants.PaymentMethodPix:
	default:
		return nil, fmt.Errorf("%w: unknown payment method %q", ErrValidation, input.Method)
	}
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: amount must be greater than zero", ErrValidation)
	}

	customer, err := s.customerRepo.GetByID(input.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentCreateFailed, err)
	}
	if customer == nil {
		return nil, ErrCustomerNotFound
	}

	gw := s.gateways.ForMethod(method)
	provider := ""
	if gw != nil {
		provider = gw.Provider()
	}

	payment := &models.Payment{
		PaymentID:   uuid.NewString(),
		CustomerID:  customer.ID,
		Provider:    provider,
		Method:      method,
		Amount:      models.NewMoneyFromDecimal(input.Amount),
		Currency:    constants.CurrencyDefault,
		Status:      constants.PaymentStatusPending,
		Description: strings.TrimSpace(input.Description),
		Metadata:    models.JSON{},
	}
	if err := s.paymentRepo.Create(payment); err != nil {
		logger.Errorw("payment_create_failed", "customer_id", customer.ID, "method", method, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrPaymentCreateFailed, err)
	}

	if gw == nil {
		// Known gap: the intent stays pending and never reaches a provider.
		logger.Warnw("payment_method_gap",
			"payment_id", payment.PaymentID,
			"method", method,
		)
		return payment, nil
	}

	switch method {
	case constants.PaymentMethodPix:
		if err := s.createPixCharge(ctx, gw, customer, payment); err != nil {
			return nil, err
		}
	default:
		if err := s.createCardCharge(ctx, gw, customer, payment, input.CardID); err != nil {
			return nil, err
		}
	}

	logger.Infow("payment_create_success",
		"payment_id", payment.PaymentID,
		"customer_id", customer.ID,
		"provider", payment.Provider,
		"method", method,
		"amount", payment.Amount.String(),
		"status", payment.Status,
	)
	return payment, nil
}

func (s *PaymentService) createPixCharge(ctx context.Context, gw gateway.Gateway, customer *models.Customer, payment *models.Payment) error {
	providerCustomerID := customer.ProviderCustomerID(gw.Provider())
	if providerCustomerID == "" {
		return fmt.Errorf("%w: customer %d has no %s registration", ErrValidation, customer.ID, gw.Provider())
	}

	expireMinutes := s.cfg.PixExpireMinutes
	if expireMinutes <= 0 {
		expireMinutes = 30
	}
	expiresAt := time.Now().Add(time.Duration(expireMinutes) * time.Minute)

	callCtx, cancel := s.gatewayContext(ctx)
	defer cancel()
	result, err := gw.CreatePixCharge(callCtx, gateway.PixChargeInput{
		PaymentID:          payment.PaymentID,
		ProviderCustomerID: providerCustomerID,
		Amount:             payment.Amount.String(),
		Currency:           payment.Currency,
		Description:        payment.Description,
		ExpiresAt:          expiresAt,
	})
	if err != nil {
		logger.Warnw("payment_pix_charge_failed", "payment_id", payment.PaymentID, "error", err)
		return s.wrapGatewayError(err)
	}

	payment.GatewayRef = result.GatewayRef
	payment.ExpiresAt = result.ExpiresAt
	payment.Metadata = payment.Metadata.Merge(models.JSON{
		constants.MetadataKeyPixQRCode:  result.QRCodeImage,
		constants.MetadataKeyPixPayload: result.Payload,
		constants.MetadataKeyPixKey:     result.PixKey,
	})
	if result.ExpiresAt != nil {
		payment.Metadata[constants.MetadataKeyPixExpiresAt] = result.ExpiresAt.Format(time.RFC3339)
	}
	if result.Status != "" && result.Status != payment.Status && isTransitionAllowed(payment.Status, result.Status) {
		payment.Status = result.Status
	}
	if err := s.paymentRepo.Update(payment); err != nil {
		return fmt.Errorf("%w: %v", ErrPaymentUpdateFailed, err)
	}
	return nil
}

func (s *PaymentService) createCardCharge(ctx context.Context, gw gateway.Gateway, customer *models.Customer, payment *models.Payment, cardID *uint) error {
	card, err := s.resolveCard(customer.ID, cardID)
	if err != nil {
		return err
	}
	providerCustomerID := customer.ProviderCustomerID(gw.Provider())

	callCtx, cancel := s.gatewayContext(ctx)
	defer cancel()
	result, err := gw.CreateCardPayment(callCtx, gateway.CardChargeInput{
		PaymentID:          payment.PaymentID,
		ProviderCustomerID: providerCustomerID,
		CardToken:          card.Token,
		Amount:             payment.Amount.String(),
		Currency:           payment.Currency,
		Description:        payment.Description,
	})
	if err != nil {
		logger.Warnw("payment_card_charge_failed", "payment_id", payment.PaymentID, "error", err)
		return s.wrapGatewayError(err)
	}

	payment.GatewayRef = result.GatewayRef
	payment.Metadata = payment.Metadata.Merge(models.JSON{
		constants.MetadataKeyGatewayStatus: result.Status,
	})
	if result.Status != payment.Status && isTransitionAllowed(payment.Status, result.Status) {
		payment.Status = result.Status
		if result.Status == constants.PaymentStatusCompleted {
			now := time.Now()
			payment.PaidAt = &now
		}
	}
	if err := s.paymentRepo.Update(payment); err != nil {
		return fmt.Errorf("%w: %v", ErrPaymentUpdateFailed, err)
	}
	return nil
}

// ConfirmPayment confirms a card payment that required an extra step.
// PIX charges settle through webhooks only.
func (s *PaymentService) ConfirmPayment(ctx context.Context, customerID uint, paymentID string) (*models.Payment, error) {
	payment, err := s.getOwnedPayment(customerID, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Method == constants.PaymentMethodPix {
		return nil, fmt.Errorf("%w: pix payments settle asynchronously", ErrOperationNotSupported)
	}
	if payment.Status != constants.PaymentStatusPending && payment.Status != constants.PaymentStatusProcessing {
		return nil, fmt.Errorf("%w: payment is %s", ErrInvalidStatusTransition, payment.Status)
	}
	if payment.GatewayRef == "" {
		return nil, fmt.Errorf("%w: payment never reached the gateway", ErrOperationNotSupported)
	}

	gw := s.gateways.ForProvider(payment.Provider)
	if gw == nil {
		return nil, fmt.Errorf("%w: no adapter for provider %s", ErrGatewayConfigInvalid, payment.Provider)
	}

	callCtx, cancel := s.gatewayContext(ctx)
	defer cancel()
	result, err := gw.ConfirmCardPayment(callCtx, payment.GatewayRef)
	if err != nil {
		logger.Warnw("payment_confirm_failed", "payment_id", payment.PaymentID, "error", err)
		return nil, s.wrapGatewayError(err)
	}

	if err := s.applyStatusUpdate(payment, result.Status, models.JSON{
		constants.MetadataKeyGatewayStatus: result.Status,
	}, ""); err != nil {
		return nil, err
	}
	logger.Infow("payment_confirm_success", "payment_id", payment.PaymentID, "status", payment.Status)
	return payment, nil
}

// RefundPayment refunds a completed payment. The local status flips only
// after the provider accepted the refund.
func (s *PaymentService) RefundPayment(ctx context.Context, customerID uint, paymentID string, amount *decimal.Decimal, reason string) (*models.Payment, error) {
	payment, err := s.getOwnedPayment(customerID, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != constants.PaymentStatusCompleted {
		return nil, fmt.Errorf("%w: only completed payments can be refunded, payment is %s", ErrInvalidStatusTransition, payment.Status)
	}

	gw := s.gateways.ForProvider(payment.Provider)
	if gw == nil {
		return nil, fmt.Errorf("%w: no adapter for provider %s", ErrGatewayConfigInvalid, payment.Provider)
	}

	refundAmount := ""
	if amount != nil {
		if amount.LessThanOrEqual(decimal.Zero) || amount.GreaterThan(payment.Amount.Decimal) {
			return nil, fmt.Errorf("%w: refund amount out of range", ErrValidation)
		}
		refundAmount = amount.Round(2).StringFixed(2)
	}

	callCtx, cancel := s.gatewayContext(ctx)
	defer cancel()
	result, err := gw.Refund(callCtx, gateway.RefundInput{
		GatewayRef: payment.GatewayRef,
		Amount:     refundAmount,
		Currency:   payment.Currency,
		Reason:     reason,
	})
	if err != nil {
		logger.Warnw("payment_refund_failed", "payment_id", payment.PaymentID, "error", err)
		return nil, s.wrapGatewayError(err)
	}

	if err := s.applyStatusUpdate(payment, constants.PaymentStatusRefunded, models.JSON{
		constants.MetadataKeyRefundID: result.RefundID,
	}, ""); err != nil {
		return nil, err
	}
	logger.Infow("payment_refund_success", "payment_id", payment.PaymentID, "refund_id", result.RefundID)
	return payment, nil
}

// GetPayment fetches a customer's payment by correlation id.
func (s *PaymentService) GetPayment(customerID uint, paymentID string) (*models.Payment, error) {
	return s.getOwnedPayment(customerID, paymentID)
}

// SearchPayments lists payments by filter.
func (s *PaymentService) SearchPayments(filter repository.PaymentSearchFilter) ([]models.Payment, int64, error) {
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	if filter.PageSize > 100 {
		filter.PageSize = 100
	}
	return s.paymentRepo.Search(filter)
}

// UpdatePaymentStatus applies a reconciled status by correlation id. An
// unknown id is a silent no-op so replays and foreign events never fail.
func (s *PaymentService) UpdatePaymentStatus(paymentID string, status string, metadata models.JSON) error {
	payment, err := s.paymentRepo.GetByPaymentID(paymentID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPaymentUpdateFailed, err)
	}
	if payment == nil {
		logger.Debugw("payment_status_update_unknown_id", "payment_id", paymentID)
		return nil
	}
	return s.applyStatusUpdate(payment, status, metadata, "")
}

// ApplyGatewayEvent applies a webhook-derived status. Correlation id wins,
// gateway ref is the fallback; both unknown is a logged no-op.
func (s *PaymentService) ApplyGatewayEvent(paymentID, gatewayRef, status string, metadata models.JSON) error {
	payment, err := s.paymentRepo.GetByPaymentID(paymentID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPaymentUpdateFailed, err)
	}
	if payment == nil {
		payment, err = s.paymentRepo.GetLatestByGatewayRef(gatewayRef)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPaymentUpdateFailed, err)
		}
	}
	if payment == nil {
		logger.Debugw("payment_event_unmatched", "payment_id", paymentID, "gateway_ref", gatewayRef)
		return nil
	}
	backfillRef := ""
	if payment.GatewayRef == "" && strings.TrimSpace(gatewayRef) != "" {
		backfillRef = strings.TrimSpace(gatewayRef)
	}
	return s.applyStatusUpdate(payment, status, metadata, backfillRef)
}

// applyStatusUpdate enforces the forward-only state machine and merges
// metadata last-write-wins. A replay of the current status converges by
// merging metadata only; a disallowed transition is ignored with a log.
func (s *PaymentService) applyStatusUpdate(payment *models.Payment, status string, metadata models.JSON, backfillRef string) error {
	merged := payment.Metadata.Merge(metadata)

	if status == payment.Status {
		if err := s.paymentRepo.UpdateStatusMetadata(payment.ID, payment.Status, merged, nil, backfillRef); err != nil {
			return fmt.Errorf("%w: %v", ErrPaymentUpdateFailed, err)
		}
		payment.Metadata = merged
		logger.Debugw("payment_status_replay", "payment_id", payment.PaymentID, "status", status)
		return nil
	}

	if !isTransitionAllowed(payment.Status, status) {
		logger.Warnw("payment_status_transition_ignored",
			"payment_id", payment.PaymentID,
			"from", payment.Status,
			"to", status,
		)
		return nil
	}

	var paidAt *time.Time
	if status == constants.PaymentStatusCompleted {
		now := time.Now()
		paidAt = &now
	}
	if err := s.paymentRepo.UpdateStatusMetadata(payment.ID, status, merged, paidAt, backfillRef); err != nil {
		return fmt.Errorf("%w: %v", ErrPaymentUpdateFailed, err)
	}
	payment.Status = status
	payment.Metadata = merged
	if paidAt != nil {
		payment.PaidAt = paidAt
	}
	if backfillRef != "" {
		payment.GatewayRef = backfillRef
	}
	logger.Infow("payment_status_updated", "payment_id", payment.PaymentID, "status", status)

	s.notifySettled(payment)
	return nil
}

func (s *PaymentService) notifySettled(payment *models.Payment) {
	switch payment.Status {
	case constants.PaymentStatusCompleted, constants.PaymentStatusFailed, constants.PaymentStatusRefunded:
	default:
		return
	}
	if err := s.queueClient.EnqueuePaymentStatusNotify(queue.PaymentStatusNotifyPayload{
		PaymentID: payment.PaymentID,
		Status:    payment.Status,
	}); err != nil {
		logger.Warnw("payment_notify_enqueue_failed", "payment_id", payment.PaymentID, "error", err)
	}
}

func (s *PaymentService) getOwnedPayment(customerID uint, paymentID string) (*models.Payment, error) {
	payment, err := s.paymentRepo.GetByPaymentID(paymentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentUpdateFailed, err)
	}
	if payment == nil || (customerID != 0 && payment.CustomerID != customerID) {
		return nil, ErrPaymentNotFound
	}
	return payment, nil
}

func (s *PaymentService) resolveCard(customerID uint, cardID *uint) (*models.PaymentCard, error) {
	var card *models.PaymentCard
	var err error
	if cardID != nil {
		card, err = s.cardRepo.GetByID(*cardID)
	} else {
		card, err = s.cardRepo.GetDefaultByCustomerID(customerID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentCreateFailed, err)
	}
	if card == nil || card.CustomerID != customerID {
		return nil, ErrCardNotFound
	}
	return card, nil
}

func (s *PaymentService) gatewayContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	timeout := time.Duration(s.cfg.GatewayTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

func (s *PaymentService) wrapGatewayError(err error) error {
	if errors.Is(err, gateway.ErrUnsupportedOperation) {
		return fmt.Errorf("%w: %v", ErrOperationNotSupported, err)
	}
	return fmt.Errorf("%w: %v", ErrGatewayRequestFailed, err)
}

// isTransitionAllowed is the payment state machine. PENDING can progress or
// fail, PROCESSING can settle, COMPLETED can only be refunded, FAILED and
// REFUNDED are terminal.
func isTransitionAllowed(from, to string) bool {
	switch from {
	case constants.PaymentStatusPending:
		return to == constants.PaymentStatusProcessing ||
			to == constants.PaymentStatusCompleted ||
			to == constants.PaymentStatusFailed
	case constants.PaymentStatusProcessing:
		return to == constants.PaymentStatusCompleted ||
			to == constants.PaymentStatusFailed
	case constants.PaymentStatusCompleted:
		return to == constants.PaymentStatusRefunded
	default:
		return false
	}
}
