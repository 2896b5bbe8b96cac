package service

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nutriplan/payments/internal/config"
	"github.com/nutriplan/payments/internal/constants"
	"github.com/nutriplan/payments/internal/gateway"
	"github.com/nutriplan/payments/internal/gateway/asaas"
	"github.com/nutriplan/payments/internal/gateway/stripe"
	"github.com/nutriplan/payments/internal/logger"
	"github.com/nutriplan/payments/internal/models"
	"github.com/nutriplan/payments/internal/queue"
	"github.com/nutriplan/payments/internal/repository"

	"github.com/hibiken/asynq"
)

const (
	webhookReplayBatch = 50
	webhookReplayDelay = 5 * time.Minute
)

// WebhookService is the reconciliation entry point. Every notification is
// authenticated and persisted before it is processed; the processed flag
// flips only after the whole reconciliation succeeded, so crashed or failed
// rows stay retryable.
type WebhookService struct {
	webhookRepo      repository.PaymentWebhookRepository
	paymentService   *PaymentService
	recurringService *RecurringService
	queueClient      *queue.Client
	gatewayCfg       config.GatewaysConfig
}

// NewWebhookService creates a webhook service.
func NewWebhookService(
	webhookRepo repository.PaymentWebhookRepository,
	paymentService *PaymentService,
	recurringService *RecurringService,
	queueClient *queue.Client,
	gatewayCfg config.GatewaysConfig,
) *WebhookService {
	if strings.TrimSpace(gatewayCfg.Stripe.WebhookSecret) == "" {
		logger.Warnw("payment_webhook_verification_disabled", "provider", constants.PaymentProviderStripe)
	}
	if strings.TrimSpace(gatewayCfg.Asaas.WebhookToken) == "" {
		logger.Warnw("payment_webhook_verification_disabled", "provider", constants.PaymentProviderAsaas)
	}
	return &WebhookService{
		webhookRepo:      webhookRepo,
		paymentService:   paymentService,
		recurringService: recurringService,
		queueClient:      queueClient,
		gatewayCfg:       gatewayCfg,
	}
}

// HandleWebhook ingests a provider notification. A processing failure is
// recorded on the row and swallowed so the provider gets its ack and the
// row can be replayed; only an ingestion failure propagates.
func (s *WebhookService) HandleWebhook(provider string, headers http.Header, body []byte) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	switch provider {
	case constants.PaymentProviderStripe, constants.PaymentProviderAsaas:
	default:
		return fmt.Errorf("%w: unknown provider %q", ErrValidation, provider)
	}

	if err := s.verify(provider, headers, body); err != nil {
		logger.Warnw("payment_webhook_verify_failed", "provider", provider, "error", err)
		return err
	}

	var payload models.JSON
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrWebhookPayloadInvalid, err)
	}

	webhook := &models.PaymentWebhook{
		Provider:   provider,
		EventType:  readEnvelopeEventType(provider, payload),
		EventID:    readEnvelopeEventID(payload),
		Payload:    payload,
		ReceivedAt: time.Now(),
	}
	if err := s.webhookRepo.Create(webhook); err != nil {
		logger.Errorw("payment_webhook_persist_failed", "provider", provider, "error", err)
		return fmt.Errorf("%w: %v", ErrWebhookPersistFailed, err)
	}

	if err := s.process(provider, payload); err != nil {
		logger.Warnw("payment_webhook_process_failed",
			"provider", provider,
			"webhook_id", webhook.ID,
			"event_type", webhook.EventType,
			"error", err,
		)
		if markErr := s.webhookRepo.MarkFailed(webhook.ID, err.Error()); markErr != nil {
			logger.Errorw("payment_webhook_mark_failed_error", "webhook_id", webhook.ID, "error", markErr)
		}
		s.scheduleReplay()
		return nil
	}

	if err := s.webhookRepo.MarkProcessed(webhook.ID, time.Now()); err != nil {
		logger.Errorw("payment_webhook_mark_processed_error", "webhook_id", webhook.ID, "error", err)
		return nil
	}
	logger.Infow("payment_webhook_processed",
		"provider", provider,
		"webhook_id", webhook.ID,
		"event_type", webhook.EventType,
	)
	return nil
}

// verify authenticates the notification before anything is persisted. A
// provider without a configured webhook credential stays unverified, mirroring
// how a provider with missing API credentials stays unbound.
func (s *WebhookService) verify(provider string, headers http.Header, body []byte) error {
	switch provider {
	case constants.PaymentProviderStripe:
		secret := strings.TrimSpace(s.gatewayCfg.Stripe.WebhookSecret)
		if secret == "" {
			return nil
		}
		err := stripe.VerifyWebhookSignature(
			secret,
			headers.Get(stripe.SignatureHeader),
			body,
			s.gatewayCfg.Stripe.WebhookToleranceSeconds,
			time.Now(),
		)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrWebhookUnauthorized, err)
		}
	case constants.PaymentProviderAsaas:
		token := strings.TrimSpace(s.gatewayCfg.Asaas.WebhookToken)
		if token == "" {
			return nil
		}
		if err := asaas.VerifyWebhookToken(token, headers.Get(asaas.WebhookTokenHeader)); err != nil {
			return fmt.Errorf("%w: %v", ErrWebhookUnauthorized, err)
		}
	}
	return nil
}

// scheduleReplay queues a delayed sweep after a processing failure so the
// failed row gets another pass without waiting for the next manual replay.
func (s *WebhookService) scheduleReplay() {
	err := s.queueClient.EnqueueWebhookReplay(
		queue.WebhookReplayPayload{Limit: webhookReplayBatch},
		asynq.ProcessIn(webhookReplayDelay),
	)
	if err != nil {
		logger.Warnw("payment_webhook_replay_enqueue_failed", "error", err)
	}
}

// ListWebhooks lists received notifications for operational inspection.
func (s *WebhookService) ListWebhooks(filter repository.WebhookListFilter) ([]models.PaymentWebhook, int64, error) {
	return s.webhookRepo.List(filter)
}

// ReplayUnprocessed reprocesses rows left with processed=false, returning
// how many succeeded this pass.
func (s *WebhookService) ReplayUnprocessed(limit int) (int, error) {
	webhooks, err := s.webhookRepo.ListUnprocessed(limit)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	succeeded := 0
	for i := range webhooks {
		webhook := &webhooks[i]
		if err := s.process(webhook.Provider, webhook.Payload); err != nil {
			logger.Warnw("payment_webhook_replay_failed",
				"webhook_id", webhook.ID,
				"provider", webhook.Provider,
				"error", err,
			)
			if markErr := s.webhookRepo.MarkFailed(webhook.ID, err.Error()); markErr != nil {
				logger.Errorw("payment_webhook_mark_failed_error", "webhook_id", webhook.ID, "error", markErr)
			}
			continue
		}
		if err := s.webhookRepo.MarkProcessed(webhook.ID, time.Now()); err != nil {
			logger.Errorw("payment_webhook_mark_processed_error", "webhook_id", webhook.ID, "error", err)
			continue
		}
		succeeded++
	}
	if len(webhooks) > 0 {
		logger.Infow("payment_webhook_replay_done", "total", len(webhooks), "succeeded", succeeded)
	}
	return succeeded, nil
}

func (s *WebhookService) process(provider string, payload models.JSON) error {
	event, err := s.classify(provider, payload)
	if err != nil {
		return err
	}

	switch event.Kind {
	case gateway.EventKindSubscription:
		return s.recurringService.ApplySubscriptionEvent(event.SubscriptionID, event.Status, event.NextBillingDate)
	case gateway.EventKindPayment:
		metadata := models.JSON{
			constants.MetadataKeyGatewayEvent: event.EventType,
		}
		if event.Amount != "" {
			metadata[constants.MetadataKeyGatewayAmount] = event.Amount
		}
		if err := s.paymentService.ApplyGatewayEvent(event.PaymentID, event.GatewayRef, event.Status, metadata); err != nil {
			return err
		}
		// A charge under a subscription also moves the agreement.
		if event.SubscriptionID != "" {
			if recurringStatus, ok := recurringStatusFromPayment(event.Status); ok {
				return s.recurringService.ApplySubscriptionEvent(event.SubscriptionID, recurringStatus, event.NextBillingDate)
			}
		}
		return nil
	default:
		logger.Debugw("payment_webhook_ignored", "provider", provider, "event_type", event.EventType)
		return nil
	}
}

func (s *WebhookService) classify(provider string, payload models.JSON) (*gateway.WebhookEvent, error) {
	var event *gateway.WebhookEvent
	var err error
	switch provider {
	case constants.PaymentProviderStripe:
		event, err = stripe.ParseWebhookEvent(payload)
	case constants.PaymentProviderAsaas:
		event, err = asaas.ParseWebhookEvent(payload)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrValidation, provider)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWebhookPayloadInvalid, err)
	}
	return event, nil
}

// recurringStatusFromPayment derives the subscription movement implied by a
// charge outcome. Settled charges keep the agreement active, failed ones
// push it past due; everything else leaves it alone.
func recurringStatusFromPayment(paymentStatus string) (string, bool) {
	switch paymentStatus {
	case constants.PaymentStatusCompleted:
		return constants.RecurringStatusActive, true
	case constants.PaymentStatusFailed:
		return constants.RecurringStatusPastDue, true
	default:
		return "", false
	}
}

func readEnvelopeEventType(provider string, payload models.JSON) string {
	key := "type"
	if provider == constants.PaymentProviderAsaas {
		key = "event"
	}
	if value, ok := payload[key].(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func readEnvelopeEventID(payload models.JSON) string {
	if value, ok := payload["id"].(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}
