package worker

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/nutriplan/payments/internal/logger"
	"github.com/nutriplan/payments/internal/provider"
	"github.com/nutriplan/payments/internal/queue"

	"github.com/hibiken/asynq"
)

// Consumer handles async tasks.
type Consumer struct {
	*provider.Container
}

// NewConsumer creates a consumer.
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register registers task handlers.
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskPaymentStatusNotify, c.handlePaymentStatusNotify)
	mux.HandleFunc(queue.TaskWebhookReplay, c.handleWebhookReplay)
}

// handlePaymentStatusNotify resolves the settled payment and emits the
// notification event. Delivery itself belongs to the notification platform,
// this worker only produces the structured event.
func (c *Consumer) handlePaymentStatusNotify(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_payment_notify_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.PaymentStatusNotifyPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_payment_notify_unmarshal_failed", "error", err)
		return err
	}
	if strings.TrimSpace(payload.PaymentID) == "" {
		logger.Debugw("worker_payment_notify_skip_invalid_payload")
		return nil
	}

	payment, err := c.PaymentRepo.GetByPaymentID(payload.PaymentID)
	if err != nil {
		logger.Warnw("worker_payment_notify_fetch_failed", "payment_id", payload.PaymentID, "error", err)
		return err
	}
	if payment == nil {
		logger.Debugw("worker_payment_notify_skip_not_found", "payment_id", payload.PaymentID)
		return nil
	}

	customer, err := c.CustomerRepo.GetByID(payment.CustomerID)
	if err != nil {
		logger.Warnw("worker_payment_notify_fetch_customer_failed",
			"payment_id", payment.PaymentID,
			"customer_id", payment.CustomerID,
			"error", err,
		)
		return err
	}
	customerEmail := ""
	if customer != nil {
		customerEmail = strings.TrimSpace(customer.Email)
	}

	logger.Infow("payment_status_notification",
		"payment_id", payment.PaymentID,
		"customer_id", payment.CustomerID,
		"customer_email", customerEmail,
		"provider", payment.Provider,
		"method", payment.Method,
		"amount", payment.Amount.String(),
		"currency", payment.Currency,
		"status", payment.Status,
	)
	return nil
}

// handleWebhookReplay reprocesses webhook rows left unprocessed.
func (c *Consumer) handleWebhookReplay(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_webhook_replay_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.WebhookReplayPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_webhook_replay_unmarshal_failed", "error", err)
		return err
	}
	if c.WebhookService == nil {
		logger.Warnw("worker_webhook_replay_skip_service_nil")
		return nil
	}
	_, err := c.WebhookService.ReplayUnprocessed(payload.Limit)
	if err != nil {
		logger.Warnw("worker_webhook_replay_failed", "error", err)
		return err
	}
	return nil
}
