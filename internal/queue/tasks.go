package queue

import (
	"encoding/json"

	"github.com/nutriplan/payments/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskPaymentStatusNotify fan-out after a payment lands a settled status
	TaskPaymentStatusNotify = constants.TaskPaymentStatusNotify
	// TaskWebhookReplay retries webhook rows left unprocessed
	TaskWebhookReplay = constants.TaskWebhookReplay
)

// PaymentStatusNotifyPayload is the settled-payment notification payload.
type PaymentStatusNotifyPayload struct {
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
}

// WebhookReplayPayload is the webhook replay payload.
type WebhookReplayPayload struct {
	Limit int `json:"limit"`
}

// NewPaymentStatusNotifyTask creates a settled-payment notification task.
func NewPaymentStatusNotifyTask(payload PaymentStatusNotifyPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPaymentStatusNotify, body), nil
}

// NewWebhookReplayTask creates a webhook replay task.
func NewWebhookReplayTask(payload WebhookReplayPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskWebhookReplay, body), nil
}
