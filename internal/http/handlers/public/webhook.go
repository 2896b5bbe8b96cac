package public

import (
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/nutriplan/payments/internal/constants"
	"github.com/nutriplan/payments/internal/http/response"
	"github.com/nutriplan/payments/internal/queue"
	"github.com/nutriplan/payments/internal/repository"
	"github.com/nutriplan/payments/internal/service"

	"github.com/gin-gonic/gin"
)

const webhookLogBodyLimit = 4096

// StripeWebhook ingests Stripe webhook notifications.
func (h *Handler) StripeWebhook(c *gin.Context) {
	h.handleProviderWebhook(c, constants.PaymentProviderStripe)
}

// AsaasWebhook ingests Asaas webhook notifications.
func (h *Handler) AsaasWebhook(c *gin.Context) {
	h.handleProviderWebhook(c, constants.PaymentProviderAsaas)
}

// handleProviderWebhook persists the raw event and acknowledges. Processing
// failures still ack with 200 so the provider stops retrying, the row stays
// unprocessed for replay. Only ingestion failures return an error status.
func (h *Handler) handleProviderWebhook(c *gin.Context, provider string) {
	log := requestLog(c)
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		log.Warnw("payment_webhook_body_read_failed", "provider", provider, "error", err)
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	log.Infow("payment_webhook_received",
		"provider", provider,
		"client_ip", c.ClientIP(),
		"body_size", len(body),
		"raw_body", webhookRawBodyForLog(body),
	)

	if err := h.WebhookService.HandleWebhook(provider, c.Request.Header, body); err != nil {
		switch {
		case errors.Is(err, service.ErrWebhookUnauthorized):
			respondError(c, response.CodeUnauthorized, "webhook authentication failed", nil)
		case errors.Is(err, service.ErrWebhookPayloadInvalid), errors.Is(err, service.ErrValidation):
			respondError(c, response.CodeBadRequest, "webhook payload invalid", nil)
		case errors.Is(err, service.ErrWebhookPersistFailed):
			respondError(c, response.CodeInternal, "webhook ingestion failed", err)
		default:
			respondError(c, response.CodeInternal, "webhook ingestion failed", err)
		}
		return
	}

	response.Success(c, gin.H{"accepted": true})
}

// ListWebhooks lists received notifications for operational inspection.
func (h *Handler) ListWebhooks(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	filter := repository.WebhookListFilter{
		Page:      page,
		PageSize:  pageSize,
		Provider:  strings.TrimSpace(c.Query("provider")),
		EventType: strings.TrimSpace(c.Query("event_type")),
	}
	if raw := strings.TrimSpace(c.Query("processed")); raw != "" {
		processed, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(c, response.CodeBadRequest, "processed invalid", nil)
			return
		}
		filter.Processed = &processed
	}

	webhooks, total, err := h.WebhookService.ListWebhooks(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "webhook fetch failed", err)
		return
	}
	pagination := response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	}
	response.SuccessWithPage(c, webhooks, pagination)
}

// ReplayWebhooksRequest bounds a replay sweep, zero means the default batch.
type ReplayWebhooksRequest struct {
	Limit int `json:"limit"`
}

// ReplayWebhooks sweeps unprocessed rows. With the queue enabled the sweep
// runs on the worker, otherwise it runs inline.
func (h *Handler) ReplayWebhooks(c *gin.Context) {
	var req ReplayWebhooksRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, response.CodeBadRequest, "bad request", err)
			return
		}
	}

	if h.QueueClient.Enabled() {
		if err := h.QueueClient.EnqueueWebhookReplay(queue.WebhookReplayPayload{Limit: req.Limit}); err != nil {
			respondError(c, response.CodeInternal, "webhook replay enqueue failed", err)
			return
		}
		response.Success(c, gin.H{"enqueued": true})
		return
	}

	succeeded, err := h.WebhookService.ReplayUnprocessed(req.Limit)
	if err != nil {
		respondError(c, response.CodeInternal, "webhook replay failed", err)
		return
	}
	response.Success(c, gin.H{"enqueued": false, "succeeded": succeeded})
}

func webhookRawBodyForLog(body []byte) string {
	if len(body) <= webhookLogBodyLimit {
		return string(body)
	}
	return string(body[:webhookLogBodyLimit]) + "...(truncated)"
}
