package public

import (
	"strconv"
	"strings"
	"time"

	"github.com/nutriplan/payments/internal/http/response"
	"github.com/nutriplan/payments/internal/repository"
	"github.com/nutriplan/payments/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// CreatePaymentRequest is the payment intent creation request.
type CreatePaymentRequest struct {
	Method      string `json:"method" binding:"required"`
	Amount      string `json:"amount" binding:"required"`
	Description string `json:"description"`
	CardID      *uint  `json:"card_id"`
}

// ConfirmPaymentRequest confirms a card payment that required an extra step.
type ConfirmPaymentRequest struct {
	PaymentID string `json:"payment_id" binding:"required"`
}

// RefundPaymentRequest is the refund request. Amount empty means full refund.
type RefundPaymentRequest struct {
	Amount string `json:"amount"`
	Reason string `json:"reason"`
}

// CreatePayment creates a payment intent.
func (h *Handler) CreatePayment(c *gin.Context) {
	uid, ok := getCustomerID(c)
	if !ok {
		return
	}

	var req CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		respondError(c, response.CodeBadRequest, "amount invalid", nil)
		return
	}

	payment, err := h.PaymentService.CreatePaymentIntent(c.Request.Context(), service.CreatePaymentIntentInput{
		CustomerID:  uid,
		Method:      req.Method,
		Amount:      amount,
		Description: req.Description,
		CardID:      req.CardID,
	})
	if err != nil {
		respondPaymentCreateError(c, err)
		return
	}
	response.Success(c, payment)
}

// ConfirmPayment confirms a processing card payment on the provider.
func (h *Handler) ConfirmPayment(c *gin.Context) {
	uid, ok := getCustomerID(c)
	if !ok {
		return
	}

	var req ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	payment, err := h.PaymentService.ConfirmPayment(c.Request.Context(), uid, req.PaymentID)
	if err != nil {
		respondPaymentConfirmError(c, err)
		return
	}
	response.Success(c, gin.H{
		"payment_id": payment.PaymentID,
		"status":     payment.Status,
	})
}

// RefundPayment refunds a completed payment.
func (h *Handler) RefundPayment(c *gin.Context) {
	uid, ok := getCustomerID(c)
	if !ok {
		return
	}
	paymentID := strings.TrimSpace(c.Param("payment_id"))
	if paymentID == "" {
		respondError(c, response.CodeBadRequest, "payment id invalid", nil)
		return
	}

	var req RefundPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	var amount *decimal.Decimal
	if strings.TrimSpace(req.Amount) != "" {
		parsed, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
		if err != nil {
			respondError(c, response.CodeBadRequest, "amount invalid", nil)
			return
		}
		amount = &parsed
	}

	payment, err := h.PaymentService.RefundPayment(c.Request.Context(), uid, paymentID, amount, req.Reason)
	if err != nil {
		respondPaymentRefundError(c, err)
		return
	}
	response.Success(c, gin.H{
		"payment_id": payment.PaymentID,
		"status":     payment.Status,
		"metadata":   payment.Metadata,
	})
}

// GetPayment returns a single payment owned by the customer.
func (h *Handler) GetPayment(c *gin.Context) {
	uid, ok := getCustomerID(c)
	if !ok {
		return
	}
	paymentID := strings.TrimSpace(c.Param("payment_id"))
	if paymentID == "" {
		respondError(c, response.CodeBadRequest, "payment id invalid", nil)
		return
	}

	payment, err := h.PaymentService.GetPayment(uid, paymentID)
	if err != nil {
		respondWithMappedError(c, err, paymentConfirmErrorRules, response.CodeInternal, "payment fetch failed")
		return
	}
	response.Success(c, payment)
}

// ListPayments lists the customer's payments with filters and paging.
func (h *Handler) ListPayments(c *gin.Context) {
	uid, ok := getCustomerID(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	filter := repository.PaymentSearchFilter{
		Page:       page,
		PageSize:   pageSize,
		CustomerID: uid,
		Provider:   strings.TrimSpace(c.Query("provider")),
		Method:     strings.TrimSpace(c.Query("method")),
		Status:     strings.TrimSpace(c.Query("status")),
		Search:     strings.TrimSpace(c.Query("search")),
	}
	if raw := strings.TrimSpace(c.Query("created_from")); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(c, response.CodeBadRequest, "created_from invalid", nil)
			return
		}
		filter.CreatedFrom = &parsed
	}
	if raw := strings.TrimSpace(c.Query("created_to")); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(c, response.CodeBadRequest, "created_to invalid", nil)
			return
		}
		filter.CreatedTo = &parsed
	}
	if raw := strings.TrimSpace(c.Query("amount_min")); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			respondError(c, response.CodeBadRequest, "amount_min invalid", nil)
			return
		}
		filter.AmountMin = &parsed
	}
	if raw := strings.TrimSpace(c.Query("amount_max")); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			respondError(c, response.CodeBadRequest, "amount_max invalid", nil)
			return
		}
		filter.AmountMax = &parsed
	}

	payments, total, err := h.PaymentService.SearchPayments(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "payment fetch failed", err)
		return
	}
	pagination := response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	}
	response.SuccessWithPage(c, payments, pagination)
}
