package public

import (
	"errors"

	"github.com/nutriplan/payments/internal/http/response"
	"github.com/nutriplan/payments/internal/service"

	"github.com/gin-gonic/gin"
)

// CreateSubscriptionRequest starts a recurring agreement on a plan.
type CreateSubscriptionRequest struct {
	PlanCode          string `json:"plan_code" binding:"required"`
	Method            string `json:"method" binding:"required"`
	CardID            *uint  `json:"card_id"`
	ChargeImmediately bool   `json:"charge_immediately"`
}

// CreateSubscription creates a subscription for the customer.
func (h *Handler) CreateSubscription(c *gin.Context) {
	uid, ok := getCustomerID(c)
	if !ok {
		return
	}

	var req CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	subscription, err := h.RecurringService.CreateSubscription(c.Request.Context(), service.CreateSubscriptionInput{
		CustomerID:        uid,
		PlanCode:          req.PlanCode,
		Method:            req.Method,
		CardID:            req.CardID,
		ChargeImmediately: req.ChargeImmediately,
	})
	if err != nil {
		respondSubscriptionCreateError(c, err)
		return
	}
	response.Success(c, subscription)
}

// GetActiveSubscription returns the customer's active subscription.
func (h *Handler) GetActiveSubscription(c *gin.Context) {
	uid, ok := getCustomerID(c)
	if !ok {
		return
	}

	subscription, err := h.RecurringService.GetActiveSubscription(uid)
	if err != nil {
		if errors.Is(err, service.ErrRecurringNotFound) {
			respondError(c, response.CodeNotFound, "no active subscription", nil)
			return
		}
		respondError(c, response.CodeInternal, "subscription fetch failed", err)
		return
	}
	response.Success(c, subscription)
}

// ListSubscriptions lists the customer's subscriptions, newest first.
func (h *Handler) ListSubscriptions(c *gin.Context) {
	uid, ok := getCustomerID(c)
	if !ok {
		return
	}

	subscriptions, err := h.RecurringService.ListSubscriptions(uid)
	if err != nil {
		respondError(c, response.CodeInternal, "subscription fetch failed", err)
		return
	}
	response.Success(c, subscriptions)
}
