package public

import (
	"strconv"

	"github.com/nutriplan/payments/internal/http/response"
	"github.com/nutriplan/payments/internal/service"

	"github.com/gin-gonic/gin"
)

// AddCardRequest registers a tokenized card.
type AddCardRequest struct {
	Provider    string `json:"provider" binding:"required"`
	Token       string `json:"token" binding:"required"`
	Brand       string `json:"brand"`
	LastDigits  string `json:"last_digits" binding:"required"`
	ExpiryMonth int    `json:"expiry_month" binding:"required"`
	ExpiryYear  int    `json:"expiry_year" binding:"required"`
	HolderName  string `json:"holder_name"`
	SetDefault  bool   `json:"set_default"`
}

// AddCard stores a tokenized card for the customer.
func (h *Handler) AddCard(c *gin.Context) {
	uid, ok := getCustomerID(c)
	if !ok {
		return
	}

	var req AddCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	card, err := h.CardService.AddCard(uid, service.AddCardInput{
		Provider:    req.Provider,
		Token:       req.Token,
		Brand:       req.Brand,
		LastDigits:  req.LastDigits,
		ExpiryMonth: req.ExpiryMonth,
		ExpiryYear:  req.ExpiryYear,
		HolderName:  req.HolderName,
		SetDefault:  req.SetDefault,
	})
	if err != nil {
		respondWithMappedError(c, err, cardErrorRules, response.CodeInternal, "card registration failed")
		return
	}
	response.Success(c, card)
}

// ListCards lists the customer's cards, default first.
func (h *Handler) ListCards(c *gin.Context) {
	uid, ok := getCustomerID(c)
	if !ok {
		return
	}

	cards, err := h.CardService.ListCards(uid)
	if err != nil {
		respondError(c, response.CodeInternal, "card fetch failed", err)
		return
	}
	response.Success(c, cards)
}

// SetDefaultCard swaps the customer's default card.
func (h *Handler) SetDefaultCard(c *gin.Context) {
	uid, ok := getCustomerID(c)
	if !ok {
		return
	}
	cardID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || cardID == 0 {
		respondError(c, response.CodeBadRequest, "card id invalid", nil)
		return
	}

	if err := h.CardService.SetDefaultCard(uid, uint(cardID)); err != nil {
		respondWithMappedError(c, err, cardErrorRules, response.CodeInternal, "card update failed")
		return
	}
	response.Success(c, gin.H{"card_id": cardID, "default_card": true})
}

// DeleteCard removes a stored card.
func (h *Handler) DeleteCard(c *gin.Context) {
	uid, ok := getCustomerID(c)
	if !ok {
		return
	}
	cardID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || cardID == 0 {
		respondError(c, response.CodeBadRequest, "card id invalid", nil)
		return
	}

	if err := h.CardService.DeleteCard(uid, uint(cardID)); err != nil {
		respondWithMappedError(c, err, cardErrorRules, response.CodeInternal, "card delete failed")
		return
	}
	response.Success(c, gin.H{"deleted": true})
}
