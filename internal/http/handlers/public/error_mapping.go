package public

import (
	"errors"

	"github.com/nutriplan/payments/internal/http/response"
	"github.com/nutriplan/payments/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError maps a business error to an API error response.
type mappedHandlerError struct {
	target error
	code   int
	msg    string
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackMsg string) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			respondError(c, rule.code, rule.msg, nil)
			return
		}
	}
	respondError(c, fallbackCode, fallbackMsg, err)
}

func concatMappedHandlerErrors(groups ...[]mappedHandlerError) []mappedHandlerError {
	total := 0
	for _, group := range groups {
		total += len(group)
	}
	result := make([]mappedHandlerError, 0, total)
	for _, group := range groups {
		result = append(result, group...)
	}
	return result
}

var gatewayErrorRules = []mappedHandlerError{
	{target: service.ErrOperationNotSupported, code: response.CodeBadRequest, msg: "operation not supported for this payment method"},
	{target: service.ErrGatewayConfigInvalid, code: response.CodeBadRequest, msg: "payment provider configuration invalid"},
	{target: service.ErrGatewayRequestFailed, code: response.CodeBadGateway, msg: "payment provider request failed"},
	{target: service.ErrGatewayResponseInvalid, code: response.CodeBadGateway, msg: "payment provider response invalid"},
}

var paymentCreateErrorRules = []mappedHandlerError{
	{target: service.ErrValidation, code: response.CodeBadRequest, msg: "payment request invalid"},
	{target: service.ErrCustomerNotFound, code: response.CodeNotFound, msg: "customer not found"},
	{target: service.ErrCardNotFound, code: response.CodeNotFound, msg: "card not found"},
}

var paymentConfirmErrorRules = []mappedHandlerError{
	{target: service.ErrValidation, code: response.CodeBadRequest, msg: "payment request invalid"},
	{target: service.ErrPaymentNotFound, code: response.CodeNotFound, msg: "payment not found"},
	{target: service.ErrInvalidStatusTransition, code: response.CodeConflict, msg: "payment status does not allow this operation"},
}

var paymentRefundErrorRules = []mappedHandlerError{
	{target: service.ErrValidation, code: response.CodeBadRequest, msg: "refund request invalid"},
	{target: service.ErrPaymentNotFound, code: response.CodeNotFound, msg: "payment not found"},
	{target: service.ErrInvalidStatusTransition, code: response.CodeConflict, msg: "only completed payments can be refunded"},
}

var cardErrorRules = []mappedHandlerError{
	{target: service.ErrValidation, code: response.CodeBadRequest, msg: "card request invalid"},
	{target: service.ErrCustomerNotFound, code: response.CodeNotFound, msg: "customer not found"},
	{target: service.ErrCardNotFound, code: response.CodeNotFound, msg: "card not found"},
}

var subscriptionCreateErrorRules = []mappedHandlerError{
	{target: service.ErrValidation, code: response.CodeBadRequest, msg: "subscription request invalid"},
	{target: service.ErrCustomerNotFound, code: response.CodeNotFound, msg: "customer not found"},
	{target: service.ErrPlanNotFound, code: response.CodeNotFound, msg: "plan not found"},
	{target: service.ErrPlanInactive, code: response.CodeBadRequest, msg: "plan is not active"},
	{target: service.ErrRecurringExists, code: response.CodeConflict, msg: "customer already has an active subscription"},
	{target: service.ErrCardNotFound, code: response.CodeNotFound, msg: "card not found"},
}

func respondPaymentCreateError(c *gin.Context, err error) {
	respondWithMappedError(c, err, concatMappedHandlerErrors(paymentCreateErrorRules, gatewayErrorRules), response.CodeInternal, "payment creation failed")
}

func respondPaymentConfirmError(c *gin.Context, err error) {
	respondWithMappedError(c, err, concatMappedHandlerErrors(paymentConfirmErrorRules, gatewayErrorRules), response.CodeInternal, "payment confirmation failed")
}

func respondPaymentRefundError(c *gin.Context, err error) {
	respondWithMappedError(c, err, concatMappedHandlerErrors(paymentRefundErrorRules, gatewayErrorRules), response.CodeInternal, "payment refund failed")
}

func respondSubscriptionCreateError(c *gin.Context, err error) {
	respondWithMappedError(c, err, concatMappedHandlerErrors(subscriptionCreateErrorRules, gatewayErrorRules), response.CodeInternal, "subscription creation failed")
}
