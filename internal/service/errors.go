package service

import "errors"

// Business errors shared across services. Handlers map these to response
// codes, services wrap them with %w when adding detail.
var (
	ErrValidation              = errors.New("validation failed")
	ErrCustomerNotFound        = errors.New("customer not found")
	ErrPaymentNotFound         = errors.New("payment not found")
	ErrCardNotFound            = errors.New("card not found")
	ErrPlanNotFound            = errors.New("plan not found")
	ErrPlanInactive            = errors.New("plan inactive")
	ErrRecurringNotFound       = errors.New("recurring payment not found")
	ErrRecurringExists         = errors.New("active recurring payment exists")
	ErrOperationNotSupported   = errors.New("operation not supported")
	ErrInvalidStatusTransition = errors.New("invalid payment status transition")
	ErrGatewayRequestFailed    = errors.New("gateway request failed")
	ErrGatewayResponseInvalid  = errors.New("gateway response invalid")
	ErrGatewayConfigInvalid    = errors.New("gateway config invalid")
	ErrPaymentCreateFailed     = errors.New("payment create failed")
	ErrPaymentUpdateFailed     = errors.New("payment update failed")
	ErrWebhookPayloadInvalid   = errors.New("webhook payload invalid")
	ErrWebhookPersistFailed    = errors.New("webhook persist failed")
	ErrWebhookUnauthorized     = errors.New("webhook authentication failed")
)
