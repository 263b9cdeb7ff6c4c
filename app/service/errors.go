package service

import "errors"

var (
	ErrInvalidRequest         = errors.New("invalid request")
	ErrOrderNotFound          = errors.New("order not found")
	ErrPaymentNotFound        = errors.New("payment not found")
	ErrSignatureInvalid       = errors.New("payment verification failed")
	ErrConflictingTransition  = errors.New("conflicting payment transition")
	ErrGatewayUnavailable     = errors.New("payment gateway unavailable")
	ErrMalformedEvent         = errors.New("malformed gateway event")
	ErrOrderNotCancellable    = errors.New("order can no longer be cancelled")
	ErrRefundNotAllowed       = errors.New("refund not allowed")
	ErrVerificationIncomplete = errors.New("payment not completed at gateway")
)
