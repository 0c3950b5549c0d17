package services

import "errors"

var (
	ErrSellNotFound          = errors.New("order not found")
	ErrTransactionNotFound   = errors.New("transaction not found")
	ErrUnknownProvider       = errors.New("unknown payment provider")
	ErrProviderNotConfigured = errors.New("payment method not available")
	ErrProviderRequest       = errors.New("payment provider request failed")
	ErrInvalidCallback       = errors.New("invalid callback payload")
	ErrAmountMismatch        = errors.New("callback amount does not match transaction")
	ErrSellNotPayable        = errors.New("order cannot be paid")
	ErrDuplicatePayment      = errors.New("order already paid by another transaction")
	ErrRefundNotAllowed      = errors.New("refund not allowed")
	ErrCallbackInFlight      = errors.New("callback already being processed")
	ErrForbidden             = errors.New("forbidden")
	ErrInvalidCredentials    = errors.New("invalid credentials")
)
