package main

import (
	"errors"
	"net/http"

	"StorefrontAPI/internal/services"

	"github.com/labstack/echo/v4"
)

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrSellNotFound),
		errors.Is(err, services.ErrTransactionNotFound),
		errors.Is(err, services.ErrUnknownProvider):
		return http.StatusNotFound
	case errors.Is(err, services.ErrInvalidCallback):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrDuplicatePayment),
		errors.Is(err, services.ErrCallbackInFlight):
		return http.StatusConflict
	case errors.Is(err, services.ErrAmountMismatch),
		errors.Is(err, services.ErrSellNotPayable),
		errors.Is(err, services.ErrRefundNotAllowed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, services.ErrProviderNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, services.ErrProviderRequest):
		return http.StatusBadGateway
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// writeError hides unexpected errors behind a generic message; they are
// logged by the request logger.
func writeError(c echo.Context, err error) error {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		c.Set("handler_error", err)
		msg = "internal server error"
	}
	return c.JSON(code, echo.Map{"error": msg})
}
