// Package payment defines the contract every payment gateway adapter
// implements, plus the helpers the adapters share: the provider
// configuration block, minor-unit conversion, callback payload accessors
// and the circuit-breaking HTTP transport used for outbound calls.
package payment

import (
	"context"
	"net/http"
	"net/url"

	"StorefrontAPI/internal/model"

	"github.com/shopspring/decimal"
)

// CreateResult is the outcome of opening a provider checkout session.
type CreateResult struct {
	Success     bool
	PaymentID   string
	RedirectURL string
	Currency    string
	// CallbackToken, when set, must be echoed back by the provider's webhook.
	CallbackToken string
	Raw           []byte
	Error         string
}

// StatusResult is the outcome of polling the provider for a payment.
type StatusResult struct {
	Success       bool
	Status        model.TransactionStatus
	TransactionID string
	PayerRef      string
	Raw           []byte
	Error         string
}

// CallbackResult is a validated, normalized webhook or redirect payload.
type CallbackResult struct {
	Success       bool
	Status        model.TransactionStatus
	PaymentID     string
	TransactionID string
	OrderID       int64
	Amount        *decimal.Decimal
	PayerRef      string
	CallbackToken string
	// Verified is set when the payload was authenticated (signature or shared
	// secret). Unverified statuses are confirmed with the provider first.
	Verified bool
	Error    string
}

// RefundResult is the outcome of a refund request.
type RefundResult struct {
	Success               bool
	RefundID              string
	Status                model.TransactionStatus
	Raw                   []byte
	Error                 string
	ManualProcessRequired bool
}

// Processor is implemented once per gateway. Provider failures are reported
// through the Success/Error fields of the results, never as Go errors or
// panics, so callers always get a deterministic branch.
type Processor interface {
	Name() string
	IsConfigured() bool
	CreatePayment(ctx context.Context, sell *model.Sell) CreateResult
	CheckPaymentStatus(ctx context.Context, paymentID string, sell *model.Sell) StatusResult
	// HandleCallback is pure: no network I/O.
	HandleCallback(payload map[string]any) CallbackResult
	RefundPayment(ctx context.Context, paymentID string, amount decimal.Decimal) RefundResult
}

// WebhookVerifier is implemented by processors that can authenticate the raw
// webhook request before its payload is parsed.
type WebhookVerifier interface {
	VerifyWebhook(header http.Header, body []byte) error
}

// RefundStatusChecker is implemented by processors that can report the
// state of a refund that was accepted but not yet settled.
type RefundStatusChecker interface {
	CheckRefundStatus(ctx context.Context, paymentID, refundID string) StatusResult
}

// RedirectParser is implemented by processors whose return URL carries the
// payment reference in a provider-specific query parameter.
type RedirectParser interface {
	ParseRedirect(query url.Values) (paymentID string, orderID int64)
}

// ParseRedirect extracts the payment id / order id from a return query,
// delegating to the processor when it knows its own parameters.
func ParseRedirect(p Processor, query url.Values) (string, int64) {
	if rp, ok := p.(RedirectParser); ok {
		return rp.ParseRedirect(query)
	}
	orderID, _ := ParseClientReference(query.Get("order_id"))
	return query.Get("payment_id"), orderID
}

// Failed builds a failure CreateResult carrying the provider name.
func Failed(provider, format string, args ...any) CreateResult {
	return CreateResult{Error: errorf(provider, format, args...)}
}
