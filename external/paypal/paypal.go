package paypal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"StorefrontAPI/internal/model"
	"StorefrontAPI/internal/payment"

	sdk "github.com/plutov/paypal/v4"
	"github.com/shopspring/decimal"
)

const Name = "paypal"

var statuses = payment.StatusTable{
	"COMPLETED":             model.StatusCompleted,
	"CREATED":               model.StatusPending,
	"SAVED":                 model.StatusPending,
	"APPROVED":              model.StatusPending,
	"PAYER_ACTION_REQUIRED": model.StatusPending,
	"PENDING":               model.StatusPending,
	"VOIDED":                model.StatusCancelled,
	"CANCELLED":             model.StatusCancelled,
	"DECLINED":              model.StatusFailed,
	"DENIED":                model.StatusFailed,
	"FAILED":                model.StatusFailed,
}

// ordersAPI is the subset of the PayPal SDK client used here.
type ordersAPI interface {
	GetAccessToken(ctx context.Context) (*sdk.TokenResponse, error)
	CreateOrder(ctx context.Context, intent string, units []sdk.PurchaseUnitRequest, source *sdk.PaymentSource, appCtx *sdk.ApplicationContext) (*sdk.Order, error)
	GetOrder(ctx context.Context, orderID string) (*sdk.Order, error)
	CaptureOrder(ctx context.Context, orderID string, req sdk.CaptureOrderRequest) (*sdk.CaptureOrderResponse, error)
	RefundCapture(ctx context.Context, captureID string, req sdk.RefundCaptureRequest) (*sdk.RefundResponse, error)
	NewRequest(ctx context.Context, method, url string, payload interface{}) (*http.Request, error)
	SendWithAuth(req *http.Request, v interface{}) error
}

// Processor drives PayPal Checkout Orders v2 through the SDK.
type Processor struct {
	cfg  payment.ProviderConfig
	api  ordersAPI
	base string

	mu         sync.Mutex
	authorized bool
}

// New builds the SDK client for the active mode. An unconfigured processor
// is still returned; it reports IsConfigured() == false.
func New(cfg payment.ProviderConfig, client *http.Client) *Processor {
	p := &Processor{cfg: cfg}
	if !p.IsConfigured() {
		return p
	}

	base := cfg.BaseURL()
	if base == "" {
		base = sdk.APIBaseSandBox
		if cfg.IsLive() {
			base = sdk.APIBaseLive
		}
	}
	c, err := sdk.NewClient(cfg.Active().ClientID, cfg.Active().Key, base)
	if err != nil {
		return p
	}
	if client == nil {
		client = payment.NewHTTPClient(Name, 0)
	}
	c.Client = client
	p.api = c
	p.base = base
	return p
}

func (p *Processor) Name() string { return Name }

func (p *Processor) IsConfigured() bool {
	c := p.cfg.Active()
	return c.ClientID != "" && c.Key != ""
}

func (p *Processor) currency() string {
	if p.cfg.Currency == "" {
		return "USD"
	}
	return p.cfg.Currency
}

// authorize fetches the first OAuth token; the SDK refreshes it afterwards.
func (p *Processor) authorize(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.authorized {
		return nil
	}
	if _, err := p.api.GetAccessToken(ctx); err != nil {
		return err
	}
	p.authorized = true
	return nil
}

func (p *Processor) ready(ctx context.Context) string {
	if !p.IsConfigured() || p.api == nil {
		return "not configured for " + p.cfg.Mode + " mode"
	}
	if err := p.authorize(ctx); err != nil {
		return "authentication failed: " + err.Error()
	}
	return ""
}

func (p *Processor) CreatePayment(ctx context.Context, sell *model.Sell) payment.CreateResult {
	if msg := p.ready(ctx); msg != "" {
		return payment.Failed(Name, "%s", msg)
	}

	ref := payment.ClientReference(sell.ID)
	units := []sdk.PurchaseUnitRequest{{
		ReferenceID: ref,
		CustomID:    ref,
		Amount: &sdk.PurchaseUnitAmount{
			Currency: p.currency(),
			Value:    sell.TotalPayableAmount.StringFixed(2),
		},
	}}
	appCtx := &sdk.ApplicationContext{
		ReturnURL:  p.cfg.ReturnURL(Name, sell.ID),
		CancelURL:  p.cfg.CancelURL(Name, sell.ID),
		UserAction: "PAY_NOW",
	}

	order, err := p.api.CreateOrder(ctx, sdk.OrderIntentCapture, units, nil, appCtx)
	if err != nil {
		return payment.Failed(Name, "create order failed: %v", err)
	}
	if order == nil || order.ID == "" {
		return payment.Failed(Name, "create order returned no order id")
	}

	approve := ""
	for _, l := range order.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			approve = l.Href
			break
		}
	}
	if approve == "" {
		return payment.Failed(Name, "order %s has no approval link", order.ID)
	}

	raw, _ := json.Marshal(order)
	return payment.CreateResult{
		Success:     true,
		PaymentID:   order.ID,
		RedirectURL: approve,
		Currency:    p.currency(),
		Raw:         raw,
	}
}

// CheckPaymentStatus captures an APPROVED order so that a buyer returning
// from PayPal completes the payment in the same poll.
func (p *Processor) CheckPaymentStatus(ctx context.Context, paymentID string, _ *model.Sell) payment.StatusResult {
	if msg := p.ready(ctx); msg != "" {
		return payment.StatusFailed(Name, "%s", msg)
	}

	order, err := p.api.GetOrder(ctx, paymentID)
	if err != nil {
		return payment.StatusFailed(Name, "get order failed: %v", err)
	}

	if strings.EqualFold(order.Status, "APPROVED") {
		captured, err := p.api.CaptureOrder(ctx, paymentID, sdk.CaptureOrderRequest{})
		if err != nil {
			return payment.StatusFailed(Name, "capture failed: %v", err)
		}
		raw, _ := json.Marshal(captured)
		var captureID string
		if len(captured.PurchaseUnits) > 0 {
			captureID = firstCaptureID(captured.PurchaseUnits[0].Payments)
		}
		return payment.StatusResult{
			Success:       true,
			Status:        statuses.Map(captured.Status),
			TransactionID: captureID,
			Raw:           raw,
		}
	}

	raw, _ := json.Marshal(order)
	return payment.StatusResult{
		Success:       true,
		Status:        statuses.Map(order.Status),
		TransactionID: orderCaptureID(order),
		Raw:           raw,
	}
}

func firstCaptureID(payments *sdk.CapturedPayments) string {
	if payments == nil || len(payments.Captures) == 0 {
		return ""
	}
	return payments.Captures[0].ID
}

func orderCaptureID(order *sdk.Order) string {
	if len(order.PurchaseUnits) == 0 {
		return ""
	}
	return firstCaptureID(order.PurchaseUnits[0].Payments)
}

// HandleCallback parses a webhook event ({event_type, resource}). The order
// reference comes from custom_id, the PayPal order id from related_ids.
func (p *Processor) HandleCallback(payload map[string]any) payment.CallbackResult {
	resource := payment.Map(payload, "resource")
	if resource == nil {
		return payment.CallbackFailed(Name, "callback missing resource")
	}

	unit := firstUnit(resource)
	ref := payment.String(resource, "custom_id")
	if ref == "" && unit != nil {
		ref = payment.String(unit, "custom_id", "reference_id")
	}
	native := payment.String(resource, "status")
	if ref == "" || native == "" {
		return payment.CallbackFailed(Name, "callback missing custom_id or status")
	}
	orderID, err := payment.ParseClientReference(ref)
	if err != nil {
		return payment.CallbackFailed(Name, "%v", err)
	}

	eventType := payment.String(payload, "event_type")
	res := payment.CallbackResult{
		Success: true,
		Status:  statuses.Map(native),
		OrderID: orderID,
	}
	if strings.HasPrefix(eventType, "CHECKOUT.ORDER.") {
		res.PaymentID = payment.String(resource, "id")
	} else {
		res.TransactionID = payment.String(resource, "id")
		if related := payment.Map(payment.Map(resource, "supplementary_data"), "related_ids"); related != nil {
			res.PaymentID = payment.String(related, "order_id")
		}
	}
	if payer := payment.Map(resource, "payer"); payer != nil {
		res.PayerRef = payment.String(payer, "payer_id")
	}

	amountObj := payment.Map(resource, "amount")
	if amountObj == nil && unit != nil {
		amountObj = payment.Map(unit, "amount")
	}
	if amountObj != nil {
		amount, err := payment.Decimal(amountObj, "value")
		switch {
		case err == nil:
			res.Amount = &amount
		case !payment.IsMissing(err):
			return payment.CallbackFailed(Name, "invalid amount: %v", err)
		}
	}
	return res
}

func firstUnit(resource map[string]any) map[string]any {
	units, _ := resource["purchase_units"].([]any)
	if len(units) == 0 {
		return nil
	}
	u, _ := units[0].(map[string]any)
	return u
}

// ParseRedirect reads PayPal's "token" (the order id) from the return URL.
func (p *Processor) ParseRedirect(q url.Values) (string, int64) {
	orderID, _ := payment.ParseClientReference(q.Get("order_id"))
	return q.Get("token"), orderID
}

func (p *Processor) RefundPayment(ctx context.Context, paymentID string, amount decimal.Decimal) payment.RefundResult {
	if msg := p.ready(ctx); msg != "" {
		return payment.RefundFailed(Name, "%s", msg)
	}

	order, err := p.api.GetOrder(ctx, paymentID)
	if err != nil {
		return payment.RefundFailed(Name, "get order failed: %v", err)
	}
	captureID := orderCaptureID(order)
	if captureID == "" {
		return payment.RefundFailed(Name, "order %s has no capture to refund", paymentID)
	}

	refund, err := p.api.RefundCapture(ctx, captureID, sdk.RefundCaptureRequest{
		Amount: &sdk.Money{Currency: p.currency(), Value: amount.StringFixed(2)},
	})
	if err != nil {
		return payment.RefundFailed(Name, "refund failed: %v", err)
	}

	raw, _ := json.Marshal(refund)
	return payment.RefundResult{
		Success:  true,
		RefundID: refund.ID,
		Status:   statuses.Map(refund.Status),
		Raw:      raw,
	}
}

// CheckRefundStatus reads a refund issued earlier. The SDK's GetRefund targets
// the v1 path, so the v2 request is built directly.
func (p *Processor) CheckRefundStatus(ctx context.Context, _ string, refundID string) payment.StatusResult {
	if msg := p.ready(ctx); msg != "" {
		return payment.StatusFailed(Name, "%s", msg)
	}

	req, err := p.api.NewRequest(ctx, http.MethodGet, p.base+"/v2/payments/refunds/"+url.PathEscape(refundID), nil)
	if err != nil {
		return payment.StatusFailed(Name, "build refund request: %v", err)
	}
	var refund sdk.RefundResponse
	if err := p.api.SendWithAuth(req, &refund); err != nil {
		return payment.StatusFailed(Name, "get refund failed: %v", err)
	}

	raw, _ := json.Marshal(refund)
	return payment.StatusResult{
		Success:       true,
		Status:        statuses.Map(refund.Status),
		TransactionID: refund.ID,
		Raw:           raw,
	}
}
