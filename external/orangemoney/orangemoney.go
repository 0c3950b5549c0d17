package orangemoney

import (
	"context"
	"net/http"

	"StorefrontAPI/internal/model"
	"StorefrontAPI/internal/payment"

	"github.com/shopspring/decimal"
)

const Name = "orange_money"

// No distinct in-flight state: Orange Money only reports INITIATED/PENDING.
var statuses = payment.StatusTable{
	"SUCCESS":     model.StatusCompleted,
	"SUCCESSFUL":  model.StatusCompleted,
	"SUCCESSFULL": model.StatusCompleted,
	"FAILED":      model.StatusFailed,
	"EXPIRED":     model.StatusExpired,
	"CANCELLED":   model.StatusCancelled,
	"CANCELED":    model.StatusCancelled,
	"INITIATED":   model.StatusPending,
	"PENDING":     model.StatusPending,
}

const manualRefundMessage = "orange_money: refunds are not available through the API; " +
	"refund the customer from the Orange Money merchant portal and record it manually"

// Processor talks to the Orange Money web payment API.
type Processor struct {
	cfg    payment.ProviderConfig
	client *http.Client
}

func New(cfg payment.ProviderConfig, client *http.Client) *Processor {
	if client == nil {
		client = payment.NewHTTPClient(Name, 0)
	}
	return &Processor{cfg: cfg, client: client}
}

func (p *Processor) Name() string { return Name }

func (p *Processor) IsConfigured() bool {
	c := p.cfg.Active()
	return c.Key != "" && c.MerchantKey != "" && c.BaseURL != ""
}

func (p *Processor) header() http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+p.cfg.Active().Key)
	return h
}

type paymentRequest struct {
	MerchantKey string `json:"merchant_key"`
	Currency    string `json:"currency"`
	OrderID     string `json:"order_id"`
	Amount      string `json:"amount"`
	ReturnURL   string `json:"return_url"`
	CancelURL   string `json:"cancel_url"`
	NotifURL    string `json:"notif_url"`
	Lang        string `json:"lang"`
	Reference   string `json:"reference"`
}

type paymentResponse struct {
	Status     int    `json:"status"`
	Message    string `json:"message"`
	PayToken   string `json:"pay_token"`
	PaymentURL string `json:"payment_url"`
	NotifToken string `json:"notif_token"`
}

func (p *Processor) CreatePayment(ctx context.Context, sell *model.Sell) payment.CreateResult {
	if !p.IsConfigured() {
		return payment.Failed(Name, "not configured for %s mode", p.cfg.Mode)
	}

	lang := p.cfg.Lang
	if lang == "" {
		lang = "fr"
	}
	req := paymentRequest{
		MerchantKey: p.cfg.Active().MerchantKey,
		Currency:    p.cfg.Currency,
		OrderID:     payment.ClientReference(sell.ID),
		Amount:      sell.TotalPayableAmount.StringFixed(2),
		ReturnURL:   p.cfg.ReturnURL(Name, sell.ID),
		CancelURL:   p.cfg.CancelURL(Name, sell.ID),
		NotifURL:    p.cfg.WebhookURL(Name),
		Lang:        lang,
		Reference:   "Order " + payment.ClientReference(sell.ID),
	}

	resp, err := payment.DoJSON(ctx, p.client, http.MethodPost, p.cfg.BaseURL()+"/webpayment/v1/paymentRequest", p.header(), req)
	if err != nil {
		return payment.Failed(Name, "payment request failed: %v", err)
	}
	if !resp.OK() {
		return payment.Failed(Name, "payment request rejected with status %d: %s", resp.StatusCode, payment.Snippet(resp.Body))
	}

	var out paymentResponse
	if err := resp.Decode(&out); err != nil {
		return payment.Failed(Name, "malformed payment response: %v", err)
	}
	if out.PayToken == "" || out.PaymentURL == "" {
		return payment.Failed(Name, "payment response missing pay_token or payment_url")
	}

	return payment.CreateResult{
		Success:       true,
		PaymentID:     out.PayToken,
		RedirectURL:   out.PaymentURL,
		Currency:      p.cfg.Currency,
		CallbackToken: out.NotifToken,
		Raw:           resp.Body,
	}
}

type statusRequest struct {
	OrderID  string `json:"order_id"`
	Amount   string `json:"amount"`
	PayToken string `json:"pay_token"`
}

type statusResponse struct {
	Status  string `json:"status"`
	OrderID string `json:"order_id"`
	TxnID   string `json:"txnid"`
}

func (p *Processor) CheckPaymentStatus(ctx context.Context, paymentID string, sell *model.Sell) payment.StatusResult {
	if !p.IsConfigured() {
		return payment.StatusFailed(Name, "not configured for %s mode", p.cfg.Mode)
	}

	req := statusRequest{
		OrderID:  payment.ClientReference(sell.ID),
		Amount:   sell.TotalPayableAmount.StringFixed(2),
		PayToken: paymentID,
	}
	resp, err := payment.DoJSON(ctx, p.client, http.MethodPost, p.cfg.BaseURL()+"/webpayment/v1/transactionstatus", p.header(), req)
	if err != nil {
		return payment.StatusFailed(Name, "status request failed: %v", err)
	}
	if !resp.OK() {
		return payment.StatusFailed(Name, "status rejected with status %d: %s", resp.StatusCode, payment.Snippet(resp.Body))
	}

	var out statusResponse
	if err := resp.Decode(&out); err != nil {
		return payment.StatusFailed(Name, "malformed status response: %v", err)
	}
	return payment.StatusResult{
		Success:       true,
		Status:        statuses.Map(out.Status),
		TransactionID: out.TxnID,
		Raw:           resp.Body,
	}
}

func (p *Processor) HandleCallback(payload map[string]any) payment.CallbackResult {
	ref := payment.String(payload, "order_id")
	native := payment.String(payload, "status")
	if ref == "" || native == "" {
		return payment.CallbackFailed(Name, "callback missing order_id or status")
	}
	orderID, err := payment.ParseClientReference(ref)
	if err != nil {
		return payment.CallbackFailed(Name, "%v", err)
	}

	res := payment.CallbackResult{
		Success:       true,
		Status:        statuses.Map(native),
		PaymentID:     payment.String(payload, "pay_token"),
		TransactionID: payment.String(payload, "txnid"),
		OrderID:       orderID,
		CallbackToken: payment.String(payload, "notif_token"),
	}

	amount, err := payment.Decimal(payload, "amount")
	switch {
	case err == nil:
		res.Amount = &amount
	case !payment.IsMissing(err):
		return payment.CallbackFailed(Name, "invalid amount: %v", err)
	}
	return res
}

// RefundPayment always asks for a manual refund.
func (p *Processor) RefundPayment(context.Context, string, decimal.Decimal) payment.RefundResult {
	return payment.RefundResult{
		Error:                 manualRefundMessage,
		ManualProcessRequired: true,
	}
}
