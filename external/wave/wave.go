package wave

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"StorefrontAPI/internal/model"
	"StorefrontAPI/internal/payment"

	"github.com/shopspring/decimal"
)

const Name = "wave"

var statuses = payment.StatusTable{
	"PAID":       model.StatusCompleted,
	"SUCCEEDED":  model.StatusCompleted,
	"COMPLETE":   model.StatusCompleted,
	"COMPLETED":  model.StatusCompleted,
	"PROCESSING": model.StatusProcessing,
	"FAILED":     model.StatusFailed,
	"ERROR":      model.StatusFailed,
	"EXPIRED":    model.StatusExpired,
	"CANCELLED":  model.StatusCancelled,
	"CANCELED":   model.StatusCancelled,
	"OPEN":       model.StatusPending,
	"PENDING":    model.StatusPending,
}

// Processor talks to the Wave checkout API. Amounts cross the wire in minor
// units.
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
	return c.Key != "" && c.BaseURL != ""
}

func (p *Processor) header() http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+p.cfg.Active().Key)
	return h
}

type checkoutRequest struct {
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	ClientReference string `json:"client_reference"`
	SuccessURL      string `json:"success_url"`
	ErrorURL        string `json:"error_url"`
}

type checkoutSession struct {
	ID             string `json:"id"`
	WaveLaunchURL  string `json:"wave_launch_url"`
	CheckoutStatus string `json:"checkout_status"`
	PaymentStatus  string `json:"payment_status"`
	TransactionID  string `json:"transaction_id"`
	ClientRef      string `json:"client_reference"`
}

func (s checkoutSession) status() string {
	if s.PaymentStatus != "" {
		return s.PaymentStatus
	}
	return s.CheckoutStatus
}

func (p *Processor) CreatePayment(ctx context.Context, sell *model.Sell) payment.CreateResult {
	if !p.IsConfigured() {
		return payment.Failed(Name, "not configured for %s mode", p.cfg.Mode)
	}

	req := checkoutRequest{
		Amount:          payment.ToMinorUnits(sell.TotalPayableAmount),
		Currency:        p.cfg.Currency,
		ClientReference: payment.ClientReference(sell.ID),
		SuccessURL:      p.cfg.ReturnURL(Name, sell.ID),
		ErrorURL:        p.cfg.CancelURL(Name, sell.ID),
	}

	resp, err := payment.DoJSON(ctx, p.client, http.MethodPost, p.cfg.BaseURL()+"/checkout/sessions", p.header(), req)
	if err != nil {
		return payment.Failed(Name, "checkout request failed: %v", err)
	}
	if !resp.OK() {
		return payment.Failed(Name, "checkout rejected with status %d: %s", resp.StatusCode, payment.Snippet(resp.Body))
	}

	var session checkoutSession
	if err := resp.Decode(&session); err != nil {
		return payment.Failed(Name, "malformed checkout response: %v", err)
	}
	if session.ID == "" || session.WaveLaunchURL == "" {
		return payment.Failed(Name, "checkout response missing session id or launch url")
	}

	return payment.CreateResult{
		Success:     true,
		PaymentID:   session.ID,
		RedirectURL: session.WaveLaunchURL,
		Currency:    p.cfg.Currency,
		Raw:         resp.Body,
	}
}

func (p *Processor) CheckPaymentStatus(ctx context.Context, paymentID string, _ *model.Sell) payment.StatusResult {
	if !p.IsConfigured() {
		return payment.StatusFailed(Name, "not configured for %s mode", p.cfg.Mode)
	}

	u := p.cfg.BaseURL() + "/checkout/sessions/" + url.PathEscape(paymentID)
	resp, err := payment.DoJSON(ctx, p.client, http.MethodGet, u, p.header(), nil)
	if err != nil {
		return payment.StatusFailed(Name, "status request failed: %v", err)
	}
	if !resp.OK() {
		return payment.StatusFailed(Name, "status rejected with status %d: %s", resp.StatusCode, payment.Snippet(resp.Body))
	}

	var session checkoutSession
	if err := resp.Decode(&session); err != nil {
		return payment.StatusFailed(Name, "malformed status response: %v", err)
	}

	return payment.StatusResult{
		Success:       true,
		Status:        statuses.Map(session.status()),
		TransactionID: session.TransactionID,
		Raw:           resp.Body,
	}
}

// HandleCallback accepts the flat session payload or an event envelope with
// the session under "data".
func (p *Processor) HandleCallback(payload map[string]any) payment.CallbackResult {
	if data := payment.Map(payload, "data"); data != nil {
		payload = data
	}

	ref := payment.String(payload, "client_reference")
	native := payment.String(payload, "status", "payment_status", "checkout_status")
	if ref == "" || native == "" {
		return payment.CallbackFailed(Name, "callback missing client_reference or status")
	}
	orderID, err := payment.ParseClientReference(ref)
	if err != nil {
		return payment.CallbackFailed(Name, "%v", err)
	}

	res := payment.CallbackResult{
		Success:       true,
		Status:        statuses.Map(native),
		PaymentID:     payment.String(payload, "id"),
		TransactionID: payment.String(payload, "transaction_id", "id"),
		OrderID:       orderID,
		Verified:      p.cfg.WebhookSecret != "",
	}

	minor, err := payment.MinorUnits(payload, "amount")
	switch {
	case err == nil:
		amount := payment.FromMinorUnits(minor)
		res.Amount = &amount
	case !payment.IsMissing(err):
		return payment.CallbackFailed(Name, "invalid amount: %v", err)
	}
	return res
}

type refundRequest struct {
	Amount int64 `json:"amount"`
}

type refundResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (p *Processor) RefundPayment(ctx context.Context, paymentID string, amount decimal.Decimal) payment.RefundResult {
	if !p.IsConfigured() {
		return payment.RefundFailed(Name, "not configured for %s mode", p.cfg.Mode)
	}

	u := p.cfg.BaseURL() + "/checkout/sessions/" + url.PathEscape(paymentID) + "/refund"
	resp, err := payment.DoJSON(ctx, p.client, http.MethodPost, u, p.header(), refundRequest{Amount: payment.ToMinorUnits(amount)})
	if err != nil {
		return payment.RefundFailed(Name, "refund request failed: %v", err)
	}
	if !resp.OK() {
		return payment.RefundFailed(Name, "refund rejected with status %d: %s", resp.StatusCode, payment.Snippet(resp.Body))
	}

	var out refundResponse
	if len(resp.Body) > 0 {
		if err := resp.Decode(&out); err != nil {
			return payment.RefundFailed(Name, "malformed refund response: %v", err)
		}
	}

	status := model.StatusCompleted
	if out.Status != "" {
		status = statuses.Map(out.Status)
	}
	return payment.RefundResult{Success: true, RefundID: out.ID, Status: status, Raw: resp.Body}
}

// CheckRefundStatus reads a refund issued with RefundPayment.
func (p *Processor) CheckRefundStatus(ctx context.Context, _ string, refundID string) payment.StatusResult {
	if !p.IsConfigured() {
		return payment.StatusFailed(Name, "not configured for %s mode", p.cfg.Mode)
	}

	resp, err := payment.DoJSON(ctx, p.client, http.MethodGet, p.cfg.BaseURL()+"/refunds/"+url.PathEscape(refundID), p.header(), nil)
	if err != nil {
		return payment.StatusFailed(Name, "refund status request failed: %v", err)
	}
	if !resp.OK() {
		return payment.StatusFailed(Name, "refund status rejected with status %d: %s", resp.StatusCode, payment.Snippet(resp.Body))
	}

	var out refundResponse
	if err := resp.Decode(&out); err != nil {
		return payment.StatusFailed(Name, "malformed refund status response: %v", err)
	}
	return payment.StatusResult{
		Success:       true,
		Status:        statuses.Map(out.Status),
		TransactionID: out.ID,
		Raw:           resp.Body,
	}
}

var (
	errMissingSignature = errors.New("wave: missing Wave-Signature header")
	errBadSignature     = errors.New("wave: webhook signature mismatch")
)

// VerifyWebhook checks "Wave-Signature: t=<ts>,v1=<hex>" where the digest is
// HMAC-SHA256(secret, ts+body). Without a configured secret every webhook is
// accepted.
func (p *Processor) VerifyWebhook(header http.Header, body []byte) error {
	if p.cfg.WebhookSecret == "" {
		return nil
	}
	sig := header.Get("Wave-Signature")
	if sig == "" {
		return errMissingSignature
	}

	var ts string
	var digests []string
	for _, part := range strings.Split(sig, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			digests = append(digests, v)
		}
	}
	if ts == "" || len(digests) == 0 {
		return errBadSignature
	}

	expected := Sign(p.cfg.WebhookSecret, ts, body)
	for _, d := range digests {
		if hmac.Equal([]byte(d), []byte(expected)) {
			return nil
		}
	}
	return errBadSignature
}

// Sign computes the hex webhook digest for a timestamp and body.
func Sign(secret, ts string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
