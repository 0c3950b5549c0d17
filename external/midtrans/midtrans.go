package midtrans

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"StorefrontAPI/internal/model"
	"StorefrontAPI/internal/payment"

	"github.com/google/uuid"
	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/shopspring/decimal"
)

const Name = "midtrans"

var statuses = payment.StatusTable{
	"SETTLEMENT": model.StatusCompleted,
	"CAPTURE":    model.StatusCompleted,
	"PENDING":    model.StatusPending,
	"AUTHORIZE":  model.StatusPending,
	"DENY":       model.StatusFailed,
	"FAILURE":    model.StatusFailed,
	"CANCEL":     model.StatusCancelled,
	"EXPIRE":     model.StatusExpired,
}

// mapStatus holds a card capture flagged by fraud detection as pending.
func mapStatus(transactionStatus, fraudStatus string) model.TransactionStatus {
	if strings.EqualFold(transactionStatus, "capture") && fraudStatus != "" && !strings.EqualFold(fraudStatus, "accept") {
		return model.StatusPending
	}
	return statuses.Map(transactionStatus)
}

type snapAPI interface {
	CreateTransaction(req *snap.Request) (*snap.Response, *midtrans.Error)
}

type coreAPI interface {
	CheckTransaction(param string) (*coreapi.TransactionStatusResponse, *midtrans.Error)
	RefundTransaction(param string, req *coreapi.RefundReq) (*coreapi.RefundResponse, *midtrans.Error)
}

// Processor uses Snap for checkout and the Core API for status and refunds.
type Processor struct {
	cfg  payment.ProviderConfig
	snap snapAPI
	core coreAPI
}

func New(cfg payment.ProviderConfig) *Processor {
	env := midtrans.Sandbox
	if cfg.IsLive() {
		env = midtrans.Production
	}

	var s snap.Client
	s.New(cfg.Active().Key, env)
	var c coreapi.Client
	c.New(cfg.Active().Key, env)

	return &Processor{cfg: cfg, snap: &s, core: &c}
}

func (p *Processor) Name() string { return Name }

func (p *Processor) IsConfigured() bool {
	return p.cfg.Active().Key != ""
}

func (p *Processor) CreatePayment(_ context.Context, sell *model.Sell) payment.CreateResult {
	if !p.IsConfigured() {
		return payment.Failed(Name, "not configured for %s mode", p.cfg.Mode)
	}

	if !wholeRupiah(sell.TotalPayableAmount) {
		return payment.Failed(Name, "IDR amount %s has a fractional part", sell.TotalPayableAmount)
	}

	externalRef := fmt.Sprintf("ORDER-%d-%s", sell.ID, uuid.NewString())
	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  externalRef,
			GrossAmt: sell.TotalPayableAmount.IntPart(),
		},
	}

	resp, snapErr := p.snap.CreateTransaction(req)
	if snapErr != nil {
		return payment.Failed(Name, "snap transaction failed: %s", snapErr.Message)
	}
	if resp == nil || resp.Token == "" || resp.RedirectURL == "" {
		return payment.Failed(Name, "snap response missing token or redirect_url")
	}

	raw, _ := json.Marshal(resp)
	return payment.CreateResult{
		Success:     true,
		PaymentID:   externalRef,
		RedirectURL: resp.RedirectURL,
		Currency:    "IDR",
		Raw:         raw,
	}
}

// wholeRupiah reports whether an amount can be charged without rounding.
// Midtrans takes IDR as an integer and notifications echo that integer, so a
// rounded charge would never match the ledger amount.
func wholeRupiah(amount decimal.Decimal) bool {
	return amount.Equal(amount.Truncate(0))
}

func (p *Processor) CheckPaymentStatus(_ context.Context, paymentID string, _ *model.Sell) payment.StatusResult {
	if !p.IsConfigured() {
		return payment.StatusFailed(Name, "not configured for %s mode", p.cfg.Mode)
	}

	resp, mtErr := p.core.CheckTransaction(paymentID)
	if mtErr != nil {
		return payment.StatusFailed(Name, "status check failed: %s", mtErr.Message)
	}

	raw, _ := json.Marshal(resp)
	return payment.StatusResult{
		Success:       true,
		Status:        mapStatus(resp.TransactionStatus, resp.FraudStatus),
		TransactionID: resp.TransactionID,
		Raw:           raw,
	}
}

// HandleCallback verifies the notification signature with the server key
// before trusting any field.
func (p *Processor) HandleCallback(payload map[string]any) payment.CallbackResult {
	orderRef := payment.String(payload, "order_id")
	statusCode := payment.String(payload, "status_code")
	grossAmount := payment.String(payload, "gross_amount")
	native := payment.String(payload, "transaction_status")
	if orderRef == "" || native == "" {
		return payment.CallbackFailed(Name, "notification missing order_id or transaction_status")
	}

	if !VerifySignature(orderRef, statusCode, grossAmount, payment.String(payload, "signature_key"), p.cfg.Active().Key) {
		return payment.CallbackFailed(Name, "invalid signature")
	}

	orderID, err := payment.ParseClientReference(orderRef)
	if err != nil {
		return payment.CallbackFailed(Name, "%v", err)
	}

	res := payment.CallbackResult{
		Success:       true,
		Status:        mapStatus(native, payment.String(payload, "fraud_status")),
		PaymentID:     orderRef,
		TransactionID: payment.String(payload, "transaction_id"),
		OrderID:       orderID,
		Verified:      true,
	}
	if grossAmount != "" {
		amount, err := decimal.NewFromString(grossAmount)
		if err != nil {
			return payment.CallbackFailed(Name, "invalid gross_amount: %v", err)
		}
		res.Amount = &amount
	}
	return res
}

// ParseRedirect reads the Snap finish redirect, whose order_id is the
// external reference.
func (p *Processor) ParseRedirect(q url.Values) (string, int64) {
	ref := q.Get("order_id")
	orderID, _ := payment.ParseClientReference(ref)
	return ref, orderID
}

func (p *Processor) RefundPayment(_ context.Context, paymentID string, amount decimal.Decimal) payment.RefundResult {
	if !p.IsConfigured() {
		return payment.RefundFailed(Name, "not configured for %s mode", p.cfg.Mode)
	}

	if !wholeRupiah(amount) {
		return payment.RefundFailed(Name, "IDR amount %s has a fractional part", amount)
	}

	refundKey := "RF-" + uuid.NewString()
	resp, mtErr := p.core.RefundTransaction(paymentID, &coreapi.RefundReq{
		RefundKey: refundKey,
		Amount:    amount.IntPart(),
		Reason:    "refund requested by merchant",
	})
	if mtErr != nil {
		return payment.RefundFailed(Name, "refund failed: %s", mtErr.Message)
	}
	if resp != nil && !strings.HasPrefix(resp.StatusCode, "2") {
		return payment.RefundFailed(Name, "refund rejected with status %s: %s", resp.StatusCode, resp.StatusMessage)
	}

	raw, _ := json.Marshal(resp)
	return payment.RefundResult{
		Success:  true,
		RefundID: refundKey,
		Status:   model.StatusCompleted,
		Raw:      raw,
	}
}

// CheckRefundStatus reads the parent transaction; Midtrans reports refunds
// through its transaction_status.
func (p *Processor) CheckRefundStatus(_ context.Context, paymentID, _ string) payment.StatusResult {
	if !p.IsConfigured() {
		return payment.StatusFailed(Name, "not configured for %s mode", p.cfg.Mode)
	}

	resp, mtErr := p.core.CheckTransaction(paymentID)
	if mtErr != nil {
		return payment.StatusFailed(Name, "status check failed: %s", mtErr.Message)
	}

	status := model.StatusPending
	switch strings.ToLower(resp.TransactionStatus) {
	case "refund", "partial_refund":
		status = model.StatusCompleted
	}
	raw, _ := json.Marshal(resp)
	return payment.StatusResult{
		Success:       true,
		Status:        status,
		TransactionID: resp.TransactionID,
		Raw:           raw,
	}
}

// VerifySignature checks sha512(order_id + status_code + gross_amount + server_key).
func VerifySignature(orderID, statusCode, grossAmount, signature, serverKey string) bool {
	if signature == "" || serverKey == "" {
		return false
	}
	expected := Signature(orderID, statusCode, grossAmount, serverKey)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(signature))) == 1
}

// Signature computes the notification signature.
func Signature(orderID, statusCode, grossAmount, serverKey string) string {
	hash := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(hash[:])
}
