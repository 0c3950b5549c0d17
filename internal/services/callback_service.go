package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/url"

	"StorefrontAPI/internal/cache"
	"StorefrontAPI/internal/model"
	"StorefrontAPI/internal/payment"

	"github.com/shopspring/decimal"
)

// Outcome describes what a callback or poll did to the ledger.
type Outcome struct {
	Transaction *model.Transaction `json:"transaction"`
	Sell        *model.Sell        `json:"sell,omitempty"`
	// Changed is true when this call moved the transaction.
	Changed bool `json:"changed"`
	// Reconciled is true when this call marked the sell paid.
	Reconciled bool `json:"reconciled"`
	// Duplicate is true for a replay of an already settled transaction.
	Duplicate bool `json:"duplicate"`
}

// CallbackService turns provider redirects, webhooks and status polls into
// ledger transitions and order reconciliation.
type CallbackService struct {
	Registry   *payment.Registry
	Store      LedgerStore
	Ledger     *LedgerService
	Reconciler *Reconciler
	Notifier   Notifier      // optional
	Guard      CallbackGuard // optional
	Log        *slog.Logger
}

func NewCallbackService(
	reg *payment.Registry,
	store LedgerStore,
	ledger *LedgerService,
	rec *Reconciler,
	log *slog.Logger,
) *CallbackService {
	return &CallbackService{
		Registry:   reg,
		Store:      store,
		Ledger:     ledger,
		Reconciler: rec,
		Log:        log,
	}
}

// HandleWebhook authenticates, parses and settles a provider notification.
func (s *CallbackService) HandleWebhook(ctx context.Context, provider string, header http.Header, body []byte) (*Outcome, error) {
	proc, method, err := lookupProvider(ctx, s.Registry, s.Store, provider)
	if err != nil {
		return nil, err
	}
	if !proc.IsConfigured() {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotConfigured, provider)
	}

	if v, ok := proc.(payment.WebhookVerifier); ok {
		if err := v.VerifyWebhook(header, body); err != nil {
			s.Log.Warn("webhook rejected", "provider", provider, "err", err)
			return nil, fmt.Errorf("%w: %v", ErrInvalidCallback, err)
		}
	}

	payload, err := decodePayload(header, body)
	if err != nil {
		s.Log.Warn("malformed webhook body", "provider", provider, "body", string(body), "err", err)
		return nil, fmt.Errorf("%w: %v", ErrInvalidCallback, err)
	}

	res := proc.HandleCallback(payload)
	if !res.Success {
		s.Log.Warn("malformed webhook payload", "provider", provider, "body", string(body), "err", res.Error)
		return nil, fmt.Errorf("%w: %s", ErrInvalidCallback, res.Error)
	}

	txn, err := s.locate(ctx, method, res.PaymentID, res.OrderID)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		s.Log.Warn("webhook for unknown transaction",
			"provider", provider, "payment_id", res.PaymentID, "order_id", res.OrderID)
		return nil, ErrTransactionNotFound
	}
	if res.OrderID != 0 && txn.SellID != res.OrderID {
		s.Log.Warn("webhook order mismatch",
			"provider", provider, "payment_id", txn.PaymentID, "order_id", res.OrderID, "sell_id", txn.SellID)
		return nil, fmt.Errorf("%w: order reference mismatch", ErrInvalidCallback)
	}
	if hasCallbackToken(txn) && res.CallbackToken != *txn.CallbackToken {
		s.Log.Warn("webhook token mismatch", "provider", provider, "payment_id", txn.PaymentID)
		return nil, fmt.Errorf("%w: callback token mismatch", ErrInvalidCallback)
	}

	// An unauthenticated payload only tells us which transaction to look at;
	// its status is confirmed with the provider before anything is written.
	if !res.Verified && !hasCallbackToken(txn) {
		s.Log.Info("unverified webhook, confirming with provider",
			"provider", provider, "payment_id", txn.PaymentID, "claimed", res.Status)
		return s.SyncTransaction(ctx, txn)
	}

	key := fmt.Sprintf("%s:%s:%s", provider, txn.PaymentID, res.Status)
	guarded, err := s.acquire(ctx, key)
	if err != nil {
		return nil, err
	}
	if guarded == cache.StateCompleted {
		s.Log.Debug("duplicate webhook", "provider", provider, "payment_id", txn.PaymentID, "status", res.Status)
		return &Outcome{Transaction: txn, Duplicate: true}, nil
	}

	raw, _ := json.Marshal(payload)
	out, err := s.settle(ctx, proc.Name(), txn.ID, res.Status, raw, res.PayerRef, res.Amount)
	if guarded == cache.StateAcquired {
		s.finish(ctx, key, out, err)
	}
	return out, err
}

// HandleRedirect settles the transaction a buyer returned from by polling
// the provider; the redirect itself is never trusted as proof of payment.
func (s *CallbackService) HandleRedirect(ctx context.Context, provider string, query url.Values) (*Outcome, error) {
	proc, method, err := lookupProvider(ctx, s.Registry, s.Store, provider)
	if err != nil {
		return nil, err
	}

	paymentID, orderID := payment.ParseRedirect(proc, query)
	if paymentID == "" && orderID == 0 {
		return nil, fmt.Errorf("%w: redirect carries no payment reference", ErrInvalidCallback)
	}

	txn, err := s.locate(ctx, method, paymentID, orderID)
	if err != nil {
		return nil, err
	}
	if txn == nil {
		s.Log.Warn("redirect for unknown transaction", "provider", provider, "payment_id", paymentID, "order_id", orderID)
		return nil, ErrTransactionNotFound
	}
	if orderID != 0 && txn.SellID != orderID {
		return nil, fmt.Errorf("%w: order reference mismatch", ErrInvalidCallback)
	}
	return s.SyncTransaction(ctx, txn)
}

// PollSell syncs the most recent payment transaction of a sell.
func (s *CallbackService) PollSell(ctx context.Context, sellID int64) (*Outcome, error) {
	txns, err := s.Store.ListTransactionsBySell(ctx, sellID)
	if err != nil {
		return nil, err
	}
	var latest *model.Transaction
	for i := range txns {
		t := &txns[i]
		if t.Type != model.TypePayment {
			continue
		}
		if latest == nil || t.CreatedAt.After(latest.CreatedAt) || (t.CreatedAt.Equal(latest.CreatedAt) && t.ID > latest.ID) {
			latest = t
		}
	}
	if latest == nil {
		return nil, ErrTransactionNotFound
	}
	return s.SyncTransaction(ctx, latest)
}

// SyncTransaction asks the provider for the current status of txn and
// settles it. Settled transactions are returned without a provider call.
func (s *CallbackService) SyncTransaction(ctx context.Context, txn *model.Transaction) (*Outcome, error) {
	sell, err := s.Store.GetSellByID(ctx, txn.SellID)
	if err != nil {
		return nil, err
	}
	if sell == nil {
		return nil, ErrSellNotFound
	}
	if txn.Status.IsTerminal() {
		return &Outcome{Transaction: txn, Sell: sell, Duplicate: true}, nil
	}
	if txn.Type != model.TypePayment {
		return nil, fmt.Errorf("transaction %d is a %s, not a payment", txn.ID, txn.Type)
	}

	method, err := s.Store.GetPaymentMethodByID(ctx, txn.PaymentMethodID)
	if err != nil {
		return nil, err
	}
	if method == nil {
		return nil, ErrUnknownProvider
	}
	proc, ok := s.Registry.Get(method.Code)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, method.Code)
	}
	if !proc.IsConfigured() {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotConfigured, method.Code)
	}

	st := proc.CheckPaymentStatus(ctx, txn.PaymentID, sell)
	if !st.Success {
		s.Log.Warn("status check failed", "provider", method.Code, "payment_id", txn.PaymentID, "err", st.Error)
		return nil, fmt.Errorf("%w: %s", ErrProviderRequest, st.Error)
	}

	payerRef := st.PayerRef
	if payerRef == "" {
		payerRef = st.TransactionID
	}
	return s.settle(ctx, method.Code, txn.ID, st.Status, st.Raw, payerRef, nil)
}

// settle applies one provider-reported status in a single database
// transaction: lock, guard, transition, and reconcile on the completed edge.
func (s *CallbackService) settle(
	ctx context.Context,
	provider string,
	txnID int64,
	status model.TransactionStatus,
	raw []byte,
	payerRef string,
	amount *decimal.Decimal,
) (*Outcome, error) {
	out := &Outcome{}

	err := s.Store.InTx(ctx, func(ctx context.Context, tx LedgerTx) error {
		t, err := tx.LockTransaction(ctx, txnID)
		if err != nil {
			return err
		}
		if t == nil {
			return ErrTransactionNotFound
		}
		out.Transaction = t

		if t.Status.IsTerminal() {
			s.Log.Debug("transaction already settled",
				"provider", provider, "payment_id", t.PaymentID, "current", t.Status, "requested", status)
			out.Duplicate = true
			return nil
		}

		if amount != nil && !amount.Equal(t.Amount) {
			s.Log.Warn("callback amount mismatch",
				"provider", provider, "payment_id", t.PaymentID, "got", amount.String(), "expected", t.Amount.String())
			return fmt.Errorf("%w: got %s, expected %s", ErrAmountMismatch, amount.StringFixed(2), t.Amount.StringFixed(2))
		}

		if status == model.StatusCompleted {
			dup, err := tx.HasCompletedPayment(ctx, t.SellID, t.ID)
			if err != nil {
				return err
			}
			if dup {
				// recorded as terminal so the provider stops retrying and the
				// sweep stops polling; the money goes back by hand
				changed, err := s.Ledger.MarkDuplicate(ctx, tx, t, raw, payerRef)
				if err != nil {
					return err
				}
				out.Changed = changed
				s.Log.Error("second payment completed for sell, manual refund required",
					"provider", provider, "sell_id", t.SellID, "payment_id", t.PaymentID)
				return nil
			}
		}

		changed, err := s.Ledger.Transition(ctx, tx, t, status, raw, payerRef)
		if err != nil {
			return err
		}
		out.Changed = changed

		if changed && t.Status == model.StatusCompleted {
			sell, reconciled, err := s.Reconciler.ApplyPayment(ctx, tx, t)
			if err != nil {
				return err
			}
			out.Sell = sell
			out.Reconciled = reconciled
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if out.Sell == nil {
		sell, err := s.Store.GetSellByID(ctx, out.Transaction.SellID)
		if err != nil {
			return nil, err
		}
		out.Sell = sell
	}

	if out.Changed {
		s.Log.Info("transaction settled",
			"provider", provider, "transaction_id", out.Transaction.ID, "status", out.Transaction.Status)
		s.notify(ctx, model.NewPaymentEvent(model.EventPaymentStatusChanged, provider, out.Transaction, out.Sell))
	}
	return out, nil
}

func hasCallbackToken(t *model.Transaction) bool {
	return t.CallbackToken != nil && *t.CallbackToken != ""
}

func (s *CallbackService) locate(ctx context.Context, method *model.PaymentMethod, paymentID string, orderID int64) (*model.Transaction, error) {
	if paymentID != "" {
		return s.Ledger.FindByPaymentID(ctx, method, paymentID)
	}
	if orderID > 0 {
		return s.Store.FindLatestPaymentTransaction(ctx, orderID, method.ID)
	}
	return nil, fmt.Errorf("%w: no payment reference", ErrInvalidCallback)
}

// acquire reports the guard state for key; an in-flight key comes back with
// ErrCallbackInFlight. A missing or unreachable guard yields unguarded.
func (s *CallbackService) acquire(ctx context.Context, key string) (cache.State, error) {
	if s.Guard == nil {
		return unguarded, nil
	}
	st, err := s.Guard.Acquire(ctx, key)
	if err != nil {
		s.Log.Warn("callback guard unavailable", "key", key, "err", err)
		return unguarded, nil
	}
	if st == cache.StateInProgress {
		return st, ErrCallbackInFlight
	}
	return st, nil
}

// finish marks the key completed once the transaction is settled, so later
// replays short-circuit; anything else releases it for a retry.
func (s *CallbackService) finish(ctx context.Context, key string, out *Outcome, err error) {
	var gerr error
	if err == nil && out != nil && out.Transaction.Status.IsTerminal() {
		gerr = s.Guard.Complete(ctx, key)
	} else {
		gerr = s.Guard.Release(ctx, key)
	}
	if gerr != nil {
		s.Log.Warn("callback guard update failed", "key", key, "err", gerr)
	}
}

func (s *CallbackService) notify(ctx context.Context, evt model.PaymentEvent) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.PublishPaymentEvent(ctx, evt); err != nil {
		s.Log.Error("publish payment event failed",
			"event", evt.EventType, "transaction_id", evt.Data.TransactionID, "err", err)
	}
}

const unguarded cache.State = -1

func decodePayload(header http.Header, body []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("empty body")
	}

	ct, _, _ := mime.ParseMediaType(header.Get("Content-Type"))
	if ct == "application/x-www-form-urlencoded" {
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, err
		}
		payload := make(map[string]any, len(values))
		for k := range values {
			payload[k] = values.Get(k)
		}
		return payload, nil
	}

	var payload map[string]any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		return nil, err
	}
	return payload, nil
}
