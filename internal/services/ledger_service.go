package services

import (
	"context"
	"fmt"
	"log/slog"

	"StorefrontAPI/internal/model"
	"StorefrontAPI/internal/payment"

	"github.com/shopspring/decimal"
)

// LedgerService owns the transaction status machine. Writes are conditional
// on the row still being open, so replays and races degrade to no-ops.
type LedgerService struct {
	Store LedgerStore
	Log   *slog.Logger
}

func NewLedgerService(store LedgerStore, log *slog.Logger) *LedgerService {
	return &LedgerService{Store: store, Log: log}
}

// Create records the pending row for a checkout the provider accepted.
func (l *LedgerService) Create(
	ctx context.Context,
	sell *model.Sell,
	method *model.PaymentMethod,
	res payment.CreateResult,
	amount decimal.Decimal,
) (*model.Transaction, error) {
	if res.PaymentID == "" {
		return nil, fmt.Errorf("%w: empty payment id", ErrProviderRequest)
	}

	t := &model.Transaction{
		SellID:          sell.ID,
		PaymentMethodID: method.ID,
		PaymentID:       res.PaymentID,
		Amount:          amount,
		Currency:        res.Currency,
		Status:          model.StatusPending,
		Type:            model.TypePayment,
		GatewayResponse: res.Raw,
	}
	if res.CallbackToken != "" {
		token := res.CallbackToken
		t.CallbackToken = &token
	}

	if err := l.Store.CreateTransaction(ctx, t); err != nil {
		l.Log.Error("create transaction failed",
			"sell_id", sell.ID, "provider", method.Code, "payment_id", res.PaymentID, "err", err)
		return nil, err
	}
	return t, nil
}

func (l *LedgerService) FindByPaymentID(ctx context.Context, method *model.PaymentMethod, paymentID string) (*model.Transaction, error) {
	return l.Store.FindTransactionByPaymentID(ctx, method.ID, paymentID)
}

func (l *LedgerService) MarkProcessing(ctx context.Context, tx LedgerTx, t *model.Transaction, raw []byte) (bool, error) {
	return l.Transition(ctx, tx, t, model.StatusProcessing, raw, "")
}

func (l *LedgerService) MarkCompleted(ctx context.Context, tx LedgerTx, t *model.Transaction, raw []byte, payerRef string) (bool, error) {
	return l.Transition(ctx, tx, t, model.StatusCompleted, raw, payerRef)
}

func (l *LedgerService) MarkFailed(ctx context.Context, tx LedgerTx, t *model.Transaction, raw []byte) (bool, error) {
	return l.Transition(ctx, tx, t, model.StatusFailed, raw, "")
}

func (l *LedgerService) MarkExpired(ctx context.Context, tx LedgerTx, t *model.Transaction, raw []byte) (bool, error) {
	return l.Transition(ctx, tx, t, model.StatusExpired, raw, "")
}

func (l *LedgerService) MarkCancelled(ctx context.Context, tx LedgerTx, t *model.Transaction, raw []byte) (bool, error) {
	return l.Transition(ctx, tx, t, model.StatusCancelled, raw, "")
}

func (l *LedgerService) MarkDuplicate(ctx context.Context, tx LedgerTx, t *model.Transaction, raw []byte, payerRef string) (bool, error) {
	return l.Transition(ctx, tx, t, model.StatusDuplicate, raw, payerRef)
}

// Transition moves t to the given status and reports whether this call
// changed the row. Terminal rows never change, and an open row never
// regresses to pending.
func (l *LedgerService) Transition(
	ctx context.Context,
	tx LedgerTx,
	t *model.Transaction,
	to model.TransactionStatus,
	raw []byte,
	payerRef string,
) (bool, error) {
	if t.Status == to || t.Status.IsTerminal() || to == model.StatusPending {
		l.Log.Debug("transition skipped",
			"transaction_id", t.ID, "payment_id", t.PaymentID, "current", t.Status, "requested", to)
		return false, nil
	}

	var ref *string
	if payerRef != "" {
		ref = &payerRef
	}

	ok, err := tx.UpdateTransactionStatus(ctx, t.ID, model.OpenStatuses, to, raw, ref)
	if err != nil {
		l.Log.Error("update transaction status failed", "transaction_id", t.ID, "to", to, "err", err)
		return false, err
	}
	if !ok {
		// lost a race against another writer
		l.Log.Debug("transition lost", "transaction_id", t.ID, "requested", to)
		return false, nil
	}

	t.Status = to
	if raw != nil {
		t.GatewayResponse = raw
	}
	if ref != nil {
		t.PayerReference = ref
	}
	return true, nil
}
