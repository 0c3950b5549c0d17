package services

import (
	"context"
	"log/slog"

	"StorefrontAPI/internal/model"

	"github.com/shopspring/decimal"
)

// Reconciler applies completed payments and refunds to the owning Sell.
type Reconciler struct {
	Log *slog.Logger
}

func NewReconciler(log *slog.Logger) *Reconciler {
	return &Reconciler{Log: log}
}

// ApplyPayment marks the sell paid in full. It must only run on the edge into
// completed, inside the same database transaction as that edge. The bool is
// false when the sell was already paid.
func (r *Reconciler) ApplyPayment(ctx context.Context, tx LedgerTx, t *model.Transaction) (*model.Sell, bool, error) {
	sell, err := tx.LockSell(ctx, t.SellID)
	if err != nil {
		return nil, false, err
	}
	if sell == nil {
		return nil, false, ErrSellNotFound
	}

	if sell.PaymentStatus == model.PaymentPaid {
		r.Log.Debug("sell already paid", "sell_id", sell.ID, "transaction_id", t.ID)
		return sell, false, nil
	}

	methodID := t.PaymentMethodID
	sell.PaymentStatus = model.PaymentPaid
	sell.TotalPaid = sell.TotalPayableAmount
	sell.TotalDue = decimal.Zero
	sell.PaymentMethodID = &methodID

	if err := tx.UpdateSellPayment(ctx, sell); err != nil {
		r.Log.Error("update sell payment failed", "sell_id", sell.ID, "err", err)
		return nil, false, err
	}

	r.Log.Info("sell paid",
		"sell_id", sell.ID, "transaction_id", t.ID, "amount", sell.TotalPaid.StringFixed(2))
	return sell, true, nil
}

// ApplyRefund flags a locked sell as refunded once the provider confirms.
func (r *Reconciler) ApplyRefund(ctx context.Context, tx LedgerTx, sell *model.Sell, refund *model.Transaction) error {
	if refund.Status != model.StatusCompleted || sell.PaymentStatus == model.PaymentRefunded {
		return nil
	}
	sell.PaymentStatus = model.PaymentRefunded
	if err := tx.UpdateSellPayment(ctx, sell); err != nil {
		r.Log.Error("update sell refund failed", "sell_id", sell.ID, "err", err)
		return err
	}
	return nil
}
