package services

import (
	"context"
	"fmt"
	"log/slog"

	"StorefrontAPI/internal/model"
	"StorefrontAPI/internal/payment"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RefundOutcome is the result of an admin refund request. When
// ManualProcessRequired is set nothing was written and Message says why.
type RefundOutcome struct {
	Transaction           *model.Transaction `json:"transaction,omitempty"`
	Sell                  *model.Sell        `json:"sell,omitempty"`
	ManualProcessRequired bool               `json:"manual_process_required"`
	Message               string             `json:"message,omitempty"`
}

type RefundService struct {
	Registry   *payment.Registry
	Store      LedgerStore
	Ledger     *LedgerService
	Reconciler *Reconciler
	Notifier   Notifier // optional
	Log        *slog.Logger
}

func NewRefundService(reg *payment.Registry, store LedgerStore, ledger *LedgerService, rec *Reconciler, log *slog.Logger) *RefundService {
	return &RefundService{Registry: reg, Store: store, Ledger: ledger, Reconciler: rec, Log: log}
}

// Refund returns money for the completed payment of sellID. A nil amount
// refunds whatever has not been refunded yet.
//
// The sell row stays locked from the remaining-amount check through the
// provider call and the insert, so concurrent refunds of one sell queue up
// and each sees the refunds recorded before it.
func (s *RefundService) Refund(ctx context.Context, sellID int64, amount *decimal.Decimal, reason string) (*RefundOutcome, error) {
	var (
		out      = &RefundOutcome{}
		method   *model.PaymentMethod
		amt      decimal.Decimal
		refundID string
	)

	err := s.Store.InTx(ctx, func(ctx context.Context, tx LedgerTx) error {
		sell, err := tx.LockSell(ctx, sellID)
		if err != nil {
			return err
		}
		if sell == nil {
			return ErrSellNotFound
		}
		out.Sell = sell
		if sell.PaymentStatus != model.PaymentPaid && sell.PaymentStatus != model.PaymentRefunded {
			return fmt.Errorf("%w: order is %s", ErrRefundNotAllowed, sell.PaymentStatus)
		}

		paid, err := tx.CompletedPayment(ctx, sellID)
		if err != nil {
			return err
		}
		if paid == nil {
			return fmt.Errorf("%w: no completed payment", ErrRefundNotAllowed)
		}
		refunded, err := tx.SumRefunded(ctx, sellID)
		if err != nil {
			return err
		}

		remaining := paid.Amount.Sub(refunded)
		amt = remaining
		if amount != nil {
			amt = *amount
		}
		if !amt.IsPositive() || amt.GreaterThan(remaining) {
			return fmt.Errorf("%w: amount must be between 0 and %s", ErrRefundNotAllowed, remaining.StringFixed(2))
		}

		var proc payment.Processor
		if method, proc, err = s.processorFor(ctx, paid.PaymentMethodID); err != nil {
			return err
		}

		res := proc.RefundPayment(ctx, paid.PaymentID, amt)
		if !res.Success {
			if res.ManualProcessRequired {
				out.ManualProcessRequired = true
				out.Message = res.Error
				return nil
			}
			s.Log.Warn("refund failed", "provider", method.Code, "sell_id", sellID, "err", res.Error)
			return fmt.Errorf("%w: %s", ErrProviderRequest, res.Error)
		}

		status := res.Status
		if status == "" {
			status = model.StatusPending
		}
		refundID = res.RefundID
		if refundID == "" {
			refundID = "RF-" + uuid.NewString()
		}

		t := &model.Transaction{
			SellID:          sellID,
			PaymentMethodID: paid.PaymentMethodID,
			PaymentID:       refundID,
			Amount:          amt.Neg(),
			Currency:        paid.Currency,
			Status:          status,
			Type:            model.TypeRefund,
			GatewayResponse: res.Raw,
		}
		if err := tx.InsertTransaction(ctx, t); err != nil {
			return err
		}
		if err := s.Reconciler.ApplyRefund(ctx, tx, sell, t); err != nil {
			return err
		}
		out.Transaction = t
		return nil
	})
	if err != nil {
		if refundID != "" {
			// the provider already moved the money
			s.Log.Error("refund not recorded", "sell_id", sellID, "refund_id", refundID, "err", err)
		}
		return nil, err
	}

	if out.ManualProcessRequired {
		s.Log.Info("refund requires manual processing",
			"provider", method.Code, "sell_id", sellID, "amount", amt.StringFixed(2), "reason", reason)
		return out, nil
	}

	s.Log.Info("refund recorded",
		"provider", method.Code, "sell_id", sellID, "refund_id", refundID,
		"amount", amt.StringFixed(2), "status", out.Transaction.Status, "reason", reason)
	s.notify(ctx, model.NewPaymentEvent(model.EventRefundRecorded, method.Code, out.Transaction, out.Sell))
	return out, nil
}

// SyncRefund asks the provider about a refund that was accepted but not yet
// settled and applies the answer. Providers that cannot report refund status
// leave the row open for manual follow-up.
func (s *RefundService) SyncRefund(ctx context.Context, refund *model.Transaction) (*Outcome, error) {
	if refund.Type != model.TypeRefund {
		return nil, fmt.Errorf("transaction %d is a %s, not a refund", refund.ID, refund.Type)
	}
	if refund.Status.IsTerminal() {
		return &Outcome{Transaction: refund, Duplicate: true}, nil
	}

	method, proc, err := s.processorFor(ctx, refund.PaymentMethodID)
	if err != nil {
		return nil, err
	}
	checker, ok := proc.(payment.RefundStatusChecker)
	if !ok {
		s.Log.Debug("provider cannot report refund status", "provider", method.Code, "refund_id", refund.PaymentID)
		return &Outcome{Transaction: refund}, nil
	}
	if !proc.IsConfigured() {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotConfigured, method.Code)
	}

	var paymentID string
	err = s.Store.InTx(ctx, func(ctx context.Context, tx LedgerTx) error {
		paid, err := tx.CompletedPayment(ctx, refund.SellID)
		if paid != nil {
			paymentID = paid.PaymentID
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	st := checker.CheckRefundStatus(ctx, paymentID, refund.PaymentID)
	if !st.Success {
		s.Log.Warn("refund status check failed", "provider", method.Code, "refund_id", refund.PaymentID, "err", st.Error)
		return nil, fmt.Errorf("%w: %s", ErrProviderRequest, st.Error)
	}

	out := &Outcome{}
	err = s.Store.InTx(ctx, func(ctx context.Context, tx LedgerTx) error {
		sell, err := tx.LockSell(ctx, refund.SellID)
		if err != nil {
			return err
		}
		if sell == nil {
			return ErrSellNotFound
		}
		out.Sell = sell

		t, err := tx.LockTransaction(ctx, refund.ID)
		if err != nil {
			return err
		}
		if t == nil {
			return ErrTransactionNotFound
		}
		out.Transaction = t

		changed, err := s.Ledger.Transition(ctx, tx, t, st.Status, st.Raw, "")
		if err != nil {
			return err
		}
		out.Changed = changed
		if changed {
			return s.Reconciler.ApplyRefund(ctx, tx, sell, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if out.Changed {
		s.Log.Info("refund settled",
			"provider", method.Code, "sell_id", refund.SellID, "refund_id", refund.PaymentID, "status", out.Transaction.Status)
		s.notify(ctx, model.NewPaymentEvent(model.EventRefundRecorded, method.Code, out.Transaction, out.Sell))
	}
	return out, nil
}

func (s *RefundService) processorFor(ctx context.Context, methodID int64) (*model.PaymentMethod, payment.Processor, error) {
	method, err := s.Store.GetPaymentMethodByID(ctx, methodID)
	if err != nil {
		return nil, nil, err
	}
	if method == nil {
		return nil, nil, ErrUnknownProvider
	}
	proc, ok := s.Registry.Get(method.Code)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownProvider, method.Code)
	}
	return method, proc, nil
}

func (s *RefundService) notify(ctx context.Context, evt model.PaymentEvent) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.PublishPaymentEvent(ctx, evt); err != nil {
		s.Log.Error("publish refund event failed", "sell_id", evt.Data.SellID, "err", err)
	}
}
