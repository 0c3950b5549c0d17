package services

import (
	"context"
	"log/slog"
	"time"

	"StorefrontAPI/internal/model"
)

// SweepReport summarizes one sweep run.
type SweepReport struct {
	Checked int `json:"checked"`
	Settled int `json:"settled"`
	Failed  int `json:"failed"`
}

// SweepService polls open payments whose webhook never arrived and refunds
// the provider accepted without settling.
type SweepService struct {
	Store    LedgerStore
	Callback *CallbackService
	Refunds  *RefundService
	Log      *slog.Logger
	Now      func() time.Time
}

func NewSweepService(store LedgerStore, cb *CallbackService, refunds *RefundService, log *slog.Logger) *SweepService {
	return &SweepService{Store: store, Callback: cb, Refunds: refunds, Log: log, Now: time.Now}
}

// Run syncs up to limit open transactions untouched for olderThan.
// Per-transaction failures are logged and counted; only listing errors abort.
func (s *SweepService) Run(ctx context.Context, olderThan time.Duration, limit int) (SweepReport, error) {
	var report SweepReport

	txns, err := s.Store.ListOpenTransactions(ctx, s.Now().Add(-olderThan), limit)
	if err != nil {
		return report, err
	}

	for i := range txns {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		t := &txns[i]
		report.Checked++

		var out *Outcome
		if t.Type == model.TypeRefund {
			out, err = s.Refunds.SyncRefund(ctx, t)
		} else {
			out, err = s.Callback.SyncTransaction(ctx, t)
		}
		if err != nil {
			report.Failed++
			s.Log.Warn("sweep sync failed", "transaction_id", t.ID, "payment_id", t.PaymentID, "err", err)
			continue
		}
		if out.Changed {
			report.Settled++
		}
	}

	s.Log.Info("sweep finished", "checked", report.Checked, "settled", report.Settled, "failed", report.Failed)
	return report, nil
}
