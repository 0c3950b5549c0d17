package services

import (
	"context"
	"fmt"
	"log/slog"

	"StorefrontAPI/internal/model"
	"StorefrontAPI/internal/payment"
)

// Requester is the authenticated caller of a payment operation.
type Requester struct {
	AuthID int64
	Admin  bool
}

// CustomerDirectory resolves a login to its customer row.
type CustomerDirectory interface {
	GetCustomerID(ctx context.Context, authID int64) (int64, error)
}

// StartResult is what the buyer needs to continue on the provider side.
type StartResult struct {
	TransactionID int64  `json:"transaction_id"`
	PaymentID     string `json:"payment_id"`
	RedirectURL   string `json:"redirect_url"`
}

type PaymentService struct {
	Registry  *payment.Registry
	Store     LedgerStore
	Customers CustomerDirectory
	Ledger    *LedgerService
	Log       *slog.Logger
}

func NewPaymentService(
	reg *payment.Registry,
	store LedgerStore,
	customers CustomerDirectory,
	ledger *LedgerService,
	log *slog.Logger,
) *PaymentService {
	return &PaymentService{
		Registry:  reg,
		Store:     store,
		Customers: customers,
		Ledger:    ledger,
		Log:       log,
	}
}

// StartPayment opens a checkout for sellID at the given provider. A ledger
// row is written only after the provider accepted the request.
func (s *PaymentService) StartPayment(ctx context.Context, sellID int64, provider string, who Requester) (*StartResult, error) {
	proc, method, err := lookupProvider(ctx, s.Registry, s.Store, provider)
	if err != nil {
		return nil, err
	}
	if !method.IsActive || !proc.IsConfigured() {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotConfigured, provider)
	}

	sell, err := s.Store.GetSellByID(ctx, sellID)
	if err != nil {
		return nil, err
	}
	if sell == nil {
		return nil, ErrSellNotFound
	}

	// ownership
	if err := authorizeSell(ctx, s.Customers, sell, who); err != nil {
		return nil, err
	}

	if !sell.Payable() {
		return nil, fmt.Errorf("%w: status is %s", ErrSellNotPayable, sell.PaymentStatus)
	}
	if !sell.TotalPayableAmount.IsPositive() {
		return nil, fmt.Errorf("%w: nothing to pay", ErrSellNotPayable)
	}

	res := proc.CreatePayment(ctx, sell)
	if !res.Success {
		s.Log.Warn("create payment failed", "provider", provider, "sell_id", sell.ID, "err", res.Error)
		return nil, fmt.Errorf("%w: %s", ErrProviderRequest, res.Error)
	}

	t, err := s.Ledger.Create(ctx, sell, method, res, sell.TotalPayableAmount)
	if err != nil {
		return nil, err
	}

	s.Log.Info("payment started",
		"provider", provider, "sell_id", sell.ID, "transaction_id", t.ID, "payment_id", t.PaymentID)

	return &StartResult{
		TransactionID: t.ID,
		PaymentID:     t.PaymentID,
		RedirectURL:   res.RedirectURL,
	}, nil
}

func authorizeSell(ctx context.Context, customers CustomerDirectory, sell *model.Sell, who Requester) error {
	if who.Admin {
		return nil
	}
	if sell.CustomerID == nil || customers == nil {
		return ErrForbidden
	}
	customerID, err := customers.GetCustomerID(ctx, who.AuthID)
	if err != nil {
		return err
	}
	if customerID == 0 || customerID != *sell.CustomerID {
		return ErrForbidden
	}
	return nil
}

// lookupProvider resolves a processor and its payment method row by code.
func lookupProvider(ctx context.Context, reg *payment.Registry, store LedgerStore, code string) (payment.Processor, *model.PaymentMethod, error) {
	proc, ok := reg.Get(code)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownProvider, code)
	}
	method, err := store.GetPaymentMethodByCode(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	if method == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownProvider, code)
	}
	return proc, method, nil
}
