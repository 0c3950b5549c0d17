package services

import (
	"context"
	"time"

	"StorefrontAPI/internal/cache"
	"StorefrontAPI/internal/model"

	"github.com/shopspring/decimal"
)

// LedgerStore is the persistence the payment core needs. Lookups return
// (nil, nil) when nothing matches.
type LedgerStore interface {
	GetSellByID(ctx context.Context, id int64) (*model.Sell, error)
	GetPaymentMethodByCode(ctx context.Context, code string) (*model.PaymentMethod, error)
	GetPaymentMethodByID(ctx context.Context, id int64) (*model.PaymentMethod, error)

	CreateTransaction(ctx context.Context, t *model.Transaction) error
	FindTransactionByPaymentID(ctx context.Context, methodID int64, paymentID string) (*model.Transaction, error)
	FindLatestPaymentTransaction(ctx context.Context, sellID, methodID int64) (*model.Transaction, error)
	ListTransactionsBySell(ctx context.Context, sellID int64) ([]model.Transaction, error)
	ListOpenTransactions(ctx context.Context, updatedBefore time.Time, limit int) ([]model.Transaction, error)

	// InTx runs fn in one database transaction; an error from fn rolls back
	// every write made through tx.
	InTx(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error
}

// LedgerTx is the row-locking, read-decide-write surface used inside InTx.
type LedgerTx interface {
	LockTransaction(ctx context.Context, id int64) (*model.Transaction, error)
	LockSell(ctx context.Context, id int64) (*model.Sell, error)

	// UpdateTransactionStatus writes only while the row is still in one of
	// the from statuses and reports whether it did.
	UpdateTransactionStatus(ctx context.Context, id int64, from []model.TransactionStatus, to model.TransactionStatus, gatewayResponse []byte, payerRef *string) (bool, error)
	InsertTransaction(ctx context.Context, t *model.Transaction) error
	UpdateSellPayment(ctx context.Context, s *model.Sell) error

	HasCompletedPayment(ctx context.Context, sellID, excludeTransactionID int64) (bool, error)
	CompletedPayment(ctx context.Context, sellID int64) (*model.Transaction, error)
	SumRefunded(ctx context.Context, sellID int64) (decimal.Decimal, error)
}

// Notifier receives events after a transition has been committed.
type Notifier interface {
	PublishPaymentEvent(ctx context.Context, evt model.PaymentEvent) error
}

// CallbackGuard short-circuits concurrent duplicate webhooks. It is an
// optimization; the ledger guards stay authoritative.
type CallbackGuard interface {
	Acquire(ctx context.Context, key string) (cache.State, error)
	Complete(ctx context.Context, key string) error
	Release(ctx context.Context, key string) error
}
