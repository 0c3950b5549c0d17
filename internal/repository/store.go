package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"StorefrontAPI/internal/model"
	"StorefrontAPI/internal/services"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const pgUniqueViolation = "23505"

// Store backs the payment services with Postgres.
type Store struct {
	DB           *pgxpool.Pool
	Sells        *SellRepository
	Transactions *TransactionRepository
	Methods      *PaymentMethodRepository
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{
		DB:           db,
		Sells:        NewSellRepository(db),
		Transactions: NewTransactionRepository(db),
		Methods:      NewPaymentMethodRepository(db),
	}
}

var _ services.LedgerStore = (*Store)(nil)

func (s *Store) GetSellByID(ctx context.Context, id int64) (*model.Sell, error) {
	return s.Sells.GetByID(ctx, id)
}

func (s *Store) GetPaymentMethodByCode(ctx context.Context, code string) (*model.PaymentMethod, error) {
	return s.Methods.GetByCode(ctx, code)
}

func (s *Store) GetPaymentMethodByID(ctx context.Context, id int64) (*model.PaymentMethod, error) {
	return s.Methods.GetByID(ctx, id)
}

func (s *Store) CreateTransaction(ctx context.Context, t *model.Transaction) error {
	if err := s.Transactions.Create(ctx, t); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("payment id %q already recorded: %w", t.PaymentID, err)
		}
		return err
	}
	return nil
}

func (s *Store) FindTransactionByPaymentID(ctx context.Context, methodID int64, paymentID string) (*model.Transaction, error) {
	return s.Transactions.FindByPaymentID(ctx, methodID, paymentID)
}

func (s *Store) FindLatestPaymentTransaction(ctx context.Context, sellID, methodID int64) (*model.Transaction, error) {
	return s.Transactions.FindLatestPayment(ctx, sellID, methodID)
}

func (s *Store) ListTransactionsBySell(ctx context.Context, sellID int64) ([]model.Transaction, error) {
	return s.Transactions.ListBySell(ctx, sellID)
}

func (s *Store) ListOpenTransactions(ctx context.Context, updatedBefore time.Time, limit int) ([]model.Transaction, error) {
	return s.Transactions.ListOpen(ctx, updatedBefore, limit)
}

// InTx runs fn inside BEGIN/COMMIT; any error from fn rolls back.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx services.LedgerTx) error) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &storeTx{store: s, tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type storeTx struct {
	store *Store
	tx    pgx.Tx
}

func (t *storeTx) LockTransaction(ctx context.Context, id int64) (*model.Transaction, error) {
	return t.store.Transactions.LockTx(ctx, t.tx, id)
}

func (t *storeTx) LockSell(ctx context.Context, id int64) (*model.Sell, error) {
	return t.store.Sells.LockTx(ctx, t.tx, id)
}

func (t *storeTx) UpdateTransactionStatus(
	ctx context.Context,
	id int64,
	from []model.TransactionStatus,
	to model.TransactionStatus,
	payload []byte,
	payerRef *string,
) (bool, error) {
	ok, err := t.store.Transactions.UpdateStatusTx(ctx, t.tx, id, from, to, payload, payerRef)
	if isUniqueViolation(err) {
		// one completed payment per sell
		return false, services.ErrDuplicatePayment
	}
	return ok, err
}

func (t *storeTx) InsertTransaction(ctx context.Context, txn *model.Transaction) error {
	return t.store.Transactions.InsertTx(ctx, t.tx, txn)
}

func (t *storeTx) UpdateSellPayment(ctx context.Context, sell *model.Sell) error {
	return t.store.Sells.UpdatePaymentTx(ctx, t.tx, sell)
}

func (t *storeTx) HasCompletedPayment(ctx context.Context, sellID, excludeID int64) (bool, error) {
	return t.store.Transactions.HasCompletedPaymentTx(ctx, t.tx, sellID, excludeID)
}

func (t *storeTx) CompletedPayment(ctx context.Context, sellID int64) (*model.Transaction, error) {
	return t.store.Transactions.CompletedPaymentTx(ctx, t.tx, sellID)
}

func (t *storeTx) SumRefunded(ctx context.Context, sellID int64) (decimal.Decimal, error) {
	return t.store.Transactions.SumRefundedTx(ctx, t.tx, sellID)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
