package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"time"

	"StorefrontAPI/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type scanner interface {
	Scan(dest ...any) error
}

const transactionColumns = `
	id, sell_id, payment_method_id, payment_id, amount, currency,
	status, type, gateway_response, payer_reference, callback_token,
	created_at, updated_at`

type TransactionRepository struct {
	DB *pgxpool.Pool
}

func NewTransactionRepository(db *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{DB: db}
}

func scanTransaction(row scanner) (*model.Transaction, error) {
	var (
		t      model.Transaction
		status string
		typ    string
	)
	err := row.Scan(
		&t.ID,
		&t.SellID,
		&t.PaymentMethodID,
		&t.PaymentID,
		&t.Amount,
		&t.Currency,
		&status,
		&typ,
		&t.GatewayResponse,
		&t.PayerReference,
		&t.CallbackToken,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	t.Status = model.TransactionStatus(status)
	t.Type = model.TransactionType(typ)
	return &t, nil
}

func collectTransactions(rows pgx.Rows) ([]model.Transaction, error) {
	defer rows.Close()

	var out []model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func statusStrings(in []model.TransactionStatus) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

// gatewayJSON makes a provider body safe for the JSONB column: an empty body
// becomes NULL and anything that is not JSON is stored as a JSON string.
func gatewayJSON(raw []byte) []byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}
	if json.Valid(trimmed) {
		return trimmed
	}
	quoted, _ := json.Marshal(string(raw))
	return quoted
}

func insertTransaction(ctx context.Context, q querier, t *model.Transaction) error {
	return q.QueryRow(ctx, `
		INSERT INTO transactions
			(sell_id, payment_method_id, payment_id, amount, currency,
			 status, type, gateway_response, payer_reference, callback_token,
			 created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`,
		t.SellID,
		t.PaymentMethodID,
		t.PaymentID,
		t.Amount,
		t.Currency,
		string(t.Status),
		string(t.Type),
		gatewayJSON(t.GatewayResponse),
		t.PayerReference,
		t.CallbackToken,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

// Create inserts a transaction outside any database transaction.
func (r *TransactionRepository) Create(ctx context.Context, t *model.Transaction) error {
	return insertTransaction(ctx, r.DB, t)
}

func (r *TransactionRepository) InsertTx(ctx context.Context, tx pgx.Tx, t *model.Transaction) error {
	return insertTransaction(ctx, tx, t)
}

func (r *TransactionRepository) FindByPaymentID(ctx context.Context, methodID int64, paymentID string) (*model.Transaction, error) {
	q := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE payment_method_id=$1 AND payment_id=$2`
	return scanTransaction(r.DB.QueryRow(ctx, q, methodID, paymentID))
}

// FindLatestPayment returns the newest payment attempt of a sell at one provider.
func (r *TransactionRepository) FindLatestPayment(ctx context.Context, sellID, methodID int64) (*model.Transaction, error) {
	q := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE sell_id=$1 AND payment_method_id=$2 AND type='payment'
		ORDER BY created_at DESC, id DESC
		LIMIT 1`
	return scanTransaction(r.DB.QueryRow(ctx, q, sellID, methodID))
}

func (r *TransactionRepository) ListBySell(ctx context.Context, sellID int64) ([]model.Transaction, error) {
	q := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE sell_id=$1
		ORDER BY id`
	rows, err := r.DB.Query(ctx, q, sellID)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

// ListOpen returns open payments and refunds not updated since before.
func (r *TransactionRepository) ListOpen(ctx context.Context, before time.Time, limit int) ([]model.Transaction, error) {
	q := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE status = ANY($1)
		  AND updated_at < $2
		ORDER BY updated_at
		LIMIT $3`
	rows, err := r.DB.Query(ctx, q, statusStrings(model.OpenStatuses), before, limit)
	if err != nil {
		return nil, err
	}
	return collectTransactions(rows)
}

func (r *TransactionRepository) LockTx(ctx context.Context, tx pgx.Tx, id int64) (*model.Transaction, error) {
	q := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE id=$1
		FOR UPDATE`
	return scanTransaction(tx.QueryRow(ctx, q, id))
}

// UpdateStatusTx writes the new status only while the row is in one of from.
func (r *TransactionRepository) UpdateStatusTx(
	ctx context.Context,
	tx pgx.Tx,
	id int64,
	from []model.TransactionStatus,
	to model.TransactionStatus,
	payload []byte,
	payerRef *string,
) (bool, error) {

	tag, err := tx.Exec(ctx, `
		UPDATE transactions
		SET status=$2,
		    gateway_response=COALESCE($3, gateway_response),
		    payer_reference=COALESCE($4, payer_reference),
		    updated_at=NOW()
		WHERE id=$1
		  AND status = ANY($5)
	`, id, string(to), gatewayJSON(payload), payerRef, statusStrings(from))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *TransactionRepository) HasCompletedPaymentTx(ctx context.Context, tx pgx.Tx, sellID, excludeID int64) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM transactions
			WHERE sell_id=$1 AND id<>$2 AND type='payment' AND status='completed'
		)
	`, sellID, excludeID).Scan(&exists)
	return exists, err
}

func (r *TransactionRepository) CompletedPaymentTx(ctx context.Context, tx pgx.Tx, sellID int64) (*model.Transaction, error) {
	q := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE sell_id=$1 AND type='payment' AND status='completed'`
	return scanTransaction(tx.QueryRow(ctx, q, sellID))
}

// SumRefundedTx totals refunds that are not known to have failed.
func (r *TransactionRepository) SumRefundedTx(ctx context.Context, tx pgx.Tx, sellID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(-amount), 0)
		FROM transactions
		WHERE sell_id=$1 AND type='refund' AND status IN ('pending','processing','completed')
	`, sellID).Scan(&sum)
	return sum, err
}
