package repository

import (
	"context"
	"errors"

	"StorefrontAPI/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const sellColumns = `
	id, customer_id, total_payable_amount, total_paid, total_due,
	payment_status, payment_method_id, sell_date, created_at, updated_at`

type SellRepository struct {
	DB *pgxpool.Pool
}

func NewSellRepository(db *pgxpool.Pool) *SellRepository {
	return &SellRepository{DB: db}
}

func scanSell(row scanner) (*model.Sell, error) {
	var (
		s      model.Sell
		status int16
	)
	err := row.Scan(
		&s.ID,
		&s.CustomerID,
		&s.TotalPayableAmount,
		&s.TotalPaid,
		&s.TotalDue,
		&status,
		&s.PaymentMethodID,
		&s.SellDate,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	s.PaymentStatus = model.PaymentStatus(status)
	return &s, nil
}

// GetByID returns the sell row for the given id
func (r *SellRepository) GetByID(ctx context.Context, id int64) (*model.Sell, error) {
	q := `SELECT ` + sellColumns + ` FROM sells WHERE id=$1`
	return scanSell(r.DB.QueryRow(ctx, q, id))
}

// LockTx reads the sell with a row lock held until tx ends.
func (r *SellRepository) LockTx(ctx context.Context, tx pgx.Tx, id int64) (*model.Sell, error) {
	q := `SELECT ` + sellColumns + ` FROM sells WHERE id=$1 FOR UPDATE`
	return scanSell(tx.QueryRow(ctx, q, id))
}

func (r *SellRepository) UpdatePaymentTx(ctx context.Context, tx pgx.Tx, s *model.Sell) error {
	err := tx.QueryRow(ctx, `
		UPDATE sells
		SET payment_status=$2,
		    total_paid=$3,
		    total_due=$4,
		    payment_method_id=$5,
		    updated_at=NOW()
		WHERE id=$1
		RETURNING updated_at
	`, s.ID, int16(s.PaymentStatus), s.TotalPaid, s.TotalDue, s.PaymentMethodID).Scan(&s.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return errors.New("sell not found")
	}
	return err
}
