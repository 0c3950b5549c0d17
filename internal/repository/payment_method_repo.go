package repository

import (
	"context"
	"errors"

	"StorefrontAPI/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PaymentMethodRepository struct {
	DB *pgxpool.Pool
}

func NewPaymentMethodRepository(db *pgxpool.Pool) *PaymentMethodRepository {
	return &PaymentMethodRepository{DB: db}
}

func (r *PaymentMethodRepository) get(ctx context.Context, where string, arg any) (*model.PaymentMethod, error) {
	var m model.PaymentMethod
	err := r.DB.QueryRow(ctx,
		`SELECT id, code, name, is_active FROM payment_methods WHERE `+where, arg,
	).Scan(&m.ID, &m.Code, &m.Name, &m.IsActive)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// GetByCode looks a method up by its processor name.
func (r *PaymentMethodRepository) GetByCode(ctx context.Context, code string) (*model.PaymentMethod, error) {
	return r.get(ctx, "code=$1", code)
}

func (r *PaymentMethodRepository) GetByID(ctx context.Context, id int64) (*model.PaymentMethod, error) {
	return r.get(ctx, "id=$1", id)
}

func (r *PaymentMethodRepository) List(ctx context.Context) ([]model.PaymentMethod, error) {
	rows, err := r.DB.Query(ctx, `SELECT id, code, name, is_active FROM payment_methods ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []model.PaymentMethod{}
	for rows.Next() {
		var m model.PaymentMethod
		if err := rows.Scan(&m.ID, &m.Code, &m.Name, &m.IsActive); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}
