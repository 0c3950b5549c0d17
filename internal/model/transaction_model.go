package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	StatusPending    TransactionStatus = "pending"
	StatusProcessing TransactionStatus = "processing"
	StatusCompleted  TransactionStatus = "completed"
	StatusFailed     TransactionStatus = "failed"
	StatusExpired    TransactionStatus = "expired"
	StatusCancelled  TransactionStatus = "cancelled"
	// StatusDuplicate is a payment that completed at the provider after the
	// sell was already paid by another transaction. It needs a manual refund.
	StatusDuplicate TransactionStatus = "duplicate"
)

// IsTerminal reports whether no further status write is permitted.
func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusExpired, StatusCancelled, StatusDuplicate:
		return true
	}
	return false
}

// OpenStatuses are the statuses a transaction may still leave.
var OpenStatuses = []TransactionStatus{StatusPending, StatusProcessing}

type TransactionType string

const (
	TypePayment TransactionType = "payment"
	TypeRefund  TransactionType = "refund"
)

// Transaction is one payment attempt (or refund) against a Sell.
type Transaction struct {
	ID              int64             `db:"id" json:"id"`
	SellID          int64             `db:"sell_id" json:"sell_id"`
	PaymentMethodID int64             `db:"payment_method_id" json:"payment_method_id"`
	PaymentID       string            `db:"payment_id" json:"payment_id"`
	Amount          decimal.Decimal   `db:"amount" json:"amount"`
	Currency        string            `db:"currency" json:"currency"`
	Status          TransactionStatus `db:"status" json:"status"`
	Type            TransactionType   `db:"type" json:"type"`
	GatewayResponse []byte            `db:"gateway_response" json:"-"`
	PayerReference  *string           `db:"payer_reference" json:"payer_reference,omitempty"`
	CallbackToken   *string           `db:"callback_token" json:"-"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time         `db:"updated_at" json:"updated_at"`
}
