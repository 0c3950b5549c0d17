package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus int16

const (
	PaymentUnpaid   PaymentStatus = 0
	PaymentPaid     PaymentStatus = 1
	PaymentPartial  PaymentStatus = 2
	PaymentRefunded PaymentStatus = 3
)

func (s PaymentStatus) String() string {
	switch s {
	case PaymentUnpaid:
		return "unpaid"
	case PaymentPaid:
		return "paid"
	case PaymentPartial:
		return "partial"
	case PaymentRefunded:
		return "refunded"
	}
	return "unknown"
}

func (s PaymentStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Sell is a customer order.
type Sell struct {
	ID                 int64           `json:"id"`
	CustomerID         *int64          `json:"customer_id,omitempty"`
	TotalPayableAmount decimal.Decimal `json:"total_payable_amount"`
	TotalPaid          decimal.Decimal `json:"total_paid"`
	TotalDue           decimal.Decimal `json:"total_due"`
	PaymentStatus      PaymentStatus   `json:"payment_status"`
	PaymentMethodID    *int64          `json:"payment_method_id,omitempty"`
	SellDate           time.Time       `json:"sell_date"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// Payable reports whether a new payment attempt may be opened.
func (s *Sell) Payable() bool {
	return s.PaymentStatus == PaymentUnpaid || s.PaymentStatus == PaymentPartial
}

// PaymentMethod describes a gateway, keyed by its processor name.
type PaymentMethod struct {
	ID       int64  `json:"id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}
