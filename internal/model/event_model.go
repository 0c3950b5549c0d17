package model

import "time"

const (
	EventPaymentStatusChanged = "payment.status_changed"
	EventRefundRecorded       = "payment.refund_recorded"
)

// PaymentEvent is published after a ledger transition commits.
type PaymentEvent struct {
	EventType string `json:"event_type"`
	Data      struct {
		TransactionID int64             `json:"transaction_id"`
		SellID        int64             `json:"sell_id"`
		Provider      string            `json:"provider"`
		PaymentID     string            `json:"payment_id"`
		Status        TransactionStatus `json:"status"`
		SellStatus    PaymentStatus     `json:"sell_status"`
		Amount        string            `json:"amount"`
		Currency      string            `json:"currency"`
		OccurredAt    time.Time         `json:"occurred_at"`
	} `json:"data"`
}

// NewPaymentEvent builds an event from a transaction and its sell.
func NewPaymentEvent(eventType, provider string, t *Transaction, s *Sell) PaymentEvent {
	var e PaymentEvent
	e.EventType = eventType
	e.Data.TransactionID = t.ID
	e.Data.SellID = t.SellID
	e.Data.Provider = provider
	e.Data.PaymentID = t.PaymentID
	e.Data.Status = t.Status
	if s != nil {
		e.Data.SellStatus = s.PaymentStatus
	}
	e.Data.Amount = t.Amount.StringFixed(2)
	e.Data.Currency = t.Currency
	e.Data.OccurredAt = time.Now().UTC()
	return e
}
