package services

import (
	"context"

	"StorefrontAPI/internal/model"
)

// OrderView is a sell with its ledger history.
type OrderView struct {
	Sell         *model.Sell         `json:"sell"`
	Transactions []model.Transaction `json:"transactions"`
}

type OrderService struct {
	Store     LedgerStore
	Customers CustomerDirectory
}

func NewOrderService(store LedgerStore, customers CustomerDirectory) *OrderService {
	return &OrderService{Store: store, Customers: customers}
}

func (s *OrderService) GetOrder(ctx context.Context, sellID int64, who Requester) (*OrderView, error) {
	sell, err := s.Store.GetSellByID(ctx, sellID)
	if err != nil {
		return nil, err
	}
	if sell == nil {
		return nil, ErrSellNotFound
	}
	if err := authorizeSell(ctx, s.Customers, sell, who); err != nil {
		return nil, err
	}

	txns, err := s.Store.ListTransactionsBySell(ctx, sellID)
	if err != nil {
		return nil, err
	}
	if txns == nil {
		txns = []model.Transaction{}
	}
	return &OrderView{Sell: sell, Transactions: txns}, nil
}
