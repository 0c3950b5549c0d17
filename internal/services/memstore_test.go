package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"StorefrontAPI/internal/cache"
	"StorefrontAPI/internal/model"
	"StorefrontAPI/internal/payment"

	"github.com/shopspring/decimal"
)

var errUniqueViolation = errors.New("unique violation")

// memStore is an in-memory LedgerStore. InTx runs one transaction at a time,
// which stands in for the row locks taken by the Postgres store, and restores
// a snapshot when fn fails.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	sells   map[int64]*model.Sell
	methods map[int64]*model.PaymentMethod
	txns    map[int64]*model.Transaction
	nextID  int64
	now     time.Time
}

func newMemStore() *memStore {
	s := &memStore{
		sells:   map[int64]*model.Sell{},
		methods: map[int64]*model.PaymentMethod{},
		txns:    map[int64]*model.Transaction{},
		now:     time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	for i, code := range []string{"paypal", "wave", "orange_money", "midtrans", "fake"} {
		id := int64(i + 1)
		s.methods[id] = &model.PaymentMethod{ID: id, Code: code, Name: code, IsActive: true}
	}
	return s
}

func (s *memStore) addSell(id int64, customerID int64, payable string) *model.Sell {
	s.mu.Lock()
	defer s.mu.Unlock()
	amt := decimal.RequireFromString(payable)
	cid := customerID
	sell := &model.Sell{
		ID:                 id,
		CustomerID:         &cid,
		TotalPayableAmount: amt,
		TotalPaid:          decimal.Zero,
		TotalDue:           amt,
		PaymentStatus:      model.PaymentUnpaid,
		SellDate:           s.now,
		CreatedAt:          s.now,
		UpdatedAt:          s.now,
	}
	s.sells[id] = sell
	cp := *sell
	return &cp
}

func (s *memStore) methodID(code string) int64 {
	for id, m := range s.methods {
		if m.Code == code {
			return id
		}
	}
	return 0
}

func (s *memStore) sell(id int64) *model.Sell {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.sells[id]; ok {
		cp := *v
		return &cp
	}
	return nil
}

func (s *memStore) transactions() []model.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Transaction, 0, len(s.txns))
	for _, t := range s.txns {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *memStore) GetSellByID(_ context.Context, id int64) (*model.Sell, error) {
	return s.sell(id), nil
}

func (s *memStore) GetPaymentMethodByCode(_ context.Context, code string) (*model.PaymentMethod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id := s.methodID(code); id != 0 {
		cp := *s.methods[id]
		return &cp, nil
	}
	return nil, nil
}

func (s *memStore) GetPaymentMethodByID(_ context.Context, id int64) (*model.PaymentMethod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.methods[id]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, nil
}

func (s *memStore) CreateTransaction(_ context.Context, t *model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(t)
}

func (s *memStore) insertLocked(t *model.Transaction) error {
	for _, o := range s.txns {
		if o.PaymentMethodID == t.PaymentMethodID && o.PaymentID == t.PaymentID {
			return errUniqueViolation
		}
	}
	s.nextID++
	s.now = s.now.Add(time.Second)
	t.ID = s.nextID
	t.CreatedAt = s.now
	t.UpdatedAt = s.now
	cp := *t
	s.txns[t.ID] = &cp
	return nil
}

func (s *memStore) FindTransactionByPaymentID(_ context.Context, methodID int64, paymentID string) (*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.txns {
		if t.PaymentMethodID == methodID && t.PaymentID == paymentID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) FindLatestPaymentTransaction(_ context.Context, sellID, methodID int64) (*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *model.Transaction
	for _, t := range s.txns {
		if t.SellID != sellID || t.PaymentMethodID != methodID || t.Type != model.TypePayment {
			continue
		}
		if latest == nil || t.ID > latest.ID {
			latest = t
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (s *memStore) ListTransactionsBySell(_ context.Context, sellID int64) ([]model.Transaction, error) {
	var out []model.Transaction
	for _, t := range s.transactions() {
		if t.SellID == sellID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *memStore) ListOpenTransactions(_ context.Context, updatedBefore time.Time, limit int) ([]model.Transaction, error) {
	var out []model.Transaction
	for _, t := range s.transactions() {
		if !t.Status.IsTerminal() && t.UpdatedAt.Before(updatedBefore) {
			out = append(out, t)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *memStore) InTx(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	sells, txns, nextID := s.snapshot()
	s.mu.Unlock()

	if err := fn(ctx, &memTx{s: s}); err != nil {
		s.mu.Lock()
		s.sells, s.txns, s.nextID = sells, txns, nextID
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *memStore) snapshot() (map[int64]*model.Sell, map[int64]*model.Transaction, int64) {
	sells := make(map[int64]*model.Sell, len(s.sells))
	for k, v := range s.sells {
		cp := *v
		sells[k] = &cp
	}
	txns := make(map[int64]*model.Transaction, len(s.txns))
	for k, v := range s.txns {
		cp := *v
		txns[k] = &cp
	}
	return sells, txns, s.nextID
}

type memTx struct {
	s *memStore
}

func (m *memTx) LockTransaction(_ context.Context, id int64) (*model.Transaction, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if t, ok := m.s.txns[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, nil
}

func (m *memTx) LockSell(_ context.Context, id int64) (*model.Sell, error) {
	return m.s.sell(id), nil
}

func (m *memTx) UpdateTransactionStatus(_ context.Context, id int64, from []model.TransactionStatus, to model.TransactionStatus, raw []byte, payerRef *string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	t, ok := m.s.txns[id]
	if !ok {
		return false, nil
	}
	open := false
	for _, st := range from {
		if t.Status == st {
			open = true
		}
	}
	if !open {
		return false, nil
	}
	if to == model.StatusCompleted && t.Type == model.TypePayment {
		for _, o := range m.s.txns {
			if o.ID != id && o.SellID == t.SellID && o.Type == model.TypePayment && o.Status == model.StatusCompleted {
				return false, errUniqueViolation
			}
		}
	}
	t.Status = to
	if raw != nil {
		t.GatewayResponse = raw
	}
	if payerRef != nil {
		t.PayerReference = payerRef
	}
	m.s.now = m.s.now.Add(time.Second)
	t.UpdatedAt = m.s.now
	return true, nil
}

func (m *memTx) InsertTransaction(_ context.Context, t *model.Transaction) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.s.insertLocked(t)
}

func (m *memTx) UpdateSellPayment(_ context.Context, sell *model.Sell) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.sells[sell.ID]; !ok {
		return ErrSellNotFound
	}
	cp := *sell
	m.s.sells[sell.ID] = &cp
	return nil
}

func (m *memTx) HasCompletedPayment(_ context.Context, sellID, excludeID int64) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, t := range m.s.txns {
		if t.SellID == sellID && t.ID != excludeID && t.Type == model.TypePayment && t.Status == model.StatusCompleted {
			return true, nil
		}
	}
	return false, nil
}

func (m *memTx) CompletedPayment(_ context.Context, sellID int64) (*model.Transaction, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, t := range m.s.txns {
		if t.SellID == sellID && t.Type == model.TypePayment && t.Status == model.StatusCompleted {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memTx) SumRefunded(_ context.Context, sellID int64) (decimal.Decimal, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	sum := decimal.Zero
	for _, t := range m.s.txns {
		if t.SellID != sellID || t.Type != model.TypeRefund {
			continue
		}
		if !t.Status.IsTerminal() || t.Status == model.StatusCompleted {
			sum = sum.Add(t.Amount.Abs())
		}
	}
	return sum, nil
}

// fakeProcessor is a scriptable Processor named "fake". Its callbacks are
// verified unless unsigned is set.
type fakeProcessor struct {
	configured   bool
	unsigned     bool
	create       payment.CreateResult
	status       payment.StatusResult
	refund       payment.RefundResult
	refundStatus payment.StatusResult

	createCalls       atomic.Int32
	statusCalls       atomic.Int32
	refundCalls       atomic.Int32
	refundStatusCalls atomic.Int32
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{
		configured: true,
		create: payment.CreateResult{
			Success:     true,
			PaymentID:   "pay_1",
			RedirectURL: "https://fake.test/checkout/pay_1",
			Currency:    "XOF",
			Raw:         []byte(`{"id":"pay_1"}`),
		},
		status:       payment.StatusResult{Success: true, Status: model.StatusCompleted, Raw: []byte(`{}`)},
		refund:       payment.RefundResult{Success: true, RefundID: "rf_1", Status: model.StatusCompleted, Raw: []byte(`{}`)},
		refundStatus: payment.StatusResult{Success: true, Status: model.StatusCompleted, Raw: []byte(`{}`)},
	}
}

func (f *fakeProcessor) CheckRefundStatus(context.Context, string, string) payment.StatusResult {
	f.refundStatusCalls.Add(1)
	return f.refundStatus
}

func (f *fakeProcessor) Name() string       { return "fake" }
func (f *fakeProcessor) IsConfigured() bool { return f.configured }

func (f *fakeProcessor) CreatePayment(context.Context, *model.Sell) payment.CreateResult {
	f.createCalls.Add(1)
	return f.create
}

func (f *fakeProcessor) CheckPaymentStatus(context.Context, string, *model.Sell) payment.StatusResult {
	f.statusCalls.Add(1)
	return f.status
}

// HandleCallback reads payment_id, order_id, status and an optional amount.
func (f *fakeProcessor) HandleCallback(p map[string]any) payment.CallbackResult {
	res := payment.CallbackResult{
		PaymentID:     payment.String(p, "payment_id"),
		Status:        model.TransactionStatus(payment.String(p, "status")),
		CallbackToken: payment.String(p, "token"),
		Verified:      !f.unsigned,
	}
	if res.PaymentID == "" || res.Status == "" {
		return payment.CallbackFailed("fake", "missing payment_id or status")
	}
	if ref := payment.String(p, "order_id"); ref != "" {
		id, err := payment.ParseClientReference(ref)
		if err != nil {
			return payment.CallbackFailed("fake", "bad order_id")
		}
		res.OrderID = id
	}
	if amt, err := payment.Decimal(p, "amount"); err == nil {
		res.Amount = &amt
	}
	res.Success = true
	return res
}

func (f *fakeProcessor) RefundPayment(context.Context, string, decimal.Decimal) payment.RefundResult {
	f.refundCalls.Add(1)
	return f.refund
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []model.PaymentEvent
	err    error
}

func (n *recordingNotifier) PublishPaymentEvent(_ context.Context, evt model.PaymentEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, evt)
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

// memGuard mirrors RedisGuard semantics without Redis.
type memGuard struct {
	mu   sync.Mutex
	keys map[string]cache.State
	err  error
}

func newMemGuard() *memGuard { return &memGuard{keys: map[string]cache.State{}} }

func (g *memGuard) Acquire(_ context.Context, key string) (cache.State, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return cache.StateAcquired, g.err
	}
	if st, ok := g.keys[key]; ok {
		return st, nil
	}
	g.keys[key] = cache.StateInProgress
	return cache.StateAcquired, nil
}

func (g *memGuard) Complete(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.keys[key] = cache.StateCompleted
	return nil
}

func (g *memGuard) Release(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.keys, key)
	return nil
}

type staticCustomers map[int64]int64

func (c staticCustomers) GetCustomerID(_ context.Context, authID int64) (int64, error) {
	return c[authID], nil
}
