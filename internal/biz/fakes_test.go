package biz

import (
	"context"
	"sync"
	"time"
)

// memStore is an in-memory stand-in for the three repositories. Methods do
// not lock; memTx serializes whole units of work the way the database row
// lock serializes reconciliations, and snapshots state so a failed unit
// rolls back completely.
type memStore struct {
	mu sync.Mutex

	nextOrderID uint64
	nextItemID  uint64
	nextStkID   uint64

	orders   map[uint64]*Order
	items    map[uint64][]*OrderItem
	payments map[uint64]*Payment        // keyed by order id
	stks     map[uint64]*StkTransaction // keyed by stk id

	stkUpdates     int
	orderUpdates   int
	paymentUpdates int

	failAddItems      bool
	failCreatePayment bool
}

func newMemStore() *memStore {
	return &memStore{
		orders:   make(map[uint64]*Order),
		items:    make(map[uint64][]*OrderItem),
		payments: make(map[uint64]*Payment),
		stks:     make(map[uint64]*StkTransaction),
	}
}

func (s *memStore) CreateOrder(_ context.Context, order *Order) error {
	s.nextOrderID++
	order.ID = s.nextOrderID
	cp := *order
	s.orders[order.ID] = &cp
	return nil
}

func (s *memStore) GetOrder(_ context.Context, orderID uint64) (*Order, error) {
	o, ok := s.orders[orderID]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (s *memStore) AddItems(_ context.Context, items []*OrderItem) error {
	if s.failAddItems {
		return errInjected
	}
	for _, item := range items {
		s.nextItemID++
		item.ID = s.nextItemID
		cp := *item
		s.items[item.OrderID] = append(s.items[item.OrderID], &cp)
	}
	return nil
}

func (s *memStore) UpdateOrderStatus(_ context.Context, orderID uint64, status, paymentStatus string) error {
	o, ok := s.orders[orderID]
	if !ok {
		return errInjected
	}
	o.Status = status
	o.PaymentStatus = paymentStatus
	s.orderUpdates++
	return nil
}

func (s *memStore) AttachCheckoutRequestID(_ context.Context, orderID uint64, checkoutRequestID string) error {
	o, ok := s.orders[orderID]
	if !ok {
		return errInjected
	}
	o.CheckoutRequestID = checkoutRequestID
	return nil
}

func (s *memStore) CreatePayment(_ context.Context, payment *Payment) error {
	if s.failCreatePayment {
		return errInjected
	}
	payment.ID = payment.OrderID
	cp := *payment
	s.payments[payment.OrderID] = &cp
	return nil
}

func (s *memStore) GetPaymentByOrder(_ context.Context, orderID uint64) (*Payment, error) {
	p, ok := s.payments[orderID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *memStore) UpdatePaymentResult(_ context.Context, orderID uint64, status, receipt, failureReason string) error {
	p, ok := s.payments[orderID]
	if !ok {
		return errInjected
	}
	p.Status = status
	p.MpesaReceipt = receipt
	p.FailureReason = failureReason
	s.paymentUpdates++
	return nil
}

func (s *memStore) CreateStkTransaction(_ context.Context, txn *StkTransaction) error {
	s.nextStkID++
	txn.ID = s.nextStkID
	cp := *txn
	s.stks[txn.ID] = &cp
	return nil
}

func (s *memStore) GetByOrder(_ context.Context, orderID uint64) (*StkTransaction, error) {
	for _, stk := range s.stks {
		if stk.OrderID == orderID {
			cp := *stk
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) GetByCheckoutRequestIDForUpdate(_ context.Context, checkoutRequestID string) (*StkTransaction, error) {
	for _, stk := range s.stks {
		if stk.CheckoutRequestID == checkoutRequestID {
			cp := *stk
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) UpdateResult(_ context.Context, id uint64, status, receipt, transactionDate, resultDesc string) error {
	stk, ok := s.stks[id]
	if !ok {
		return errInjected
	}
	stk.Status = status
	stk.MpesaReceipt = receipt
	stk.TransactionDate = transactionDate
	stk.ResultDesc = resultDesc
	s.stkUpdates++
	return nil
}

func (s *memStore) ListStuckInitiated(_ context.Context, olderThan time.Time, limit int) ([]*StkTransaction, error) {
	var out []*StkTransaction
	for _, stk := range s.stks {
		if stk.Status == "initiated" && stk.CreatedAt.Before(olderThan) && len(out) < limit {
			cp := *stk
			out = append(out, &cp)
		}
	}
	return out, nil
}

type snapshot struct {
	orders   map[uint64]*Order
	items    map[uint64][]*OrderItem
	payments map[uint64]*Payment
	stks     map[uint64]*StkTransaction
}

func (s *memStore) snapshot() snapshot {
	snap := snapshot{
		orders:   make(map[uint64]*Order, len(s.orders)),
		items:    make(map[uint64][]*OrderItem, len(s.items)),
		payments: make(map[uint64]*Payment, len(s.payments)),
		stks:     make(map[uint64]*StkTransaction, len(s.stks)),
	}
	for k, v := range s.orders {
		cp := *v
		snap.orders[k] = &cp
	}
	for k, v := range s.items {
		items := make([]*OrderItem, len(v))
		for i, item := range v {
			cp := *item
			items[i] = &cp
		}
		snap.items[k] = items
	}
	for k, v := range s.payments {
		cp := *v
		snap.payments[k] = &cp
	}
	for k, v := range s.stks {
		cp := *v
		snap.stks[k] = &cp
	}
	return snap
}

func (s *memStore) restore(snap snapshot) {
	s.orders = snap.orders
	s.items = snap.items
	s.payments = snap.payments
	s.stks = snap.stks
}

// memTx serializes units of work on the store mutex and rolls the store back
// when fn fails.
type memTx struct {
	store *memStore
}

func (t *memTx) Exec(ctx context.Context, fn func(ctx context.Context) error) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	snap := t.store.snapshot()
	if err := fn(ctx); err != nil {
		t.store.restore(snap)
		return err
	}
	return nil
}

// mapCache is an in-memory OrderCache.
type mapCache struct {
	mu          sync.Mutex
	views       map[uint64]*OrderStatusView
	misses      map[uint64]bool
	invalidated []uint64
}

func newMapCache() *mapCache {
	return &mapCache{
		views:  make(map[uint64]*OrderStatusView),
		misses: make(map[uint64]bool),
	}
}

func (c *mapCache) GetOrderStatus(_ context.Context, orderID uint64) (*OrderStatusView, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.misses[orderID] {
		return nil, true, nil
	}
	if v, ok := c.views[orderID]; ok {
		cp := *v
		return &cp, true, nil
	}
	return nil, false, nil
}

func (c *mapCache) SetOrderStatus(_ context.Context, orderID uint64, view *OrderStatusView) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if view == nil {
		c.misses[orderID] = true
		return nil
	}
	cp := *view
	c.views[orderID] = &cp
	return nil
}

func (c *mapCache) Invalidate(_ context.Context, orderID uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.views, orderID)
	delete(c.misses, orderID)
	c.invalidated = append(c.invalidated, orderID)
	return nil
}

// stubGateway is a scripted MpesaGateway.
type stubGateway struct {
	mu      sync.Mutex
	authErr error
	pushErr error
	ack     *StkPushAck
	queries map[string]*StkQueryResult
	pushes  []*StkPushRequest
}

func (g *stubGateway) Authenticate(context.Context) (string, error) {
	if g.authErr != nil {
		return "", g.authErr
	}
	return "test-token", nil
}

func (g *stubGateway) InitiatePush(_ context.Context, _ string, req *StkPushRequest) (*StkPushAck, error) {
	g.mu.Lock()
	g.pushes = append(g.pushes, req)
	g.mu.Unlock()
	if g.pushErr != nil {
		return nil, g.pushErr
	}
	if g.ack != nil {
		return g.ack, nil
	}
	return &StkPushAck{
		MerchantRequestID:   "29115-34620561-1",
		CheckoutRequestID:   "ws_CO_test",
		ResponseCode:        "0",
		ResponseDescription: "Success. Request accepted for processing",
		CustomerMessage:     "Success. Request accepted for processing",
	}, nil
}

func (g *stubGateway) QueryStatus(_ context.Context, _ string, checkoutRequestID string) (*StkQueryResult, error) {
	if q, ok := g.queries[checkoutRequestID]; ok {
		return q, nil
	}
	return &StkQueryResult{Pending: true}, nil
}

var errInjected = injectedError{}

type injectedError struct{}

func (injectedError) Error() string { return "injected store failure" }
