package application

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"storefront/internal/service/order/domain"
	"storefront/internal/service/order/domain/port"
)

// journal 按调用顺序记录各个 fake 的副作用
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(entry string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entry)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

type fakeInventory struct {
	mu       sync.Mutex
	products map[string]port.Product
	journal  *journal
	restores int
}

func newFakeInventory(j *journal, products ...port.Product) *fakeInventory {
	inv := &fakeInventory{products: make(map[string]port.Product), journal: j}
	for _, p := range products {
		inv.products[p.ID] = p
	}
	return inv
}

func (f *fakeInventory) GetProducts(_ context.Context, ids []string) (map[string]port.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]port.Product, len(ids))
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (f *fakeInventory) ReserveStock(_ context.Context, lines []port.StockLine) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range lines {
		p, ok := f.products[l.ProductID]
		if !ok || (p.StockQuantity != nil && *p.StockQuantity < l.Quantity) {
			return &port.ReservationConflictError{ProductID: l.ProductID}
		}
	}
	for _, l := range lines {
		f.adjust(l.ProductID, -l.Quantity)
	}
	f.journal.add("reserve")
	return nil
}

func (f *fakeInventory) RestoreStock(_ context.Context, lines []port.StockLine) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range lines {
		f.adjust(l.ProductID, l.Quantity)
	}
	f.restores++
	f.journal.add("restore")
	return nil
}

func (f *fakeInventory) adjust(id string, delta int) {
	p := f.products[id]
	if p.StockQuantity == nil {
		return
	}
	v := *p.StockQuantity + delta
	p.StockQuantity = &v
	f.products[id] = p
}

func (f *fakeInventory) stock(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.products[id].StockQuantity
}

type fakeCoupons struct {
	decisions map[string]port.CouponDecision
	applyErr  error
	journal   *journal
	applied   []string
}

func (f *fakeCoupons) Validate(_ context.Context, code string, _ []port.CouponLine, subtotal decimal.Decimal, _ string) (*port.CouponDecision, error) {
	d, ok := f.decisions[code]
	if !ok {
		return nil, &port.CouponRejectedError{Message: "Coupon not found"}
	}
	d.Discount = decimal.Min(d.Discount, subtotal)
	return &d, nil
}

func (f *fakeCoupons) Apply(_ context.Context, couponID uint64, _, orderID string) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	f.applied = append(f.applied, orderID)
	f.journal.add("apply")
	return nil
}

func (f *fakeCoupons) Release(_ context.Context, couponID uint64, orderID string) error {
	f.journal.add("release")
	return nil
}

type fakePayments struct {
	saleErr error
	journal *journal
	sales   []decimal.Decimal
	voids   []string
}

func (f *fakePayments) Sale(_ context.Context, orderID string, amount decimal.Decimal, nonce string) (*port.Transaction, error) {
	if f.saleErr != nil {
		return nil, f.saleErr
	}
	f.sales = append(f.sales, amount)
	f.journal.add("sale")
	return &port.Transaction{ID: "tx-" + orderID[:8], Status: "submitted_for_settlement", Amount: amount}, nil
}

func (f *fakePayments) Void(_ context.Context, txID string) error {
	f.voids = append(f.voids, txID)
	f.journal.add("void")
	return nil
}

type fakeOrderRepo struct {
	mu        sync.Mutex
	orders    map[string]*domain.Order
	createErr error
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[string]*domain.Order)}
}

func (r *fakeOrderRepo) Create(_ context.Context, o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	cp := *o
	r.orders[o.ID] = &cp
	return nil
}

func (r *fakeOrderRepo) FindByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *fakeOrderRepo) ListByUser(_ context.Context, userID string, limit, offset int) ([]*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Order
	for _, o := range r.orders {
		if o.UserID == userID {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeOrderRepo) UpdateStatus(_ context.Context, id string, from, to domain.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if o.Status != from {
		return domain.ErrInvalidStatusTransition
	}
	o.Status = to
	return nil
}

func (r *fakeOrderRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []*domain.OrderConfirmation
}

func (n *fakeNotifier) PublishOrderConfirmation(_ context.Context, evt *domain.OrderConfirmation) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, evt)
	return nil
}

const pendingClaim = "__pending__"

type fakeIdempotency struct {
	mu    sync.Mutex
	store map[string]string
}

func newFakeIdempotency() *fakeIdempotency {
	return &fakeIdempotency{store: make(map[string]string)}
}

func (f *fakeIdempotency) Claim(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.store[key]
	if !ok {
		f.store[key] = pendingClaim
		return nil, nil
	}
	if v == pendingClaim {
		return nil, domain.ErrCheckoutInProgress
	}
	return []byte(v), nil
}

func (f *fakeIdempotency) Complete(_ context.Context, key string, response []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.store[key] = string(response)
	return nil
}

func (f *fakeIdempotency) Release(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.store[key] == pendingClaim {
		delete(f.store, key)
	}
	return nil
}

var errDatabaseDown = errors.New("database is down")
