package handler

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sdrelite/marketbot/internal/core/domain"
	"github.com/sdrelite/marketbot/internal/core/service"
	"github.com/sdrelite/marketbot/internal/port"
)

// Minimal in-memory ports, enough to drive the router end to end.
type fakeStore struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
	products []domain.Product
}

func newFakeStore() *fakeStore {
	return &fakeStore{balances: make(map[string]decimal.Decimal)}
}

func (f *fakeStore) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[userID], nil
}

func (f *fakeStore) Credit(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	bal := f.balances[userID].Add(amount)
	f.balances[userID] = bal
	return bal, nil
}

func (f *fakeStore) Create(ctx context.Context, p domain.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.products {
		if existing.OwnerID == p.OwnerID && existing.Name == p.Name && !existing.Status.Terminal() {
			return port.ErrDuplicateName
		}
	}
	f.products = append(f.products, p)
	return nil
}

func (f *fakeStore) FindByOwnerAndName(ctx context.Context, ownerID, name string) (domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.products) - 1; i >= 0; i-- {
		if f.products[i].OwnerID == ownerID && f.products[i].Name == name {
			return f.products[i], nil
		}
	}
	return domain.Product{}, port.ErrNotFound
}

func (f *fakeStore) FindPendingApproval(ctx context.Context, name string) (domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.products {
		if p.Name == name && p.Status == domain.StatusPendingApproval {
			return p, nil
		}
	}
	return domain.Product{}, port.ErrNotFound
}

func (f *fakeStore) UpdateStatus(ctx context.Context, id string, expected, next domain.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.products {
		if f.products[i].ID == id {
			if f.products[i].Status != expected {
				return port.ErrConflict
			}
			f.products[i].Status = next
			return nil
		}
	}
	return port.ErrNotFound
}

func (f *fakeStore) ListByStatus(ctx context.Context, status domain.Status, limit int) ([]domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Product
	for _, p := range f.products {
		if p.Status == status {
			out = append(out, p)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeStore) DebitAndAdvance(ctx context.Context, ownerID, productID string, fee decimal.Decimal) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	bal := f.balances[ownerID]
	if bal.LessThan(fee) {
		return decimal.Zero, port.ErrInsufficientFunds
	}
	for i := range f.products {
		if f.products[i].ID == productID && f.products[i].OwnerID == ownerID {
			if f.products[i].Status != domain.StatusPendingPayment {
				return decimal.Zero, port.ErrConflict
			}
			f.products[i].Status = domain.StatusPendingApproval
			bal = bal.Sub(fee)
			f.balances[ownerID] = bal
			return bal, nil
		}
	}
	return decimal.Zero, port.ErrConflict
}

type fakeCache struct {
	mu    sync.Mutex
	locks map[string]bool
}

func newFakeCache() *fakeCache { return &fakeCache{locks: make(map[string]bool)} }

func (c *fakeCache) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.locks[key] {
		return false, nil
	}
	c.locks[key] = true
	return true, nil
}

func (c *fakeCache) ReleaseLock(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.locks, key)
	return nil
}

func (c *fakeCache) SetIdempotency(ctx context.Context, key string) (bool, error) {
	return true, nil
}

func newTestRouter(t *testing.T) (*TelegramRouter, *fakeStore, *service.LifecycleService) {
	t.Helper()
	store := newFakeStore()
	policy, err := domain.NewFeePolicy(decimal.NewFromInt(20))
	if err != nil {
		t.Fatalf("fee policy: %v", err)
	}
	svc := service.NewLifecycleService(store, store, store, newFakeCache(), service.Config{
		FeePolicy:    policy,
		Admins:       []string{"111", "222"},
		StoreTimeout: time.Second,
		LockTTL:      time.Second,
		QueueSize:    100,
	})
	go func() {
		for range svc.Events() {
		}
	}()
	return NewTelegramRouter(svc, "CFA", zap.NewNop()), store, svc
}

func TestHandle_Start(t *testing.T) {
	router, _, _ := newTestRouter(t)

	reply := router.Handle(context.Background(), "555", "start", nil)
	if !strings.Contains(reply, "Welcome") {
		t.Errorf("unexpected welcome text: %q", reply)
	}
}

func TestHandle_Balance(t *testing.T) {
	router, store, _ := newTestRouter(t)
	store.balances["555"] = decimal.NewFromInt(40)

	reply := router.Handle(context.Background(), "555", "balance", nil)
	if reply != "💰 Your wallet balance: 40 CFA" {
		t.Errorf("unexpected reply: %q", reply)
	}

	reply = router.Handle(context.Background(), "999", "balance", nil)
	if reply != "💰 Your wallet balance: 0 CFA" {
		t.Errorf("fresh wallet should read zero, got: %q", reply)
	}
}

func TestHandle_SubmitProduct(t *testing.T) {
	router, _, _ := newTestRouter(t)
	ctx := context.Background()

	reply := router.Handle(ctx, "555", "submit_product", nil)
	if reply != "Usage: /submit_product <ProductName> <Price>" {
		t.Errorf("unexpected usage reply: %q", reply)
	}

	reply = router.Handle(ctx, "555", "submit_product", []string{"Shoes", "fifty"})
	if reply != "Price must be a number." {
		t.Errorf("unexpected reply: %q", reply)
	}

	reply = router.Handle(ctx, "555", "submit_product", []string{"Shoes", "-5"})
	if reply != "Price must be a positive number." {
		t.Errorf("unexpected reply: %q", reply)
	}

	reply = router.Handle(ctx, "555", "submit_product", []string{"Shoes", "50"})
	if !strings.Contains(reply, "'Shoes' submitted") || !strings.Contains(reply, "Listing fee: 10 CFA") {
		t.Errorf("unexpected reply: %q", reply)
	}

	reply = router.Handle(ctx, "555", "submit_product", []string{"Shoes", "50"})
	if !strings.Contains(reply, "already have a product") {
		t.Errorf("unexpected duplicate reply: %q", reply)
	}
}

func TestHandle_PayListing(t *testing.T) {
	router, store, _ := newTestRouter(t)
	ctx := context.Background()

	reply := router.Handle(ctx, "555", "pay_listing", nil)
	if reply != "Usage: /pay_listing <ProductName>" {
		t.Errorf("unexpected usage reply: %q", reply)
	}

	reply = router.Handle(ctx, "555", "pay_listing", []string{"Ghost"})
	if reply != "❌ Product not found or already handled." {
		t.Errorf("unexpected reply: %q", reply)
	}

	store.balances["555"] = decimal.NewFromInt(5)
	router.Handle(ctx, "555", "submit_product", []string{"Bag", "100"})
	reply = router.Handle(ctx, "555", "pay_listing", []string{"Bag"})
	want := "❌ Insufficient funds!\nFee: 20 CFA\nYour balance: 5 CFA"
	if reply != want {
		t.Errorf("expected %q, got %q", want, reply)
	}

	store.balances["555"] = decimal.NewFromInt(100)
	router.Handle(ctx, "555", "submit_product", []string{"Shoes", "50"})
	reply = router.Handle(ctx, "555", "pay_listing", []string{"Shoes"})
	if reply != "✅ Payment successful! Admin will review your product." {
		t.Errorf("unexpected reply: %q", reply)
	}
}

func TestHandle_ApproveAndDeny(t *testing.T) {
	router, store, _ := newTestRouter(t)
	ctx := context.Background()

	store.balances["555"] = decimal.NewFromInt(100)
	router.Handle(ctx, "555", "submit_product", []string{"Shoes", "50"})
	router.Handle(ctx, "555", "pay_listing", []string{"Shoes"})

	reply := router.Handle(ctx, "555", "approve_product", []string{"Shoes"})
	if reply != "🚫 You are not authorized." {
		t.Errorf("unexpected reply: %q", reply)
	}

	reply = router.Handle(ctx, "111", "approve_product", []string{"Shoes"})
	if reply != "✅ Product 'Shoes' approved & posted." {
		t.Errorf("unexpected reply: %q", reply)
	}

	// Already handled
	reply = router.Handle(ctx, "222", "deny_product", []string{"Shoes"})
	if reply != "❌ No pending product found." {
		t.Errorf("unexpected reply: %q", reply)
	}
}

func TestHandle_UnknownCommandIsIgnored(t *testing.T) {
	router, _, _ := newTestRouter(t)

	if reply := router.Handle(context.Background(), "555", "moon", nil); reply != "" {
		t.Errorf("expected empty reply, got %q", reply)
	}
}
