package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sdrelite/marketbot/internal/core/domain"
	"github.com/sdrelite/marketbot/internal/port"
)

var (
	ErrInvalidPrice          = domain.ErrInvalidPrice
	ErrInvalidAmount         = errors.New("amount must be positive")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrProductNotFound       = errors.New("product not found")
	ErrProductAlreadyHandled = errors.New("product already handled")
	ErrInvalidTransition     = errors.New("invalid transition")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrConcurrencyConflict   = errors.New("concurrent operation in progress")
	ErrDuplicateProduct      = errors.New("product already submitted")
	ErrStoreUnavailable      = errors.New("store unavailable")
)

// InsufficientFundsError carries the amounts needed to tell the seller
// what the fee was and what they actually hold. It unwraps to
// ErrInsufficientFunds.
type InsufficientFundsError struct {
	Fee     decimal.Decimal
	Balance decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: fee %s, balance %s", e.Fee, e.Balance)
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

type Config struct {
	FeePolicy    domain.FeePolicy
	Admins       []string
	StoreTimeout time.Duration
	LockTTL      time.Duration
	QueueSize    int
}

// LifecycleService is the only writer of the ledger and product stores.
// Every committed transition is emitted on the event queue; the
// dispatcher consumes it out of band.
type LifecycleService struct {
	ledger   port.LedgerRepository
	products port.ProductRepository
	listing  port.ListingTx
	cache    port.CacheRepository
	fees     domain.FeePolicy
	admins   map[string]struct{}
	timeout  time.Duration
	lockTTL  time.Duration

	mu     sync.RWMutex
	closed bool
	events chan domain.Event
}

func NewLifecycleService(ledger port.LedgerRepository, products port.ProductRepository, listing port.ListingTx, cache port.CacheRepository, cfg Config) *LifecycleService {
	admins := make(map[string]struct{}, len(cfg.Admins))
	for _, id := range cfg.Admins {
		admins[id] = struct{}{}
	}
	return &LifecycleService{
		ledger:   ledger,
		products: products,
		listing:  listing,
		cache:    cache,
		fees:     cfg.FeePolicy,
		admins:   admins,
		timeout:  cfg.StoreTimeout,
		lockTTL:  cfg.LockTTL,
		events:   make(chan domain.Event, cfg.QueueSize),
	}
}

// Balance returns the caller's wallet balance, zero for a fresh wallet.
func (s *LifecycleService) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	bal, err := s.ledger.Balance(ctx, userID)
	if err != nil {
		return decimal.Zero, s.storeErr("read balance", err)
	}
	return bal, nil
}

// Credit tops up a wallet. Used by the back-office surface only; the
// chat commands never credit funds.
func (s *LifecycleService) Credit(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.Sign() <= 0 {
		return decimal.Zero, ErrInvalidAmount
	}
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	bal, err := s.ledger.Credit(ctx, userID, amount)
	if err != nil {
		return decimal.Zero, s.storeErr("credit wallet", err)
	}
	return bal, nil
}

// Submit creates a pending_payment record. No funds are touched.
func (s *LifecycleService) Submit(ctx context.Context, ownerID, name string, price decimal.Decimal) (domain.Product, error) {
	fee, err := s.fees.ListingFee(price)
	if err != nil {
		return domain.Product{}, err
	}
	p, err := domain.NewProduct(ownerID, name, price, fee)
	if err != nil {
		return domain.Product{}, err
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if err := s.products.Create(ctx, p); err != nil {
		if errors.Is(err, port.ErrDuplicateName) {
			return domain.Product{}, ErrDuplicateProduct
		}
		return domain.Product{}, s.storeErr("create product", err)
	}
	return p, nil
}

// Pay debits the listing fee and advances the caller's product to
// pending_approval as one observable unit. On success every admin is
// notified.
func (s *LifecycleService) Pay(ctx context.Context, ownerID, name string) (domain.Product, error) {
	lockKey := "pay:" + ownerID + ":" + name
	lockCtx, cancelLock := s.storeCtx(ctx)
	held, err := s.cache.AcquireLock(lockCtx, lockKey, s.lockTTL)
	cancelLock()
	if err != nil {
		return domain.Product{}, s.storeErr("acquire pay lock", err)
	}
	if !held {
		return domain.Product{}, ErrConcurrencyConflict
	}
	defer s.cache.ReleaseLock(context.Background(), lockKey)

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	p, err := s.products.FindByOwnerAndName(sctx, ownerID, name)
	if err != nil {
		if errors.Is(err, port.ErrNotFound) {
			return domain.Product{}, ErrProductNotFound
		}
		return domain.Product{}, s.storeErr("find product", err)
	}
	if !p.Status.CanTransition(domain.StatusPendingApproval) {
		return domain.Product{}, ErrInvalidTransition
	}

	if _, err := s.listing.DebitAndAdvance(sctx, ownerID, p.ID, p.ListingFee); err != nil {
		switch {
		case errors.Is(err, port.ErrInsufficientFunds):
			bal, balErr := s.ledger.Balance(sctx, ownerID)
			if balErr != nil {
				bal = decimal.Zero
			}
			return domain.Product{}, &InsufficientFundsError{Fee: p.ListingFee, Balance: bal}
		case errors.Is(err, port.ErrConflict):
			return domain.Product{}, ErrProductAlreadyHandled
		default:
			return domain.Product{}, s.storeErr("debit and advance", err)
		}
	}

	p.Status = domain.StatusPendingApproval
	p.UpdatedAt = time.Now()
	s.emit(domain.EventProductPendingApproval, p)
	return p, nil
}

// Approve moves a pending_approval product to approved and announces it
// on the public channel. Admin-only.
func (s *LifecycleService) Approve(ctx context.Context, adminID, name string) (domain.Product, error) {
	return s.review(ctx, adminID, name, domain.StatusApproved, domain.EventProductApproved)
}

// Deny moves a pending_approval product to denied and notifies the
// seller. Admin-only.
func (s *LifecycleService) Deny(ctx context.Context, adminID, name string) (domain.Product, error) {
	return s.review(ctx, adminID, name, domain.StatusDenied, domain.EventProductDenied)
}

func (s *LifecycleService) review(ctx context.Context, adminID, name string, next domain.Status, eventType domain.EventType) (domain.Product, error) {
	if _, ok := s.admins[adminID]; !ok {
		return domain.Product{}, ErrUnauthorized
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	p, err := s.products.FindPendingApproval(sctx, name)
	if err != nil {
		if errors.Is(err, port.ErrNotFound) {
			return domain.Product{}, ErrProductNotFound
		}
		return domain.Product{}, s.storeErr("find pending product", err)
	}

	// Two admins racing on the same product resolve here: the CAS picks
	// exactly one winner, the loser sees the conflict.
	if err := s.products.UpdateStatus(sctx, p.ID, domain.StatusPendingApproval, next); err != nil {
		if errors.Is(err, port.ErrConflict) {
			return domain.Product{}, ErrProductAlreadyHandled
		}
		return domain.Product{}, s.storeErr("update status", err)
	}

	p.Status = next
	p.UpdatedAt = time.Now()
	s.emit(eventType, p)
	return p, nil
}

// ListProducts serves the back-office product queries.
func (s *LifecycleService) ListProducts(ctx context.Context, status domain.Status, limit int) ([]domain.Product, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	products, err := s.products.ListByStatus(ctx, status, limit)
	if err != nil {
		return nil, s.storeErr("list products", err)
	}
	return products, nil
}

// Events exposes the lifecycle event queue for the dispatcher workers.
func (s *LifecycleService) Events() <-chan domain.Event {
	return s.events
}

// Close stops the event queue. Safe to call more than once. A command
// that commits while Close runs keeps its transition; only the
// notification event is dropped, which at-least-once delivery permits.
func (s *LifecycleService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.events)
}

func (s *LifecycleService) emit(eventType domain.EventType, p domain.Product) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return
	}
	s.events <- domain.Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Product:    p,
		OccurredAt: time.Now(),
	}
}

func (s *LifecycleService) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *LifecycleService) storeErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, ErrStoreUnavailable)
	}
	return fmt.Errorf("%s: %w", op, err)
}
