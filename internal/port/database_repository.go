package port

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/sdrelite/marketbot/internal/core/domain"
)

var (
	// ErrNotFound means no record matched the lookup.
	ErrNotFound = errors.New("record not found")

	// ErrConflict means a compare-and-swap lost to a concurrent update.
	ErrConflict = errors.New("status conflict")

	// ErrInsufficientFunds means a debit would push the balance below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrDuplicateName means the owner already has a non-terminal product
	// with that name.
	ErrDuplicateName = errors.New("duplicate product name")
)

type LedgerRepository interface {
	// Balance returns the wallet balance, zero when no wallet exists.
	Balance(ctx context.Context, userID string) (decimal.Decimal, error)

	// Credit atomically increments the balance, creating the wallet if
	// needed, and returns the new balance.
	Credit(ctx context.Context, userID string, amount decimal.Decimal) (decimal.Decimal, error)
}

type ProductRepository interface {
	// Create persists a new pending_payment product.
	Create(ctx context.Context, p domain.Product) error

	// FindByOwnerAndName returns the newest product for the pair,
	// regardless of status.
	FindByOwnerAndName(ctx context.Context, ownerID, name string) (domain.Product, error)

	// FindPendingApproval returns the earliest submitted pending_approval
	// product with the given name.
	FindPendingApproval(ctx context.Context, name string) (domain.Product, error)

	// UpdateStatus advances a product with compare-and-swap semantics:
	// it fails with ErrConflict unless the stored status equals expected.
	UpdateStatus(ctx context.Context, id string, expected, next domain.Status) error

	// ListByStatus returns up to limit products in submission order.
	ListByStatus(ctx context.Context, status domain.Status, limit int) ([]domain.Product, error)
}

// ListingTx is the one cross-store unit of work: pay debits the listing
// fee and advances the product to pending_approval atomically. No caller
// may observe one half without the other.
type ListingTx interface {
	// DebitAndAdvance returns the new balance on success. It fails with
	// ErrInsufficientFunds (no mutation) when the fee exceeds the balance
	// and ErrConflict (no mutation) when the product already left
	// pending_payment.
	DebitAndAdvance(ctx context.Context, ownerID, productID string, fee decimal.Decimal) (decimal.Decimal, error)
}
