package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidPrice = errors.New("price must be positive")
	ErrEmptyName    = errors.New("product name is empty")
)

type Status string

const (
	StatusPendingPayment  Status = "pending_payment"
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusDenied          Status = "denied"
)

// transitions is the full lifecycle graph. Terminal states have no entry.
var transitions = map[Status][]Status{
	StatusPendingPayment:  {StatusPendingApproval},
	StatusPendingApproval: {StatusApproved, StatusDenied},
}

// CanTransition reports whether the lifecycle defines a move from s to next.
func (s Status) CanTransition(next Status) bool {
	for _, n := range transitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPendingPayment, StatusPendingApproval, StatusApproved, StatusDenied:
		return st, nil
	}
	return "", fmt.Errorf("unknown product status %q", s)
}

type Product struct {
	ID         string
	OwnerID    string
	Name       string
	Price      decimal.Decimal
	ListingFee decimal.Decimal
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewProduct builds a pending_payment record for a fresh submission.
// The listing fee is computed once here and never recomputed.
func NewProduct(ownerID, name string, price, fee decimal.Decimal) (Product, error) {
	if strings.TrimSpace(name) == "" {
		return Product{}, ErrEmptyName
	}
	if price.Sign() <= 0 {
		return Product{}, ErrInvalidPrice
	}
	now := time.Now()
	return Product{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		Name:       name,
		Price:      price,
		ListingFee: fee,
		Status:     StatusPendingPayment,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}
