package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet is created lazily: a user without a row simply has balance zero.
// Balance never goes below zero; the stores enforce it on every debit.
type Wallet struct {
	UserID    string
	Balance   decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}
