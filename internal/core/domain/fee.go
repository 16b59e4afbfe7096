package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// FeePolicy charges a fixed percentage of the product price as a
// listing fee before admin review.
type FeePolicy struct {
	percent decimal.Decimal
}

func NewFeePolicy(percent decimal.Decimal) (FeePolicy, error) {
	if percent.Sign() <= 0 || percent.GreaterThan(hundred) {
		return FeePolicy{}, fmt.Errorf("listing fee percent must be in (0, 100], got %s", percent)
	}
	return FeePolicy{percent: percent}, nil
}

// ListingFee returns price * percent / 100, rounded to cents.
func (p FeePolicy) ListingFee(price decimal.Decimal) (decimal.Decimal, error) {
	if price.Sign() <= 0 {
		return decimal.Zero, ErrInvalidPrice
	}
	return price.Mul(p.percent).Div(hundred).Round(2), nil
}
