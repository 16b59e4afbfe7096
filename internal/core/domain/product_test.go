package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestStatusGraph(t *testing.T) {
	all := []Status{StatusPendingPayment, StatusPendingApproval, StatusApproved, StatusDenied}

	allowed := map[Status]map[Status]bool{
		StatusPendingPayment:  {StatusPendingApproval: true},
		StatusPendingApproval: {StatusApproved: true, StatusDenied: true},
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[from][to]
			if got := from.CanTransition(to); got != want {
				t.Errorf("%s -> %s: expected %v, got %v", from, to, want, got)
			}
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	if StatusPendingPayment.Terminal() || StatusPendingApproval.Terminal() {
		t.Error("pending statuses must not be terminal")
	}
	if !StatusApproved.Terminal() || !StatusDenied.Terminal() {
		t.Error("approved and denied must be terminal")
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range []string{"pending_payment", "pending_approval", "approved", "denied"} {
		status, err := ParseStatus(s)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", s, err)
		}
		if string(status) != s {
			t.Errorf("expected %s, got %s", s, status)
		}
	}

	if _, err := ParseStatus("shipped"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestNewProduct(t *testing.T) {
	price := decimal.NewFromInt(50)
	fee := decimal.NewFromInt(10)

	p, err := NewProduct("user-1", "Shoes", price, fee)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.ID == "" {
		t.Error("expected generated id")
	}
	if p.Status != StatusPendingPayment {
		t.Errorf("expected pending_payment, got %s", p.Status)
	}
	if !p.ListingFee.Equal(fee) {
		t.Errorf("expected fee %s, got %s", fee, p.ListingFee)
	}

	other, err := NewProduct("user-1", "Shoes", price, fee)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if other.ID == p.ID {
		t.Error("expected unique ids")
	}
}

func TestNewProduct_Invalid(t *testing.T) {
	if _, err := NewProduct("user-1", "  ", decimal.NewFromInt(50), decimal.NewFromInt(10)); !errors.Is(err, ErrEmptyName) {
		t.Errorf("expected ErrEmptyName, got %v", err)
	}
	if _, err := NewProduct("user-1", "Shoes", decimal.Zero, decimal.Zero); !errors.Is(err, ErrInvalidPrice) {
		t.Errorf("expected ErrInvalidPrice, got %v", err)
	}
}
