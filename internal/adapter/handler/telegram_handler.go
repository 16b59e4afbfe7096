package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sdrelite/marketbot/internal/core/service"
)

// TelegramRouter maps chat commands onto lifecycle operations and
// renders user-visible replies. It is transport-free: the poller hands
// it an identity, a command and its arguments.
type TelegramRouter struct {
	svc      *service.LifecycleService
	currency string
	log      *zap.Logger
}

func NewTelegramRouter(svc *service.LifecycleService, currency string, log *zap.Logger) *TelegramRouter {
	return &TelegramRouter{svc: svc, currency: currency, log: log}
}

// Handle runs one command and returns the reply text. An empty reply
// means the command is not ours and should be ignored.
func (r *TelegramRouter) Handle(ctx context.Context, userID, command string, args []string) string {
	switch command {
	case "start":
		return "Welcome to SDR Elite Networking Wallet Bot!\n" +
			"Use /balance to check wallet or /submit_product to submit a product."
	case "balance":
		return r.balance(ctx, userID)
	case "submit_product":
		return r.submitProduct(ctx, userID, args)
	case "pay_listing":
		return r.payListing(ctx, userID, args)
	case "approve_product":
		return r.approveProduct(ctx, userID, args)
	case "deny_product":
		return r.denyProduct(ctx, userID, args)
	}
	return ""
}

func (r *TelegramRouter) balance(ctx context.Context, userID string) string {
	bal, err := r.svc.Balance(ctx, userID)
	if err != nil {
		return r.errorReply(userID, "balance", err)
	}
	return fmt.Sprintf("💰 Your wallet balance: %s %s", bal, r.currency)
}

func (r *TelegramRouter) submitProduct(ctx context.Context, userID string, args []string) string {
	if len(args) < 2 {
		return "Usage: /submit_product <ProductName> <Price>"
	}

	name := args[0]
	price, err := decimal.NewFromString(args[1])
	if err != nil {
		return "Price must be a number."
	}

	p, err := r.svc.Submit(ctx, userID, name, price)
	if err != nil {
		return r.errorReply(userID, "submit_product", err)
	}
	return fmt.Sprintf("🛒 Product '%s' submitted.\nListing fee: %s %s\nPay with /pay_listing %s",
		p.Name, p.ListingFee, r.currency, p.Name)
}

func (r *TelegramRouter) payListing(ctx context.Context, userID string, args []string) string {
	if len(args) < 1 {
		return "Usage: /pay_listing <ProductName>"
	}

	if _, err := r.svc.Pay(ctx, userID, args[0]); err != nil {
		return r.errorReply(userID, "pay_listing", err)
	}
	return "✅ Payment successful! Admin will review your product."
}

func (r *TelegramRouter) approveProduct(ctx context.Context, userID string, args []string) string {
	if len(args) < 1 {
		return "Usage: /approve_product <ProductName>"
	}

	p, err := r.svc.Approve(ctx, userID, args[0])
	if err != nil {
		return r.errorReply(userID, "approve_product", err)
	}
	return fmt.Sprintf("✅ Product '%s' approved & posted.", p.Name)
}

func (r *TelegramRouter) denyProduct(ctx context.Context, userID string, args []string) string {
	if len(args) < 1 {
		return "Usage: /deny_product <ProductName>"
	}

	p, err := r.svc.Deny(ctx, userID, args[0])
	if err != nil {
		return r.errorReply(userID, "deny_product", err)
	}
	return fmt.Sprintf("❌ Product '%s' denied.", p.Name)
}

func (r *TelegramRouter) errorReply(userID, command string, err error) string {
	var funds *service.InsufficientFundsError
	if errors.As(err, &funds) {
		return fmt.Sprintf("❌ Insufficient funds!\nFee: %s %s\nYour balance: %s %s",
			funds.Fee, r.currency, funds.Balance, r.currency)
	}

	switch {
	case errors.Is(err, service.ErrInvalidPrice):
		return "Price must be a positive number."
	case errors.Is(err, service.ErrDuplicateProduct):
		return "❌ You already have a product with this name awaiting review."
	case errors.Is(err, service.ErrProductNotFound):
		if command == "pay_listing" {
			return "❌ Product not found or already handled."
		}
		return "❌ No pending product found."
	case errors.Is(err, service.ErrProductAlreadyHandled):
		return "❌ No pending product found."
	case errors.Is(err, service.ErrInvalidTransition):
		return "❌ Product is not awaiting payment."
	case errors.Is(err, service.ErrUnauthorized):
		return "🚫 You are not authorized."
	case errors.Is(err, service.ErrConcurrencyConflict):
		return "⏳ That product is already being processed, try again in a moment."
	case errors.Is(err, service.ErrStoreUnavailable):
		return "⚠️ Temporary storage issue, please try again."
	}

	r.log.Error("command failed",
		zap.String("command", command),
		zap.String("user_id", userID),
		zap.Error(err))
	return "⚠️ Something went wrong, please try again."
}
