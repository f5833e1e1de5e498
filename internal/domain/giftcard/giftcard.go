// Package giftcard guards stored-value gift card balances.
package giftcard

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-orders/internal/domain/fault"
)

var (
	ErrNotFound = fault.New(fault.KindNotFound, "gift_card_not_found", "giftCardCode",
		"gift card not found")
	ErrInactive = fault.New(fault.KindBusinessRule, "gift_card_inactive", "giftCardCode",
		"gift card is not active")
	ErrInsufficientBalance = fault.New(fault.KindBusinessRule, "insufficient_balance", "giftCardCode",
		"gift card balance is insufficient")
)

// GiftCard is a stored-value code.
type GiftCard struct {
	Code      string
	Balance   decimal.Decimal
	Active    bool
	CreatedAt time.Time
}

// Repository provides lookup and guarded mutation of gift card balances.
//
// Debit must test and debit in one step: it reports false, without changing
// anything, when the card is missing, inactive or holds less than amount.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*GiftCard, error)
	Debit(ctx context.Context, code string, amount decimal.Decimal) (bool, error)
	Credit(ctx context.Context, code string, amount decimal.Decimal) error
}

// NormalizeCode returns the canonical form of a gift card code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Ledger reads and debits gift card balances.
type Ledger struct {
	repo Repository
}

// NewLedger creates a Ledger backed by the given Repository.
func NewLedger(repo Repository) *Ledger {
	return &Ledger{repo: repo}
}

// CheckBalance returns the current balance of an active card.
func (l *Ledger) CheckBalance(ctx context.Context, code string) (decimal.Decimal, error) {
	gc, err := l.repo.FindByCode(ctx, NormalizeCode(code))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return decimal.Zero, ErrNotFound
		}
		return decimal.Zero, errors.Wrap(err, "lookup gift card")
	}
	if !gc.Active {
		return decimal.Zero, ErrInactive
	}
	return gc.Balance, nil
}

// Redeem debits amount from the card. It fails with ErrInsufficientBalance
// when a concurrent redemption got there first.
func (l *Ledger) Redeem(ctx context.Context, code string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fault.Invalid("amount", "redeem amount must be greater than 0")
	}

	ok, err := l.repo.Debit(ctx, NormalizeCode(code), amount)
	if err != nil {
		return errors.Wrap(err, "debit gift card")
	}
	if !ok {
		return ErrInsufficientBalance
	}
	return nil
}

// Restore credits back an amount taken by Redeem for a checkout that did not
// complete.
func (l *Ledger) Restore(ctx context.Context, code string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return nil
	}
	if err := l.repo.Credit(ctx, NormalizeCode(code), amount); err != nil {
		return errors.Wrap(err, "credit gift card")
	}
	return nil
}
