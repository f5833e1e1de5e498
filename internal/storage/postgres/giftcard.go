package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-orders/internal/domain/giftcard"
)

const (
	getGiftCardByCodeSQL = `SELECT code, balance, active, created_at FROM gift_cards WHERE code = $1`

	debitGiftCardSQL = `UPDATE gift_cards SET balance = balance - $2
		WHERE code = $1 AND active AND balance >= $2`

	creditGiftCardSQL = `UPDATE gift_cards SET balance = balance + $2 WHERE code = $1`

	upsertGiftCardSQL = `INSERT INTO gift_cards (code, balance, active, created_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (code) DO UPDATE SET balance = EXCLUDED.balance, active = EXCLUDED.active`
)

var _ giftcard.Repository = (*GiftCardRepository)(nil)

// GiftCardRepository implements giftcard.Repository backed by PostgreSQL.
type GiftCardRepository struct {
	pool *pgxpool.Pool
}

// NewGiftCardRepository returns a GiftCardRepository that uses the given pool.
func NewGiftCardRepository(pool *pgxpool.Pool) *GiftCardRepository {
	return &GiftCardRepository{pool: pool}
}

func (r *GiftCardRepository) FindByCode(ctx context.Context, code string) (*giftcard.GiftCard, error) {
	rows, err := r.pool.Query(ctx, getGiftCardByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding gift card: %w", err)
	}

	gc, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[giftcard.GiftCard])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, giftcard.ErrNotFound
		}
		return nil, fmt.Errorf("finding gift card: %w", err)
	}
	return &gc, nil
}

func (r *GiftCardRepository) Debit(ctx context.Context, code string, amount decimal.Decimal) (bool, error) {
	tag, err := r.pool.Exec(ctx, debitGiftCardSQL, code, amount)
	if err != nil {
		return false, fmt.Errorf("debiting gift card: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *GiftCardRepository) Credit(ctx context.Context, code string, amount decimal.Decimal) error {
	tag, err := r.pool.Exec(ctx, creditGiftCardSQL, code, amount)
	if err != nil {
		return fmt.Errorf("crediting gift card: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return giftcard.ErrNotFound
	}
	return nil
}

// Upsert creates a gift card or replaces its balance and state.
func (r *GiftCardRepository) Upsert(ctx context.Context, gc giftcard.GiftCard) error {
	createdAt := gc.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := r.pool.Exec(ctx, upsertGiftCardSQL,
		giftcard.NormalizeCode(gc.Code), gc.Balance, gc.Active, createdAt,
	)
	if err != nil {
		return fmt.Errorf("upserting gift card: %w", err)
	}
	return nil
}
