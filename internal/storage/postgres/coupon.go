package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-orders/internal/domain/coupon"
)

const (
	getCouponByCodeSQL = `SELECT code, discount_type, value, min_purchase, usage_limit, used_count, active, expires_at
		FROM coupons WHERE code = $1`

	incrementCouponUsageSQL = `UPDATE coupons SET used_count = used_count + 1
		WHERE code = $1 AND active
		AND (expires_at IS NULL OR expires_at >= $2)
		AND (usage_limit IS NULL OR used_count < usage_limit)`

	decrementCouponUsageSQL = `UPDATE coupons SET used_count = GREATEST(used_count - 1, 0) WHERE code = $1`

	upsertCouponSQL = `INSERT INTO coupons (code, discount_type, value, min_purchase, usage_limit, used_count, active, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (code) DO UPDATE SET
			discount_type = EXCLUDED.discount_type,
			value = EXCLUDED.value,
			min_purchase = EXCLUDED.min_purchase,
			usage_limit = EXCLUDED.usage_limit,
			used_count = EXCLUDED.used_count,
			active = EXCLUDED.active,
			expires_at = EXCLUDED.expires_at`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
// Codes are stored in their normalized form.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon regardless of its state.
// Returns coupon.ErrNotFound when no coupon has this code.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &c, nil
}

// IncrementUsage consumes one use when the coupon is active, unexpired at
// now and below its limit.
func (r *CouponRepository) IncrementUsage(ctx context.Context, code string, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, incrementCouponUsageSQL, code, now)
	if err != nil {
		return false, fmt.Errorf("incrementing usage of coupon %q: %w", code, err)
	}
	return tag.RowsAffected() == 1, nil
}

// DecrementUsage returns one use, never going below zero.
func (r *CouponRepository) DecrementUsage(ctx context.Context, code string) error {
	_, err := r.pool.Exec(ctx, decrementCouponUsageSQL, code)
	if err != nil {
		return fmt.Errorf("decrementing usage of coupon %q: %w", code, err)
	}
	return nil
}

// Upsert creates or replaces a coupon.
func (r *CouponRepository) Upsert(ctx context.Context, c coupon.Coupon) error {
	code := coupon.NormalizeCode(c.Code)
	_, err := r.pool.Exec(ctx, upsertCouponSQL,
		code, string(c.DiscountType), c.Value, c.MinPurchase, c.UsageLimit, c.UsedCount, c.Active, c.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("upserting coupon %q: %w", code, err)
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c            coupon.Coupon
		discountType string
		usageLimit   *int32
		usedCount    int32
	)
	err := row.Scan(
		&c.Code, &discountType, &c.Value, &c.MinPurchase, &usageLimit, &usedCount, &c.Active, &c.ExpiresAt,
	)
	c.DiscountType = coupon.DiscountType(discountType)
	c.UsedCount = int(usedCount)
	if usageLimit != nil {
		limit := int(*usageLimit)
		c.UsageLimit = &limit
	}
	return c, err
}
