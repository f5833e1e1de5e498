package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-orders/internal/domain/fault"
	"github.com/xenking/storefront-orders/internal/domain/order"
	"github.com/xenking/storefront-orders/internal/domain/pricing"
)

const (
	orderColumns = `id, lines, shipping_address, payment_method, coupon_code, gift_card_code,
		subtotal, discount, shipping_fee, tax, payment_fee, gift_card_applied, total, final_total,
		status, refunds, timeline, restocked, version, created_at, updated_at`

	createOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	// Only the mutable part of an order is written back. Lines, address and
	// money fields are fixed at checkout.
	updateOrderSQL = `UPDATE orders SET status = $3, refunds = $4, timeline = $5, restocked = $6,
		updated_at = $7, version = version + 1
		WHERE id = $1 AND version = $2`

	orderExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Lines,
// address, refunds and timeline live in JSONB columns.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order at version 1.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	_, err := r.pool.Exec(ctx, createOrderSQL,
		o.ID, nonNil(o.Lines), o.ShippingAddress, string(o.PaymentMethod), o.CouponCode, o.GiftCardCode,
		o.Subtotal, o.Discount, o.ShippingFee, o.Tax, o.PaymentFee, o.GiftCardApplied, o.Total, o.FinalTotal,
		string(o.Status), nonNil(o.Refunds), nonNil(o.Timeline), o.Restocked, int64(1), o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fault.ErrConflict
		}
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	o.Version = 1
	return nil
}

// Get returns the order with the given id or order.ErrNotFound.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return o, nil
}

// Update writes the mutable fields of o if the stored version still matches.
func (r *OrderRepository) Update(ctx context.Context, o *order.Order) error {
	tag, err := r.pool.Exec(ctx, updateOrderSQL,
		o.ID, o.Version, string(o.Status), nonNil(o.Refunds), nonNil(o.Timeline), o.Restocked, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("updating order %q: %w", o.ID, err)
	}
	if tag.RowsAffected() == 1 {
		o.Version++
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, orderExistsSQL, o.ID).Scan(&exists); err != nil {
		return fmt.Errorf("checking order %q: %w", o.ID, err)
	}
	if !exists {
		return order.ErrNotFound
	}
	return fault.ErrConflict
}

func scanOrder(row pgx.CollectableRow) (*order.Order, error) {
	var (
		o             order.Order
		paymentMethod string
		status        string
	)
	err := row.Scan(
		&o.ID, &o.Lines, &o.ShippingAddress, &paymentMethod, &o.CouponCode, &o.GiftCardCode,
		&o.Subtotal, &o.Discount, &o.ShippingFee, &o.Tax, &o.PaymentFee, &o.GiftCardApplied, &o.Total, &o.FinalTotal,
		&status, &o.Refunds, &o.Timeline, &o.Restocked, &o.Version, &o.CreatedAt, &o.UpdatedAt,
	)
	o.PaymentMethod = pricing.PaymentMethod(paymentMethod)
	o.Status = order.Status(status)
	return &o, err
}

// nonNil keeps empty JSONB arrays from being stored as JSON null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
