package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-orders/internal/domain/inventory"
)

const (
	decrementStockSQL = `UPDATE inventory SET stock = stock - $3
		WHERE product_id = $1 AND variant_id = $2 AND stock >= $3
		RETURNING stock`

	getStockSQL = `SELECT stock FROM inventory WHERE product_id = $1 AND variant_id = $2`

	// Quantities are summed per key first: ON CONFLICT cannot touch the same
	// row twice in one statement.
	incrementStockSQL = `INSERT INTO inventory (product_id, variant_id, stock)
		SELECT product_id, variant_id, SUM(quantity)
		FROM unnest($1::text[], $2::text[], $3::int[]) AS t(product_id, variant_id, quantity)
		GROUP BY product_id, variant_id
		ON CONFLICT (product_id, variant_id) DO UPDATE SET stock = inventory.stock + EXCLUDED.stock`

	setStockSQL = `INSERT INTO inventory (product_id, variant_id, stock) VALUES ($1, $2, $3)
		ON CONFLICT (product_id, variant_id) DO UPDATE SET stock = EXCLUDED.stock`
)

var _ inventory.Repository = (*InventoryRepository)(nil)

// InventoryRepository implements inventory.Repository backed by PostgreSQL.
type InventoryRepository struct {
	pool *pgxpool.Pool
}

// NewInventoryRepository returns an InventoryRepository that uses the given pool.
func NewInventoryRepository(pool *pgxpool.Pool) *InventoryRepository {
	return &InventoryRepository{pool: pool}
}

// Decrement subtracts qty from the stock of key if enough is available.
func (r *InventoryRepository) Decrement(ctx context.Context, key inventory.Key, qty int) (int, bool, error) {
	var remaining int
	err := r.pool.QueryRow(ctx, decrementStockSQL, key.ProductID, key.VariantID, qty).Scan(&remaining)
	if err == nil {
		return remaining, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, fmt.Errorf("decrementing stock of %s: %w", key, err)
	}

	available, err := r.stock(ctx, key)
	if err != nil {
		return 0, false, err
	}
	return available, false, nil
}

// Increment adds all items back to stock in a single statement.
func (r *InventoryRepository) Increment(ctx context.Context, items []inventory.Item) error {
	if len(items) == 0 {
		return nil
	}

	productIDs := make([]string, len(items))
	variantIDs := make([]string, len(items))
	quantities := make([]int32, len(items))
	for i, it := range items {
		productIDs[i] = it.ProductID
		variantIDs[i] = it.VariantID
		quantities[i] = int32(it.Quantity)
	}

	_, err := r.pool.Exec(ctx, incrementStockSQL, productIDs, variantIDs, quantities)
	if err != nil {
		return fmt.Errorf("incrementing stock of %d items: %w", len(items), err)
	}
	return nil
}

// SetStock overwrites the stock level of key.
func (r *InventoryRepository) SetStock(ctx context.Context, key inventory.Key, stock int) error {
	_, err := r.pool.Exec(ctx, setStockSQL, key.ProductID, key.VariantID, stock)
	if err != nil {
		return fmt.Errorf("setting stock of %s: %w", key, err)
	}
	return nil
}

// Stock returns the current stock of key. A missing record counts as zero.
func (r *InventoryRepository) Stock(ctx context.Context, key inventory.Key) (int, error) {
	return r.stock(ctx, key)
}

func (r *InventoryRepository) stock(ctx context.Context, key inventory.Key) (int, error) {
	var stock int
	err := r.pool.QueryRow(ctx, getStockSQL, key.ProductID, key.VariantID).Scan(&stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("getting stock of %s: %w", key, err)
	}
	return stock, nil
}
