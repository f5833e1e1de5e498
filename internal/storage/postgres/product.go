package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-orders/internal/domain/product"
)

const (
	getProductsByIDsSQL = `SELECT id, title, price FROM products WHERE id = ANY($1)`

	getVariantsByProductIDsSQL = `SELECT product_id, id, title, price
		FROM product_variants WHERE product_id = ANY($1) ORDER BY product_id, id`

	upsertProductSQL = `INSERT INTO products (id, title, price) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, price = EXCLUDED.price`

	deleteVariantsSQL = `DELETE FROM product_variants WHERE product_id = $1`

	insertVariantSQL = `INSERT INTO product_variants (product_id, id, title, price) VALUES ($1, $2, $3, $4)`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// GetByIDs returns the products matching ids together with their variants.
// Unknown IDs are silently skipped.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	if len(products) == 0 {
		return products, nil
	}

	rows, err = r.pool.Query(ctx, getVariantsByProductIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting product variants: %w", err)
	}
	variants, err := pgx.CollectRows(rows, scanVariant)
	if err != nil {
		return nil, fmt.Errorf("getting product variants: %w", err)
	}

	byProduct := make(map[string]int, len(products))
	for i, p := range products {
		byProduct[p.ID] = i
	}
	for _, v := range variants {
		if i, ok := byProduct[v.productID]; ok {
			products[i].Variants = append(products[i].Variants, v.Variant)
		}
	}
	return products, nil
}

// Upsert creates or replaces a product and its full variant list.
func (r *ProductRepository) Upsert(ctx context.Context, p product.Product) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, upsertProductSQL, p.ID, p.Title, p.Price); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, deleteVariantsSQL, p.ID); err != nil {
			return err
		}
		for _, v := range p.Variants {
			if _, err := tx.Exec(ctx, insertVariantSQL, p.ID, v.ID, v.Title, v.Price); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("upserting product %q: %w", p.ID, err)
	}
	return nil
}

type variantRow struct {
	productID string
	product.Variant
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(&p.ID, &p.Title, &p.Price)
	return p, err
}

func scanVariant(row pgx.CollectableRow) (variantRow, error) {
	var v variantRow
	err := row.Scan(&v.productID, &v.ID, &v.Title, &v.Price)
	return v, err
}
