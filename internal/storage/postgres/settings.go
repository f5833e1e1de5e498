package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront-orders/internal/domain/pricing"
)

const (
	getSettingsSQL = `SELECT tax_enabled, tax_rate, tax_include_in_price,
		shipping_standard_rate, shipping_free_threshold, cod_enabled, cod_additional_fee
		FROM store_settings WHERE id = 1`

	saveSettingsSQL = `INSERT INTO store_settings (id, tax_enabled, tax_rate, tax_include_in_price,
		shipping_standard_rate, shipping_free_threshold, cod_enabled, cod_additional_fee, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (id) DO UPDATE SET
			tax_enabled = EXCLUDED.tax_enabled,
			tax_rate = EXCLUDED.tax_rate,
			tax_include_in_price = EXCLUDED.tax_include_in_price,
			shipping_standard_rate = EXCLUDED.shipping_standard_rate,
			shipping_free_threshold = EXCLUDED.shipping_free_threshold,
			cod_enabled = EXCLUDED.cod_enabled,
			cod_additional_fee = EXCLUDED.cod_additional_fee,
			updated_at = EXCLUDED.updated_at`
)

// SettingsRepository reads the single store settings row. Until the row is
// saved the configured defaults apply.
type SettingsRepository struct {
	pool     *pgxpool.Pool
	defaults pricing.Settings
}

// NewSettingsRepository returns a SettingsRepository that uses the given pool.
func NewSettingsRepository(pool *pgxpool.Pool, defaults pricing.Settings) *SettingsRepository {
	return &SettingsRepository{pool: pool, defaults: defaults}
}

// Settings returns a fresh snapshot of the store settings.
func (r *SettingsRepository) Settings(ctx context.Context) (pricing.Settings, error) {
	var s pricing.Settings
	err := r.pool.QueryRow(ctx, getSettingsSQL).Scan(
		&s.Tax.Enabled, &s.Tax.Rate, &s.Tax.IncludeInPrice,
		&s.Shipping.StandardRate, &s.Shipping.FreeShippingThreshold,
		&s.Payment.COD.Enabled, &s.Payment.COD.AdditionalFee,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r.defaults, nil
		}
		return pricing.Settings{}, fmt.Errorf("getting store settings: %w", err)
	}
	return s, nil
}

// Save replaces the store settings.
func (r *SettingsRepository) Save(ctx context.Context, s pricing.Settings) error {
	_, err := r.pool.Exec(ctx, saveSettingsSQL,
		s.Tax.Enabled, s.Tax.Rate, s.Tax.IncludeInPrice,
		s.Shipping.StandardRate, s.Shipping.FreeShippingThreshold,
		s.Payment.COD.Enabled, s.Payment.COD.AdditionalFee,
	)
	if err != nil {
		return fmt.Errorf("saving store settings: %w", err)
	}
	return nil
}
