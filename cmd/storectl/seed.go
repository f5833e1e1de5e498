package main

import (
	"log/slog"
	"os"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	"github.com/xenking/storefront-orders/internal/domain/pricing"
	"github.com/xenking/storefront-orders/internal/storage/postgres"
	"github.com/xenking/storefront-orders/internal/storage/seed"
)

func newSeedCmd(opts *rootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load products, stock, coupons, gift cards and settings",
		Long: `Seed upserts every record of a JSON seed document. Without --file the
built-in demo catalog is loaded. Running it twice leaves the same data.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw := seed.Demo
			if file != "" {
				var err error
				if raw, err = os.ReadFile(file); err != nil {
					return errors.Wrap(err, "read seed file")
				}
			}
			data, err := seed.Decode(raw)
			if err != nil {
				return errors.Wrap(err, "decode seed")
			}

			ctx := cmd.Context()
			pool, err := opts.connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			stats, err := seed.Apply(ctx, data, seed.Store{
				Products:  postgres.NewProductRepository(pool),
				Inventory: postgres.NewInventoryRepository(pool),
				Coupons:   postgres.NewCouponRepository(pool),
				GiftCards: postgres.NewGiftCardRepository(pool),
				Settings:  postgres.NewSettingsRepository(pool, pricing.Settings{}),
			})
			if err != nil {
				return errors.Wrap(err, "apply seed")
			}

			slog.Info("seed applied",
				slog.Int("products", stats.Products),
				slog.Int("stock", stats.Stock),
				slog.Int("coupons", stats.Coupons),
				slog.Int("gift_cards", stats.GiftCards),
				slog.Bool("settings", stats.Settings),
			)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "seed document (defaults to the demo catalog)")
	return cmd
}
