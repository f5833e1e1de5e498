package app

import (
	"context"
	"os"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-orders/internal/domain/coupon"
	"github.com/xenking/storefront-orders/internal/domain/giftcard"
	"github.com/xenking/storefront-orders/internal/domain/inventory"
	"github.com/xenking/storefront-orders/internal/domain/order"
	"github.com/xenking/storefront-orders/internal/domain/pricing"
	"github.com/xenking/storefront-orders/internal/domain/product"
	"github.com/xenking/storefront-orders/internal/storage/memory"
	"github.com/xenking/storefront-orders/internal/storage/postgres"
	"github.com/xenking/storefront-orders/internal/storage/seed"
	"github.com/xenking/storefront-orders/pkg/health"
)

// stores is the set of repositories backing the services, whichever driver
// provides them.
type stores struct {
	products  product.Repository
	inventory inventory.Repository
	coupons   coupon.Repository
	giftCards giftcard.Repository
	orders    order.Repository
	settings  order.SettingsProvider
	seed      seed.Store

	// pinger is nil for the memory driver.
	pinger health.Pinger
	close  func()
}

func openStorage(ctx context.Context, cfg StorageConfig, defaults pricing.Settings) (*stores, error) {
	lg := zctx.From(ctx)

	var (
		s   *stores
		err error
	)
	switch cfg.Driver {
	case DriverMemory:
		s = memoryStores(defaults)
	case DriverPostgres:
		s, err = postgresStores(ctx, cfg, defaults)
	default:
		err = errors.Errorf("unknown storage driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	lg.Info("Storage opened", zap.String("driver", cfg.Driver))

	raw, err := seedDocument(cfg)
	if err != nil {
		s.close()
		return nil, err
	}
	if raw == nil {
		return s, nil
	}
	data, err := seed.Decode(raw)
	if err != nil {
		s.close()
		return nil, errors.Wrap(err, "decode seed")
	}
	stats, err := seed.Apply(ctx, data, s.seed)
	if err != nil {
		s.close()
		return nil, errors.Wrap(err, "apply seed")
	}
	lg.Info("Seed applied",
		zap.Int("products", stats.Products),
		zap.Int("stock", stats.Stock),
		zap.Int("coupons", stats.Coupons),
		zap.Int("gift_cards", stats.GiftCards),
	)
	return s, nil
}

// seedDocument returns the configured seed file, the demo catalog for an
// unseeded memory store, or nil.
func seedDocument(cfg StorageConfig) ([]byte, error) {
	if cfg.SeedFile != "" {
		raw, err := os.ReadFile(cfg.SeedFile)
		if err != nil {
			return nil, errors.Wrap(err, "read seed file")
		}
		return raw, nil
	}
	if cfg.Driver == DriverMemory {
		return seed.Demo, nil
	}
	return nil, nil
}

func memoryStores(defaults pricing.Settings) *stores {
	var (
		products  = memory.NewProductRepository()
		stock     = memory.NewInventoryRepository()
		coupons   = memory.NewCouponRepository()
		giftCards = memory.NewGiftCardRepository()
		settings  = memory.NewSettingsRepository(defaults)
	)
	return &stores{
		products:  products,
		inventory: stock,
		coupons:   coupons,
		giftCards: giftCards,
		orders:    memory.NewOrderRepository(),
		settings:  settings,
		seed: seed.Store{
			Products:  products,
			Inventory: stock,
			Coupons:   coupons,
			GiftCards: giftCards,
			Settings:  settings,
		},
		close: func() {},
	}
}

func postgresStores(ctx context.Context, cfg StorageConfig, defaults pricing.Settings) (*stores, error) {
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "create db pool")
	}
	if cfg.Migrate {
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, errors.Wrap(err, "run migrations")
		}
	}

	var (
		products  = postgres.NewProductRepository(pool)
		stock     = postgres.NewInventoryRepository(pool)
		coupons   = postgres.NewCouponRepository(pool)
		giftCards = postgres.NewGiftCardRepository(pool)
		settings  = postgres.NewSettingsRepository(pool, defaults)
	)
	return &stores{
		products:  products,
		inventory: stock,
		coupons:   coupons,
		giftCards: giftCards,
		orders:    postgres.NewOrderRepository(pool),
		settings:  settings,
		seed: seed.Store{
			Products:  products,
			Inventory: stock,
			Coupons:   coupons,
			GiftCards: giftCards,
			Settings:  settings,
		},
		pinger: pool,
		close:  pool.Close,
	}, nil
}
