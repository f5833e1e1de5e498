// Package memory provides in-process repositories for local runs and tests.
// Every guarded mutation tests and updates under one lock, so the ledgers
// keep the same race guarantees as the PostgreSQL repositories.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-orders/internal/domain/coupon"
	"github.com/xenking/storefront-orders/internal/domain/fault"
	"github.com/xenking/storefront-orders/internal/domain/giftcard"
	"github.com/xenking/storefront-orders/internal/domain/inventory"
	"github.com/xenking/storefront-orders/internal/domain/order"
	"github.com/xenking/storefront-orders/internal/domain/pricing"
	"github.com/xenking/storefront-orders/internal/domain/product"
)

var (
	_ product.Repository     = (*ProductRepository)(nil)
	_ inventory.Repository   = (*InventoryRepository)(nil)
	_ coupon.Repository      = (*CouponRepository)(nil)
	_ giftcard.Repository    = (*GiftCardRepository)(nil)
	_ order.Repository       = (*OrderRepository)(nil)
	_ order.SettingsProvider = (*SettingsRepository)(nil)
)

// ProductRepository is an in-memory product catalog.
type ProductRepository struct {
	mu       sync.RWMutex
	products map[string]product.Product
}

// NewProductRepository returns an empty catalog.
func NewProductRepository() *ProductRepository {
	return &ProductRepository{products: make(map[string]product.Product)}
}

// Upsert adds or replaces a product.
func (r *ProductRepository) Upsert(_ context.Context, p product.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[p.ID] = p
	return nil
}

// GetByIDs returns the products matching ids. Unknown IDs are skipped.
func (r *ProductRepository) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]product.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := r.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// InventoryRepository is in-memory stock keyed by product and variant.
type InventoryRepository struct {
	mu    sync.Mutex
	stock map[inventory.Key]int
}

// NewInventoryRepository returns empty stock.
func NewInventoryRepository() *InventoryRepository {
	return &InventoryRepository{stock: make(map[inventory.Key]int)}
}

// SetStock overwrites the stock of key.
func (r *InventoryRepository) SetStock(_ context.Context, key inventory.Key, stock int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stock[key] = stock
	return nil
}

// Stock returns the current stock of key.
func (r *InventoryRepository) Stock(key inventory.Key) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stock[key]
}

func (r *InventoryRepository) Decrement(_ context.Context, key inventory.Key, qty int) (int, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	have := r.stock[key]
	if have < qty {
		return have, false, nil
	}
	r.stock[key] = have - qty
	return have - qty, true, nil
}

func (r *InventoryRepository) Increment(_ context.Context, items []inventory.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, it := range items {
		r.stock[it.Key()] += it.Quantity
	}
	return nil
}

// CouponRepository is an in-memory coupon store.
type CouponRepository struct {
	mu      sync.Mutex
	coupons map[string]coupon.Coupon
}

// NewCouponRepository returns an empty coupon store.
func NewCouponRepository() *CouponRepository {
	return &CouponRepository{coupons: make(map[string]coupon.Coupon)}
}

// Upsert adds or replaces a coupon, normalizing its code.
func (r *CouponRepository) Upsert(_ context.Context, c coupon.Coupon) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.Code = coupon.NormalizeCode(c.Code)
	r.coupons[c.Code] = c
	return nil
}

func (r *CouponRepository) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.coupons[code]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	return &c, nil
}

func (r *CouponRepository) IncrementUsage(_ context.Context, code string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.coupons[code]
	switch {
	case !ok, !c.Active:
		return false, nil
	case c.ExpiresAt != nil && now.After(*c.ExpiresAt):
		return false, nil
	case c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit:
		return false, nil
	}
	c.UsedCount++
	r.coupons[code] = c
	return true, nil
}

func (r *CouponRepository) DecrementUsage(_ context.Context, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.coupons[code]; ok && c.UsedCount > 0 {
		c.UsedCount--
		r.coupons[code] = c
	}
	return nil
}

// GiftCardRepository is an in-memory gift card store.
type GiftCardRepository struct {
	mu    sync.Mutex
	cards map[string]giftcard.GiftCard
}

// NewGiftCardRepository returns an empty gift card store.
func NewGiftCardRepository() *GiftCardRepository {
	return &GiftCardRepository{cards: make(map[string]giftcard.GiftCard)}
}

// Upsert adds or replaces a gift card, normalizing its code.
func (r *GiftCardRepository) Upsert(_ context.Context, gc giftcard.GiftCard) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	gc.Code = giftcard.NormalizeCode(gc.Code)
	r.cards[gc.Code] = gc
	return nil
}

func (r *GiftCardRepository) FindByCode(_ context.Context, code string) (*giftcard.GiftCard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	gc, ok := r.cards[code]
	if !ok {
		return nil, giftcard.ErrNotFound
	}
	return &gc, nil
}

func (r *GiftCardRepository) Debit(_ context.Context, code string, amount decimal.Decimal) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	gc, ok := r.cards[code]
	if !ok || !gc.Active || gc.Balance.LessThan(amount) {
		return false, nil
	}
	gc.Balance = gc.Balance.Sub(amount)
	r.cards[code] = gc
	return true, nil
}

func (r *GiftCardRepository) Credit(_ context.Context, code string, amount decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	gc, ok := r.cards[code]
	if !ok {
		return giftcard.ErrNotFound
	}
	gc.Balance = gc.Balance.Add(amount)
	r.cards[code] = gc
	return nil
}

// OrderRepository is an in-memory order store with versioned updates.
type OrderRepository struct {
	mu     sync.RWMutex
	orders map[string]*order.Order
}

// NewOrderRepository returns an empty order store.
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{orders: make(map[string]*order.Order)}
}

func (r *OrderRepository) Create(_ context.Context, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[o.ID]; ok {
		return fault.ErrConflict
	}
	o.Version = 1
	r.orders[o.ID] = o.Clone()
	return nil
}

func (r *OrderRepository) Get(_ context.Context, id string) (*order.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o.Clone(), nil
}

func (r *OrderRepository) Update(_ context.Context, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.orders[o.ID]
	if !ok {
		return order.ErrNotFound
	}
	if cur.Version != o.Version {
		return fault.ErrConflict
	}
	o.Version++
	r.orders[o.ID] = o.Clone()
	return nil
}

// SettingsRepository holds the store pricing settings.
type SettingsRepository struct {
	mu       sync.RWMutex
	settings pricing.Settings
}

// NewSettingsRepository returns a store seeded with defaults.
func NewSettingsRepository(defaults pricing.Settings) *SettingsRepository {
	return &SettingsRepository{settings: defaults}
}

// Save replaces the settings.
func (r *SettingsRepository) Save(_ context.Context, s pricing.Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings = s
	return nil
}

func (r *SettingsRepository) Settings(context.Context) (pricing.Settings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.settings, nil
}
