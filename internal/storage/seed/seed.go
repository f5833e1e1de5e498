// Package seed loads catalog, stock, coupons, gift cards and store settings
// from a JSON document into any storage driver.
package seed

import (
	"context"
	_ "embed"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-orders/internal/domain/coupon"
	"github.com/xenking/storefront-orders/internal/domain/giftcard"
	"github.com/xenking/storefront-orders/internal/domain/inventory"
	"github.com/xenking/storefront-orders/internal/domain/pricing"
	"github.com/xenking/storefront-orders/internal/domain/product"
	"github.com/xenking/storefront-orders/internal/wire"
)

// Demo is a small catalog used when the memory driver starts without a seed
// file.
//
//go:embed demo.json
var Demo []byte

// Data is a decoded seed document.
type Data struct {
	Products  []product.Product
	Stock     []inventory.Item
	Coupons   []coupon.Coupon
	GiftCards []giftcard.GiftCard
	Settings  *pricing.Settings
}

// Store receives seed data. Both storage drivers implement every method.
type Store struct {
	Products interface {
		Upsert(ctx context.Context, p product.Product) error
	}
	Inventory interface {
		SetStock(ctx context.Context, key inventory.Key, stock int) error
	}
	Coupons interface {
		Upsert(ctx context.Context, c coupon.Coupon) error
	}
	GiftCards interface {
		Upsert(ctx context.Context, gc giftcard.GiftCard) error
	}
	Settings interface {
		Save(ctx context.Context, s pricing.Settings) error
	}
}

// Stats counts what Apply wrote.
type Stats struct {
	Products  int
	Stock     int
	Coupons   int
	GiftCards int
	Settings  bool
}

// Apply writes data to s. Records are upserted, so applying the same
// document twice is harmless.
func Apply(ctx context.Context, data *Data, s Store) (Stats, error) {
	var st Stats
	for _, p := range data.Products {
		if err := s.Products.Upsert(ctx, p); err != nil {
			return st, errors.Wrapf(err, "product %s", p.ID)
		}
		st.Products++
	}
	for _, it := range data.Stock {
		if err := s.Inventory.SetStock(ctx, it.Key(), it.Quantity); err != nil {
			return st, errors.Wrapf(err, "stock %s", it.Key())
		}
		st.Stock++
	}
	for _, c := range data.Coupons {
		if err := s.Coupons.Upsert(ctx, c); err != nil {
			return st, errors.Wrapf(err, "coupon %s", c.Code)
		}
		st.Coupons++
	}
	for _, gc := range data.GiftCards {
		if err := s.GiftCards.Upsert(ctx, gc); err != nil {
			return st, errors.Wrapf(err, "gift card %s", gc.Code)
		}
		st.GiftCards++
	}
	if data.Settings != nil {
		if err := s.Settings.Save(ctx, *data.Settings); err != nil {
			return st, errors.Wrap(err, "settings")
		}
		st.Settings = true
	}
	return st, nil
}

// Decode parses a seed document.
func Decode(raw []byte) (*Data, error) {
	var data Data
	err := jx.DecodeBytes(raw).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "products":
			return d.Arr(func(d *jx.Decoder) error {
				p, err := decodeProduct(d)
				data.Products = append(data.Products, p)
				return err
			})
		case "stock":
			return d.Arr(func(d *jx.Decoder) error {
				it, err := decodeStock(d)
				data.Stock = append(data.Stock, it)
				return err
			})
		case "coupons":
			return d.Arr(func(d *jx.Decoder) error {
				c, err := decodeCoupon(d)
				data.Coupons = append(data.Coupons, c)
				return err
			})
		case "giftCards":
			return d.Arr(func(d *jx.Decoder) error {
				gc, err := DecodeGiftCard(d)
				data.GiftCards = append(data.GiftCards, gc)
				return err
			})
		case "settings":
			s, err := decodeSettings(d)
			if err != nil {
				return err
			}
			data.Settings = &s
			return nil
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode seed")
	}
	return &data, nil
}

func decodeProduct(d *jx.Decoder) (product.Product, error) {
	var p product.Product
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = d.Str()
		case "title":
			p.Title, err = d.Str()
		case "price":
			p.Price, err = wire.DecodeDecimal(d)
		case "variants":
			err = d.Arr(func(d *jx.Decoder) error {
				var v product.Variant
				err := d.Obj(func(d *jx.Decoder, key string) error {
					var err error
					switch key {
					case "id":
						v.ID, err = d.Str()
					case "title":
						v.Title, err = d.Str()
					case "price":
						v.Price, err = wire.DecodeDecimal(d)
					default:
						err = d.Skip()
					}
					return err
				})
				p.Variants = append(p.Variants, v)
				return err
			})
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, key)
	})
	if err == nil && p.ID == "" {
		err = errors.New("product without id")
	}
	return p, err
}

func decodeStock(d *jx.Decoder) (inventory.Item, error) {
	var it inventory.Item
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "productId":
			it.ProductID, err = d.Str()
		case "variantId":
			it.VariantID, err = d.Str()
		case "quantity":
			it.Quantity, err = d.Int()
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, key)
	})
	if err == nil && it.Quantity < 0 {
		err = errors.Errorf("negative stock for %s", it.Key())
	}
	return it, err
}

func decodeCoupon(d *jx.Decoder) (coupon.Coupon, error) {
	c := coupon.Coupon{Active: true}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			c.Code, err = d.Str()
		case "discountType":
			var t string
			t, err = d.Str()
			c.DiscountType = coupon.DiscountType(t)
		case "value":
			c.Value, err = wire.DecodeDecimal(d)
		case "minPurchase":
			c.MinPurchase, err = wire.DecodeDecimal(d)
		case "usageLimit":
			if d.Next() == jx.Null {
				return d.Null()
			}
			var limit int
			limit, err = d.Int()
			c.UsageLimit = &limit
		case "usedCount":
			c.UsedCount, err = d.Int()
		case "active":
			c.Active, err = d.Bool()
		case "expiresAt":
			c.ExpiresAt, err = wire.DecodeOptTime(d)
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, key)
	})
	if err != nil {
		return c, err
	}
	return c, validateCoupon(c)
}

// validateCoupon mirrors the coupons table constraints.
func validateCoupon(c coupon.Coupon) error {
	switch {
	case coupon.NormalizeCode(c.Code) == "":
		return errors.New("coupon without code")
	case !c.DiscountType.Valid():
		return errors.Errorf("coupon %s: unknown discount type %q", c.Code, c.DiscountType)
	case c.Value.IsNegative():
		return errors.Errorf("coupon %s: negative value", c.Code)
	case c.DiscountType == coupon.DiscountPercentage && c.Value.GreaterThan(decimal.NewFromInt(100)):
		return errors.Errorf("coupon %s: percentage above 100", c.Code)
	case c.MinPurchase.IsNegative():
		return errors.Errorf("coupon %s: negative minimum purchase", c.Code)
	case c.UsedCount < 0:
		return errors.Errorf("coupon %s: negative used count", c.Code)
	case c.UsageLimit != nil && *c.UsageLimit < 0:
		return errors.Errorf("coupon %s: negative usage limit", c.Code)
	case c.UsageLimit != nil && c.UsedCount > *c.UsageLimit:
		return errors.Errorf("coupon %s: used count %d exceeds usage limit %d", c.Code, c.UsedCount, *c.UsageLimit)
	}
	return nil
}

// DecodeGiftCard reads one gift card object. Cards are active unless the
// document says otherwise.
func DecodeGiftCard(d *jx.Decoder) (giftcard.GiftCard, error) {
	gc := giftcard.GiftCard{Active: true}
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			gc.Code, err = d.Str()
		case "balance":
			gc.Balance, err = wire.DecodeDecimal(d)
		case "active":
			gc.Active, err = d.Bool()
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, key)
	})
	if err != nil {
		return gc, err
	}
	if giftcard.NormalizeCode(gc.Code) == "" {
		return gc, errors.New("gift card without code")
	}
	if gc.Balance.IsNegative() {
		return gc, errors.Errorf("gift card %s: negative balance", gc.Code)
	}
	return gc, nil
}

func decodeSettings(d *jx.Decoder) (pricing.Settings, error) {
	var s pricing.Settings
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "tax":
			return d.Obj(func(d *jx.Decoder, key string) error {
				var err error
				switch key {
				case "enabled":
					s.Tax.Enabled, err = d.Bool()
				case "rate":
					s.Tax.Rate, err = wire.DecodeDecimal(d)
				case "includeInPrice":
					s.Tax.IncludeInPrice, err = d.Bool()
				default:
					err = d.Skip()
				}
				return err
			})
		case "shipping":
			return d.Obj(func(d *jx.Decoder, key string) error {
				var err error
				switch key {
				case "standardRate":
					s.Shipping.StandardRate, err = wire.DecodeDecimal(d)
				case "freeShippingThreshold":
					s.Shipping.FreeShippingThreshold, err = wire.DecodeDecimal(d)
				default:
					err = d.Skip()
				}
				return err
			})
		case "payment":
			return d.Obj(func(d *jx.Decoder, key string) error {
				if key != "cod" {
					return d.Skip()
				}
				return d.Obj(func(d *jx.Decoder, key string) error {
					var err error
					switch key {
					case "enabled":
						s.Payment.COD.Enabled, err = d.Bool()
					case "additionalFee":
						s.Payment.COD.AdditionalFee, err = wire.DecodeDecimal(d)
					default:
						err = d.Skip()
					}
					return err
				})
			})
		default:
			return d.Skip()
		}
	})
	return s, errors.Wrap(err, "settings")
}
