package order

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/xenking/storefront-orders/internal/domain/fault"
	"github.com/xenking/storefront-orders/internal/domain/inventory"
	"github.com/xenking/storefront-orders/internal/domain/pricing"
	"github.com/xenking/storefront-orders/internal/domain/product"
)

// CartItem is one line of a checkout request. QuotedPrice is what the
// customer was shown; it is advisory and never used for pricing.
type CartItem struct {
	ProductID   string
	VariantID   string
	Quantity    int
	QuotedPrice *decimal.Decimal
}

// CheckoutRequest holds the input for placing or quoting an order.
type CheckoutRequest struct {
	Items           []CartItem
	ShippingAddress Address
	PaymentMethod   pricing.PaymentMethod
	CouponCode      string
	GiftCardCode    string
}

// Cart limits. They keep merged stock quantities inside a 32-bit counter and
// order amounts inside NUMERIC(12,2).
const (
	MaxCartLines    = 100
	MaxLineQuantity = 10_000
)

// MaxOrderAmount is the largest subtotal or total an order may carry.
var MaxOrderAmount = decimal.RequireFromString("9999999999.99")

// Quote is a priced cart that has not been committed.
type Quote struct {
	Lines     []Line
	Breakdown pricing.Breakdown
}

// Quote prices the request exactly as PlaceOrder would, without touching any
// ledger.
func (s *Service) Quote(ctx context.Context, req CheckoutRequest) (*Quote, error) {
	ctx, span := s.tracer.Start(ctx, "order.Quote")
	defer span.End()

	if err := validateCart(req); err != nil {
		return nil, err
	}
	q, err := s.price(ctx, req)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return q, nil
}

// PlaceOrder prices the cart from the catalog, commits the coupon, stock and
// gift card, and persists the order. Any failure undoes the steps already
// taken, in reverse order, before the error is returned.
func (s *Service) PlaceOrder(ctx context.Context, req CheckoutRequest) (_ *Order, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.PlaceOrder")
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
			s.metrics.checkout(ctx, outcome(rerr))
		} else {
			s.metrics.checkout(ctx, "placed")
		}
		span.End()
	}()

	if err := validateCheckout(req); err != nil {
		return nil, err
	}

	q, err := s.price(ctx, req)
	if err != nil {
		return nil, err
	}
	b := q.Breakdown
	couponCode := strings.TrimSpace(req.CouponCode)
	giftCardCode := strings.TrimSpace(req.GiftCardCode)

	var sg saga
	defer func() {
		if rerr != nil {
			sg.compensate(ctx, s.metrics)
		}
	}()

	if couponCode != "" {
		if err := s.coupons.Commit(ctx, couponCode); err != nil {
			return nil, errors.Wrap(err, "commit coupon")
		}
		sg.add("release_coupon", func(ctx context.Context) error {
			return s.coupons.Release(ctx, couponCode)
		})
	}

	items := make([]inventory.Item, len(q.Lines))
	for i, l := range q.Lines {
		items[i] = inventory.Item{ProductID: l.ProductID, VariantID: l.VariantID, Quantity: l.Quantity}
	}
	if err := s.inventory.Reserve(ctx, items); err != nil {
		return nil, errors.Wrap(err, "reserve stock")
	}
	sg.add("restock", func(ctx context.Context) error {
		return s.inventory.Restock(ctx, items)
	})

	if giftCardCode != "" && b.GiftCardDeduction.IsPositive() {
		if err := s.giftCards.Redeem(ctx, giftCardCode, b.GiftCardDeduction); err != nil {
			return nil, errors.Wrap(err, "redeem gift card")
		}
		sg.add("restore_gift_card", func(ctx context.Context) error {
			return s.giftCards.Restore(ctx, giftCardCode, b.GiftCardDeduction)
		})
	}

	now := s.now().UTC()
	status := InitialStatus(req.PaymentMethod.RequiresConfirmation())
	o := &Order{
		ID:              s.newID(),
		Lines:           q.Lines,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		CouponCode:      normalizeCode(couponCode),
		GiftCardCode:    normalizeCode(giftCardCode),
		Subtotal:        b.Subtotal,
		Discount:        b.Discount,
		ShippingFee:     b.Shipping,
		Tax:             b.Tax,
		PaymentFee:      b.PaymentFee,
		GiftCardApplied: b.GiftCardDeduction,
		Total:           b.Total,
		FinalTotal:      b.FinalTotal,
		Status:          status,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	o.AddTimeline(status, "Order placed", now)

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	span.SetAttributes(
		attribute.String("order.id", o.ID),
		attribute.String("order.total", o.Total.String()),
	)
	zctx.From(ctx).Info("Order placed",
		zap.String("order_id", o.ID),
		zap.String("status", string(o.Status)),
		zap.Stringer("total", o.Total),
	)
	s.publish(ctx, Event{Type: EventPlaced, Order: o, OccurredAt: now})

	return o, nil
}

// price loads settings and catalog prices and runs the calculator. Coupon
// and gift card codes are validated but not committed.
func (s *Service) price(ctx context.Context, req CheckoutRequest) (*Quote, error) {
	settings, err := s.settings.Settings(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load settings")
	}

	lines, err := s.snapshotLines(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	pl := make([]pricing.Line, len(lines))
	for i, l := range lines {
		pl[i] = pricing.Line{UnitPrice: l.UnitPrice, Quantity: l.Quantity}
	}
	subtotal := pricing.Subtotal(pl)
	if subtotal.GreaterThan(MaxOrderAmount) {
		return nil, fault.Invalid("items", "order amount exceeds "+MaxOrderAmount.StringFixed(2))
	}

	discount := decimal.Zero
	if code := strings.TrimSpace(req.CouponCode); code != "" {
		if discount, err = s.coupons.Validate(ctx, code, subtotal); err != nil {
			return nil, errors.Wrap(err, "validate coupon")
		}
	}

	balance := decimal.Zero
	if code := strings.TrimSpace(req.GiftCardCode); code != "" {
		if balance, err = s.giftCards.CheckBalance(ctx, code); err != nil {
			return nil, errors.Wrap(err, "check gift card")
		}
	}

	b := pricing.Calculate(pricing.Input{
		Lines:           pl,
		Settings:        settings,
		PaymentMethod:   req.PaymentMethod,
		CouponDiscount:  discount,
		GiftCardBalance: balance,
	})
	if b.Total.GreaterThan(MaxOrderAmount) {
		return nil, fault.Invalid("items", "order amount exceeds "+MaxOrderAmount.StringFixed(2))
	}
	return &Quote{Lines: lines, Breakdown: b}, nil
}

// snapshotLines fetches all products in a single batch and captures title and
// unit price for each cart item.
func (s *Service) snapshotLines(ctx context.Context, items []CartItem) ([]Line, error) {
	ids := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if _, ok := seen[it.ProductID]; !ok {
			seen[it.ProductID] = struct{}{}
			ids = append(ids, it.ProductID)
		}
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	lines := make([]Line, len(items))
	for i, it := range items {
		p, ok := byID[it.ProductID]
		if !ok {
			return nil, &product.NotFoundError{ProductID: it.ProductID}
		}
		price, title, err := p.PriceFor(it.VariantID)
		if err != nil {
			return nil, err
		}
		if it.QuotedPrice != nil && !it.QuotedPrice.Equal(price) {
			zctx.From(ctx).Debug("Quoted price differs from catalog",
				zap.String("product_id", it.ProductID),
				zap.Stringer("quoted", it.QuotedPrice),
				zap.Stringer("catalog", price),
			)
		}
		lines[i] = Line{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Title:     title,
			UnitPrice: price,
			Quantity:  it.Quantity,
		}
	}
	return lines, nil
}

func validateCart(req CheckoutRequest) error {
	if len(req.Items) == 0 {
		return fault.Invalid("items", "at least one item is required")
	}
	if len(req.Items) > MaxCartLines {
		return fault.Invalid("items", fmt.Sprintf("at most %d items are allowed", MaxCartLines))
	}
	for i, it := range req.Items {
		if strings.TrimSpace(it.ProductID) == "" {
			return fault.Invalid(fmt.Sprintf("items[%d].productId", i), "product id is required")
		}
		if it.Quantity < 1 {
			return fault.Invalid(fmt.Sprintf("items[%d].quantity", i), "quantity must be at least 1")
		}
		if it.Quantity > MaxLineQuantity {
			return fault.Invalid(fmt.Sprintf("items[%d].quantity", i), fmt.Sprintf("quantity must be at most %d", MaxLineQuantity))
		}
		if it.QuotedPrice != nil && it.QuotedPrice.IsNegative() {
			return fault.Invalid(fmt.Sprintf("items[%d].price", i), "price must not be negative")
		}
	}
	if !req.PaymentMethod.Valid() {
		return fault.Invalid("paymentMethod", "unsupported payment method")
	}
	return nil
}

func validateCheckout(req CheckoutRequest) error {
	if err := validateCart(req); err != nil {
		return err
	}
	a := req.ShippingAddress
	required := []struct {
		field string
		value string
	}{
		{"shippingAddress.name", a.Name},
		{"shippingAddress.line1", a.Line1},
		{"shippingAddress.city", a.City},
		{"shippingAddress.postalCode", a.PostalCode},
		{"shippingAddress.country", a.Country},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fault.Invalid(r.field, "field is required")
		}
	}
	return nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func outcome(err error) string {
	if fe, ok := fault.From(err); ok {
		return fe.Code
	}
	return "error"
}
