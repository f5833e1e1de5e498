package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/storefront-orders/internal/domain/inventory"
	"github.com/xenking/storefront-orders/internal/domain/pricing"
	"github.com/xenking/storefront-orders/internal/domain/product"
)

// Coupons is the coupon ledger used during checkout.
type Coupons interface {
	Validate(ctx context.Context, code string, cartSubtotal decimal.Decimal) (decimal.Decimal, error)
	Commit(ctx context.Context, code string) error
	Release(ctx context.Context, code string) error
}

// GiftCards is the gift card ledger used during checkout.
type GiftCards interface {
	CheckBalance(ctx context.Context, code string) (decimal.Decimal, error)
	Redeem(ctx context.Context, code string, amount decimal.Decimal) error
	Restore(ctx context.Context, code string, amount decimal.Decimal) error
}

// Inventory reserves and restocks order lines.
type Inventory interface {
	Reserve(ctx context.Context, items []inventory.Item) error
	Restock(ctx context.Context, items []inventory.Item) error
}

// SettingsProvider returns the current store pricing settings.
type SettingsProvider interface {
	Settings(ctx context.Context) (pricing.Settings, error)
}

// Deps holds the collaborators of a Service. Publisher, MeterProvider and
// TracerProvider are optional.
type Deps struct {
	Products  product.Repository
	Coupons   Coupons
	GiftCards GiftCards
	Inventory Inventory
	Settings  SettingsProvider
	Orders    Repository
	Publisher Publisher

	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider
}

// Service encapsulates checkout and order lifecycle business logic.
type Service struct {
	products  product.Repository
	coupons   Coupons
	giftCards GiftCards
	inventory Inventory
	settings  SettingsProvider
	orders    Repository
	publisher Publisher

	metrics *metrics
	tracer  trace.Tracer
	now     func() time.Time
	newID   func() string
}

// NewService creates an order Service.
func NewService(d Deps) (*Service, error) {
	if d.Publisher == nil {
		d.Publisher = NopPublisher{}
	}
	m, err := newMetrics(d.MeterProvider)
	if err != nil {
		return nil, errors.Wrap(err, "init metrics")
	}
	return &Service{
		products:  d.Products,
		coupons:   d.Coupons,
		giftCards: d.GiftCards,
		inventory: d.Inventory,
		settings:  d.Settings,
		orders:    d.Orders,
		publisher: d.Publisher,
		metrics:   m,
		tracer:    newTracer(d.TracerProvider),
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}, nil
}

// Get returns an order by ID.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "get order")
	}
	return o, nil
}

func (s *Service) publish(ctx context.Context, e Event) {
	if err := s.publisher.Publish(ctx, e); err != nil {
		zctx.From(ctx).Warn("Publish order event failed",
			zap.String("event", string(e.Type)),
			zap.String("order_id", e.Order.ID),
			zap.Error(err),
		)
	}
}
