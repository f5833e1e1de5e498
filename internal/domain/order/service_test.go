package order

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront-orders/internal/domain/coupon"
	"github.com/xenking/storefront-orders/internal/domain/fault"
	"github.com/xenking/storefront-orders/internal/domain/giftcard"
	"github.com/xenking/storefront-orders/internal/domain/inventory"
	"github.com/xenking/storefront-orders/internal/domain/pricing"
	"github.com/xenking/storefront-orders/internal/domain/product"
)

// --- Mock implementations ---

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type mockProductRepo struct {
	byID   map[string]product.Product
	getErr error
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type mockCoupons struct {
	log         *callLog
	discount    decimal.Decimal
	validateErr error
	commitErr   error
	releaseErr  error
	releaseCtx  context.Context
}

func (m *mockCoupons) Validate(_ context.Context, code string, _ decimal.Decimal) (decimal.Decimal, error) {
	m.log.add("coupon.validate:" + code)
	return m.discount, m.validateErr
}

func (m *mockCoupons) Commit(_ context.Context, code string) error {
	m.log.add("coupon.commit:" + code)
	return m.commitErr
}

func (m *mockCoupons) Release(ctx context.Context, code string) error {
	m.log.add("coupon.release:" + code)
	m.releaseCtx = ctx
	return m.releaseErr
}

type mockGiftCards struct {
	log       *callLog
	balance   decimal.Decimal
	checkErr  error
	redeemErr error
	redeemed  decimal.Decimal
}

func (m *mockGiftCards) CheckBalance(_ context.Context, code string) (decimal.Decimal, error) {
	m.log.add("giftcard.check:" + code)
	return m.balance, m.checkErr
}

func (m *mockGiftCards) Redeem(_ context.Context, code string, amount decimal.Decimal) error {
	m.log.add("giftcard.redeem:" + code + ":" + amount.String())
	if m.redeemErr == nil {
		m.redeemed = amount
	}
	return m.redeemErr
}

func (m *mockGiftCards) Restore(_ context.Context, code string, amount decimal.Decimal) error {
	m.log.add("giftcard.restore:" + code + ":" + amount.String())
	return nil
}

type mockInventory struct {
	log        *callLog
	reserveErr error
	restockErr error
	onReserve  func()
	restocked  [][]inventory.Item
}

func (m *mockInventory) Reserve(_ context.Context, _ []inventory.Item) error {
	m.log.add("inventory.reserve")
	if m.onReserve != nil {
		m.onReserve()
	}
	return m.reserveErr
}

func (m *mockInventory) Restock(_ context.Context, items []inventory.Item) error {
	m.log.add("inventory.restock")
	if m.restockErr != nil {
		return m.restockErr
	}
	m.restocked = append(m.restocked, items)
	return nil
}

type mockSettings struct {
	settings pricing.Settings
	err      error
}

func (m *mockSettings) Settings(context.Context) (pricing.Settings, error) {
	return m.settings, m.err
}

type mockOrderRepo struct {
	log       *callLog
	mu        sync.Mutex
	orders    map[string]*Order
	createErr error
	updateErr error
	updates   int
}

func newMockOrderRepo(log *callLog) *mockOrderRepo {
	return &mockOrderRepo{log: log, orders: make(map[string]*Order)}
}

func (m *mockOrderRepo) Create(_ context.Context, o *Order) error {
	m.log.add("orders.create")
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o.Version = 1
	m.orders[o.ID] = o.Clone()
	return nil
}

func (m *mockOrderRepo) Get(_ context.Context, id string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return o.Clone(), nil
}

func (m *mockOrderRepo) Update(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	if m.updateErr != nil {
		return m.updateErr
	}
	cur, ok := m.orders[o.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Version != o.Version {
		return fault.ErrConflict
	}
	o.Version++
	m.orders[o.ID] = o.Clone()
	return nil
}

type mockPublisher struct {
	events []Event
	err    error
}

func (m *mockPublisher) Publish(_ context.Context, e Event) error {
	m.events = append(m.events, e)
	return m.err
}

// --- Helpers ---

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

type fixture struct {
	log       *callLog
	products  *mockProductRepo
	coupons   *mockCoupons
	giftCards *mockGiftCards
	inventory *mockInventory
	settings  *mockSettings
	orders    *mockOrderRepo
	publisher *mockPublisher
	svc       *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := &callLog{}
	f := &fixture{
		log: log,
		products: &mockProductRepo{byID: map[string]product.Product{
			"p1": {ID: "p1", Title: "Mug", Price: d("20")},
			"p2": {ID: "p2", Title: "Tee", Price: d("25"), Variants: []product.Variant{
				{ID: "xl", Title: "XL", Price: d("27.50")},
			}},
		}},
		coupons:   &mockCoupons{log: log},
		giftCards: &mockGiftCards{log: log},
		inventory: &mockInventory{log: log},
		settings: &mockSettings{settings: pricing.Settings{
			Shipping: pricing.ShippingSettings{StandardRate: d("10"), FreeShippingThreshold: d("100")},
			Payment:  pricing.PaymentSettings{COD: pricing.CODSettings{Enabled: true, AdditionalFee: d("2.50")}},
		}},
		orders:    newMockOrderRepo(log),
		publisher: &mockPublisher{},
	}

	svc, err := NewService(Deps{
		Products:  f.products,
		Coupons:   f.coupons,
		GiftCards: f.giftCards,
		Inventory: f.inventory,
		Settings:  f.settings,
		Orders:    f.orders,
		Publisher: f.publisher,
	})
	require.NoError(t, err)
	svc.now = func() time.Time { return testNow }
	svc.newID = func() string { return "order-1" }
	f.svc = svc
	return f
}

func validRequest() CheckoutRequest {
	return CheckoutRequest{
		Items: []CartItem{
			{ProductID: "p1", Quantity: 2},
		},
		ShippingAddress: Address{
			Name:       "Ada Lovelace",
			Line1:      "12 St James's Square",
			City:       "London",
			PostalCode: "SW1Y 4JH",
			Country:    "GB",
		},
		PaymentMethod: pricing.PaymentCard,
	}
}

// --- PlaceOrder ---

func TestPlaceOrder_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *CheckoutRequest)
		field  string
	}{
		{name: "no items", mutate: func(r *CheckoutRequest) { r.Items = nil }, field: "items"},
		{name: "zero quantity", mutate: func(r *CheckoutRequest) { r.Items[0].Quantity = 0 }, field: "items[0].quantity"},
		{name: "quantity above limit", mutate: func(r *CheckoutRequest) { r.Items[0].Quantity = MaxLineQuantity + 1 }, field: "items[0].quantity"},
		{name: "too many lines", mutate: func(r *CheckoutRequest) {
			r.Items = make([]CartItem, MaxCartLines+1)
			for i := range r.Items {
				r.Items[i] = CartItem{ProductID: "p1", Quantity: 1}
			}
		}, field: "items"},
		{name: "missing product id", mutate: func(r *CheckoutRequest) { r.Items[0].ProductID = " " }, field: "items[0].productId"},
		{name: "unknown payment method", mutate: func(r *CheckoutRequest) { r.PaymentMethod = "crypto" }, field: "paymentMethod"},
		{name: "missing address line", mutate: func(r *CheckoutRequest) { r.ShippingAddress.Line1 = "" }, field: "shippingAddress.line1"},
		{name: "negative quoted price", mutate: func(r *CheckoutRequest) {
			p := d("-1")
			r.Items[0].QuotedPrice = &p
		}, field: "items[0].price"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := validRequest()
			tt.mutate(&req)

			_, err := f.svc.PlaceOrder(context.Background(), req)
			fe, ok := fault.From(err)
			require.True(t, ok, "expected classified error, got %v", err)
			assert.Equal(t, fault.KindValidation, fe.Kind)
			assert.Equal(t, tt.field, fe.Field)
			assert.Empty(t, f.log.list(), "no resource may be touched")
		})
	}
}

func TestPlaceOrder_AmountAboveLimit(t *testing.T) {
	tests := []struct {
		name  string
		price string
		qty   int
	}{
		{name: "subtotal", price: "5000000000", qty: 3},
		{name: "total after shipping", price: "9999999999.99", qty: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.products.byID["big"] = product.Product{ID: "big", Title: "Yacht", Price: d(tt.price)}
			f.settings.settings.Shipping.FreeShippingThreshold = d("99999999999")
			req := validRequest()
			req.Items = []CartItem{{ProductID: "big", Quantity: tt.qty}}

			_, err := f.svc.PlaceOrder(context.Background(), req)
			fe, ok := fault.From(err)
			require.True(t, ok, "expected classified error, got %v", err)
			assert.Equal(t, fault.KindValidation, fe.Kind)
			assert.Equal(t, "items", fe.Field)
			assert.Empty(t, f.log.list())
		})
	}
}

func TestPlaceOrder_ProductNotFound(t *testing.T) {
	f := newFixture(t)
	req := validRequest()
	req.Items = append(req.Items, CartItem{ProductID: "missing", Quantity: 1})

	_, err := f.svc.PlaceOrder(context.Background(), req)
	require.ErrorIs(t, err, product.ErrNotFound)

	var nf *product.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "missing", nf.ProductID)
	assert.Empty(t, f.log.list())
}

func TestPlaceOrder_UnknownVariant(t *testing.T) {
	f := newFixture(t)
	req := validRequest()
	req.Items = []CartItem{{ProductID: "p2", VariantID: "xs", Quantity: 1}}

	_, err := f.svc.PlaceOrder(context.Background(), req)
	require.ErrorIs(t, err, product.ErrNotFound)
}

func TestPlaceOrder_Success(t *testing.T) {
	f := newFixture(t)
	f.coupons.discount = d("5")
	f.giftCards.balance = d("30")

	quoted := d("1.00")
	req := validRequest()
	req.Items = []CartItem{
		{ProductID: "p1", Quantity: 2, QuotedPrice: &quoted},
		{ProductID: "p2", VariantID: "xl", Quantity: 1},
	}
	req.CouponCode = " save5 "
	req.GiftCardCode = "gift30"

	o, err := f.svc.PlaceOrder(context.Background(), req)
	require.NoError(t, err)

	// 2*20 + 27.50 = 67.50, minus 5, plus 10 shipping = 72.50, gift card 30.
	assert.Equal(t, "order-1", o.ID)
	assert.Equal(t, StatusPending, o.Status)
	assert.True(t, d("67.50").Equal(o.Subtotal))
	assert.True(t, d("5").Equal(o.Discount))
	assert.True(t, d("10").Equal(o.ShippingFee))
	assert.True(t, d("72.50").Equal(o.Total))
	assert.True(t, d("30").Equal(o.GiftCardApplied))
	assert.True(t, d("42.50").Equal(o.FinalTotal))
	assert.Equal(t, "SAVE5", o.CouponCode)
	assert.Equal(t, "GIFT30", o.GiftCardCode)

	require.Len(t, o.Lines, 2)
	assert.True(t, d("20").Equal(o.Lines[0].UnitPrice), "catalog price wins over quoted price")
	assert.Equal(t, "Tee - XL", o.Lines[1].Title)

	require.Len(t, o.Timeline, 1)
	assert.Equal(t, TimelineEntry{Status: StatusPending, Note: "Order placed", CreatedAt: testNow}, o.Timeline[0])

	assert.Equal(t, []string{
		"coupon.validate:save5",
		"giftcard.check:gift30",
		"coupon.commit:save5",
		"inventory.reserve",
		"giftcard.redeem:gift30:30",
		"orders.create",
	}, f.log.list())

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, EventPlaced, f.publisher.events[0].Type)
}

func TestPlaceOrder_BankTransferAwaitsPayment(t *testing.T) {
	f := newFixture(t)
	req := validRequest()
	req.PaymentMethod = pricing.PaymentBankTransfer

	o, err := f.svc.PlaceOrder(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, StatusPendingPayment, o.Status)
	assert.Equal(t, StatusPendingPayment, o.Timeline[0].Status)
}

func TestPlaceOrder_GiftCardCoveringNothingIsNotRedeemed(t *testing.T) {
	f := newFixture(t)
	req := validRequest()
	req.GiftCardCode = "EMPTY"

	o, err := f.svc.PlaceOrder(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, o.GiftCardApplied.IsZero())
	assert.NotContains(t, f.log.list(), "giftcard.redeem:EMPTY:0")
}

func TestPlaceOrder_CouponValidationFails(t *testing.T) {
	f := newFixture(t)
	f.coupons.validateErr = coupon.ErrExpired
	req := validRequest()
	req.CouponCode = "OLD"

	_, err := f.svc.PlaceOrder(context.Background(), req)
	require.ErrorIs(t, err, coupon.ErrExpired)
	assert.Equal(t, []string{"coupon.validate:OLD"}, f.log.list())
}

func TestPlaceOrder_CouponCommitFails(t *testing.T) {
	f := newFixture(t)
	f.coupons.commitErr = coupon.ErrExhausted
	req := validRequest()
	req.CouponCode = "ONCE"

	_, err := f.svc.PlaceOrder(context.Background(), req)
	require.ErrorIs(t, err, coupon.ErrExhausted)
	assert.Equal(t, []string{"coupon.validate:ONCE", "coupon.commit:ONCE"}, f.log.list())
}

func TestPlaceOrder_ReserveFailsReleasesCoupon(t *testing.T) {
	f := newFixture(t)
	f.inventory.reserveErr = &inventory.InsufficientStockError{
		Shortfalls: []inventory.Shortfall{{ProductID: "p1", Requested: 2, Available: 1}},
	}
	req := validRequest()
	req.CouponCode = "SAVE"

	_, err := f.svc.PlaceOrder(context.Background(), req)
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)
	assert.Equal(t, []string{
		"coupon.validate:SAVE",
		"coupon.commit:SAVE",
		"inventory.reserve",
		"coupon.release:SAVE",
	}, f.log.list())
	assert.Empty(t, f.orders.orders)
}

func TestPlaceOrder_RedeemFailsCompensatesInReverse(t *testing.T) {
	f := newFixture(t)
	f.giftCards.balance = d("10")
	f.giftCards.redeemErr = giftcard.ErrInsufficientBalance
	req := validRequest()
	req.CouponCode = "SAVE"
	req.GiftCardCode = "G"

	_, err := f.svc.PlaceOrder(context.Background(), req)
	require.ErrorIs(t, err, giftcard.ErrInsufficientBalance)
	assert.Equal(t, fault.KindBusinessRule, fault.KindOf(err))
	assert.Equal(t, []string{
		"coupon.validate:SAVE",
		"giftcard.check:G",
		"coupon.commit:SAVE",
		"inventory.reserve",
		"giftcard.redeem:G:10",
		"inventory.restock",
		"coupon.release:SAVE",
	}, f.log.list())
}

func TestPlaceOrder_PersistFailsRunsAllCompensations(t *testing.T) {
	f := newFixture(t)
	f.giftCards.balance = d("10")
	f.orders.createErr = errors.New("connection refused")
	req := validRequest()
	req.CouponCode = "SAVE"
	req.GiftCardCode = "G"

	_, err := f.svc.PlaceOrder(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, []string{
		"coupon.validate:SAVE",
		"giftcard.check:G",
		"coupon.commit:SAVE",
		"inventory.reserve",
		"giftcard.redeem:G:10",
		"orders.create",
		"giftcard.restore:G:10",
		"inventory.restock",
		"coupon.release:SAVE",
	}, f.log.list())
	assert.Empty(t, f.publisher.events)
}

func TestPlaceOrder_CompensationFailureKeepsOriginalError(t *testing.T) {
	f := newFixture(t)
	f.inventory.reserveErr = &inventory.InsufficientStockError{}
	f.coupons.releaseErr = errors.New("release failed")
	req := validRequest()
	req.CouponCode = "SAVE"

	_, err := f.svc.PlaceOrder(context.Background(), req)
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)
}

func TestPlaceOrder_CompensatesAfterClientCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.inventory.reserveErr = &inventory.InsufficientStockError{}
	f.inventory.onReserve = cancel
	req := validRequest()
	req.CouponCode = "SAVE"

	_, err := f.svc.PlaceOrder(ctx, req)
	require.Error(t, err)
	require.NotNil(t, f.coupons.releaseCtx)
	assert.NoError(t, f.coupons.releaseCtx.Err(), "compensation must not inherit cancellation")
}

func TestPlaceOrder_PublishFailureDoesNotFailCheckout(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")

	o, err := f.svc.PlaceOrder(context.Background(), validRequest())
	require.NoError(t, err)
	assert.NotNil(t, o)
}

func TestPlaceOrder_TotalsInvariant(t *testing.T) {
	for _, disc := range []string{"0", "3.33", "40", "1000"} {
		for _, bal := range []string{"0", "7.77", "10000"} {
			for _, m := range []pricing.PaymentMethod{pricing.PaymentCard, pricing.PaymentCOD} {
				f := newFixture(t)
				f.coupons.discount = d(disc)
				f.giftCards.balance = d(bal)
				req := validRequest()
				req.PaymentMethod = m
				req.CouponCode = "C"
				req.GiftCardCode = "G"

				o, err := f.svc.PlaceOrder(context.Background(), req)
				require.NoError(t, err)

				net := decimal.Max(decimal.Zero, o.Subtotal.Sub(o.Discount))
				assert.True(t, o.Total.Equal(net.Add(o.ShippingFee).Add(o.Tax).Add(o.PaymentFee)))
				assert.True(t, o.FinalTotal.Equal(o.Total.Sub(o.GiftCardApplied)))
				assert.False(t, o.FinalTotal.IsNegative())
			}
		}
	}
}

// --- Quote ---

func TestQuote_DoesNotCommit(t *testing.T) {
	f := newFixture(t)
	f.coupons.discount = d("4")
	f.giftCards.balance = d("100")
	req := validRequest()
	req.ShippingAddress = Address{}
	req.CouponCode = "C"
	req.GiftCardCode = "G"

	q, err := f.svc.Quote(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, d("40").Equal(q.Breakdown.Subtotal))
	assert.True(t, d("46").Equal(q.Breakdown.Total))
	assert.True(t, q.Breakdown.FinalTotal.IsZero())
	assert.Equal(t, []string{"coupon.validate:C", "giftcard.check:G"}, f.log.list())
}

func TestQuote_SettingsError(t *testing.T) {
	f := newFixture(t)
	f.settings.err = errors.New("settings unavailable")

	_, err := f.svc.Quote(context.Background(), validRequest())
	require.Error(t, err)
}

// --- Transition ---

func placed(t *testing.T, f *fixture, status Status) *Order {
	t.Helper()
	o := &Order{
		ID:     "o-1",
		Lines:  []Line{{ProductID: "p1", Title: "Mug", UnitPrice: d("20"), Quantity: 2}},
		Total:  d("50"),
		Status: status,
	}
	require.NoError(t, f.orders.Create(context.Background(), o))
	f.log.calls = nil
	return o
}

func TestTransition(t *testing.T) {
	tests := []struct {
		from    Status
		to      Status
		wantErr error
	}{
		{from: StatusPendingPayment, to: StatusPending},
		{from: StatusPending, to: StatusProcessing},
		{from: StatusProcessing, to: StatusShipped},
		{from: StatusShipped, to: StatusDelivered},
		{from: StatusShipped, to: StatusCancelled},
		{from: StatusDelivered, to: StatusPending, wantErr: ErrInvalidTransition},
		{from: StatusDelivered, to: StatusCancelled, wantErr: ErrInvalidTransition},
		{from: StatusCancelled, to: StatusPending, wantErr: ErrInvalidTransition},
		{from: StatusPending, to: StatusShipped, wantErr: ErrInvalidTransition},
		{from: StatusPending, to: StatusRefunded, wantErr: ErrInvalidTransition},
		{from: StatusProcessing, to: StatusPartiallyRefunded, wantErr: ErrInvalidTransition},
		{from: StatusRefunded, to: StatusCancelled, wantErr: ErrInvalidTransition},
		{from: StatusPartiallyRefunded, to: StatusCancelled},
		{from: StatusPartiallyRefunded, to: StatusRefunded, wantErr: ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			f := newFixture(t)
			placed(t, f, tt.from)

			o, err := f.svc.Transition(context.Background(), "o-1", tt.to, "")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				stored, _ := f.orders.Get(context.Background(), "o-1")
				assert.Equal(t, tt.from, stored.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, o.Status)
			require.NotEmpty(t, o.Timeline)
			last := o.Timeline[len(o.Timeline)-1]
			assert.Equal(t, tt.to, last.Status)
			assert.Equal(t, "Status changed to "+string(tt.to), last.Note)
			assert.Equal(t, int64(2), o.Version)
			require.Len(t, f.publisher.events, 1)
			assert.Equal(t, tt.from, f.publisher.events[0].PreviousStatus)
		})
	}
}

func TestTransition_PartiallyRefundedCancelRestocks(t *testing.T) {
	f := newFixture(t)
	placed(t, f, StatusPartiallyRefunded)

	o, err := f.svc.Transition(context.Background(), "o-1", StatusCancelled, "")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, o.Status)
	assert.True(t, o.Restocked)
	require.Len(t, f.inventory.restocked, 1)
	assert.Equal(t, []inventory.Item{{ProductID: "p1", Quantity: 2}}, f.inventory.restocked[0])
}

func TestTransition_PartiallyRefundedContinuesFulfillment(t *testing.T) {
	tests := []struct {
		name    string
		history []Status
		to      Status
		wantErr error
	}{
		{
			name:    "processing to shipped",
			history: []Status{StatusPending, StatusProcessing, StatusPartiallyRefunded},
			to:      StatusShipped,
		},
		{
			name:    "shipped to delivered after two refunds",
			history: []Status{StatusPending, StatusProcessing, StatusShipped, StatusPartiallyRefunded, StatusPartiallyRefunded},
			to:      StatusDelivered,
		},
		{
			name:    "cannot skip a step",
			history: []Status{StatusPending, StatusPartiallyRefunded},
			to:      StatusShipped,
			wantErr: ErrInvalidTransition,
		},
		{
			name:    "delivered stays delivered",
			history: []Status{StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusPartiallyRefunded},
			to:      StatusShipped,
			wantErr: ErrInvalidTransition,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			o := placed(t, f, StatusPartiallyRefunded)
			for _, s := range tt.history {
				o.AddTimeline(s, "", testNow)
			}
			f.orders.orders[o.ID] = o.Clone()

			got, err := f.svc.Transition(context.Background(), "o-1", tt.to, "")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, got.Status)
			assert.Equal(t, tt.to, got.FulfillmentStatus())
		})
	}
}

func TestOrder_FulfillmentStatus(t *testing.T) {
	o := &Order{Status: StatusShipped}
	assert.Equal(t, StatusShipped, o.FulfillmentStatus())

	o.Status = StatusPartiallyRefunded
	assert.Equal(t, StatusPartiallyRefunded, o.FulfillmentStatus(), "no history to fall back on")

	o.AddTimeline(StatusPending, "Order placed", testNow)
	o.AddTimeline(StatusPartiallyRefunded, "Refund", testNow)
	assert.Equal(t, StatusPending, o.FulfillmentStatus())
	assert.True(t, o.CanTransitionTo(StatusProcessing))
	assert.True(t, o.CanTransitionTo(StatusCancelled))
	assert.False(t, o.CanTransitionTo(StatusDelivered))
}

func TestTransition_UnknownStatus(t *testing.T) {
	f := newFixture(t)
	placed(t, f, StatusPending)

	_, err := f.svc.Transition(context.Background(), "o-1", "lost", "")
	assert.Equal(t, fault.KindValidation, fault.KindOf(err))
}

func TestTransition_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Transition(context.Background(), "nope", StatusProcessing, "")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTransition_CancelRestocksOnce(t *testing.T) {
	f := newFixture(t)
	placed(t, f, StatusProcessing)

	o, err := f.svc.Transition(context.Background(), "o-1", StatusCancelled, "customer request")
	require.NoError(t, err)
	assert.True(t, o.Restocked)
	assert.Equal(t, "customer request", o.Timeline[len(o.Timeline)-1].Note)
	require.Len(t, f.inventory.restocked, 1)
	assert.Equal(t, []inventory.Item{{ProductID: "p1", Quantity: 2}}, f.inventory.restocked[0])
}

func TestTransition_CancelAfterRestockingRefundSkipsRestock(t *testing.T) {
	f := newFixture(t)
	o := placed(t, f, StatusPending)
	o.Restocked = true
	f.orders.orders[o.ID] = o.Clone()

	_, err := f.svc.Transition(context.Background(), "o-1", StatusCancelled, "")
	require.NoError(t, err)
	assert.Empty(t, f.inventory.restocked)
}

func TestTransition_RestockFailureReverts(t *testing.T) {
	f := newFixture(t)
	placed(t, f, StatusPending)
	f.inventory.restockErr = errors.New("inventory offline")

	_, err := f.svc.Transition(context.Background(), "o-1", StatusCancelled, "")
	require.Error(t, err)

	stored, err := f.orders.Get(context.Background(), "o-1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, stored.Status)
	assert.False(t, stored.Restocked)
	assert.Empty(t, f.publisher.events)
}

func TestTransition_VersionConflict(t *testing.T) {
	f := newFixture(t)
	placed(t, f, StatusPending)
	f.orders.updateErr = fault.ErrConflict

	_, err := f.svc.Transition(context.Background(), "o-1", StatusProcessing, "")
	require.ErrorIs(t, err, fault.ErrConflict)
	assert.Equal(t, fault.KindConflict, fault.KindOf(err))
}

func TestStatus(t *testing.T) {
	assert.True(t, StatusDelivered.Refundable())
	assert.True(t, StatusPartiallyRefunded.Refundable())
	assert.False(t, StatusPendingPayment.Refundable())
	assert.False(t, StatusCancelled.Refundable())
	assert.False(t, StatusRefunded.Refundable())

	assert.Equal(t, StatusPendingPayment, InitialStatus(true))
	assert.Equal(t, StatusPending, InitialStatus(false))
}

func TestOrder_Clone(t *testing.T) {
	o := &Order{Refunds: []Refund{{ID: "r1"}}, Timeline: []TimelineEntry{{Status: StatusPending}}}
	c := o.Clone()
	c.Refunds[0].ID = "changed"
	c.Timeline = append(c.Timeline, TimelineEntry{Status: StatusCancelled})

	assert.Equal(t, "r1", o.Refunds[0].ID)
	assert.Len(t, o.Timeline, 1)
}
