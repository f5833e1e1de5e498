package wire

import (
	"testing"
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront-orders/internal/domain/order"
	"github.com/xenking/storefront-orders/internal/domain/pricing"
)

func TestDecodeDecimal(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: `12.5`, want: "12.5"},
		{input: `"0.08"`, want: "0.08"},
		{input: `1e2`, want: "100"},
		{input: `"abc"`, wantErr: true},
		{input: `true`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := DecodeDecimal(jx.DecodeStr(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestDecodeOptTime(t *testing.T) {
	got, err := DecodeOptTime(jx.DecodeStr(`null`))
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = DecodeOptTime(jx.DecodeStr(`"2025-12-31T23:59:59Z"`))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC), *got)
}

func TestEncodeBreakdown(t *testing.T) {
	var e jx.Encoder
	EncodeBreakdown(&e, pricing.Breakdown{
		Subtotal:   decimal.RequireFromString("50"),
		Tax:        decimal.RequireFromString("4"),
		Shipping:   decimal.RequireFromString("10"),
		Total:      decimal.RequireFromString("64"),
		FinalTotal: decimal.RequireFromString("64"),
	})

	assert.JSONEq(t, `{
		"subtotal": 50.00, "discount": 0.00, "netAfterDiscount": 0.00, "shipping": 10.00,
		"tax": 4.00, "paymentFee": 0.00, "total": 64.00, "giftCardDeduction": 0.00, "finalTotal": 64.00
	}`, e.String())
}

func TestEncodeOrder(t *testing.T) {
	at := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	o := &order.Order{
		ID:     "o-1",
		Status: order.StatusPartiallyRefunded,
		Lines: []order.Line{
			{ProductID: "tee", VariantID: "xl", Title: "Tee - XL", UnitPrice: decimal.RequireFromString("30"), Quantity: 1},
		},
		ShippingAddress: order.Address{Name: "A", Line1: "B", City: "C", PostalCode: "D", Country: "E"},
		PaymentMethod:   pricing.PaymentCOD,
		Total:           decimal.RequireFromString("42.5"),
		Refunds:         []order.Refund{{ID: "r1", Amount: decimal.RequireFromString("2.5"), Reason: "dent", CreatedAt: at}},
		Timeline:        []order.TimelineEntry{{Status: order.StatusPending, Note: "Order placed", CreatedAt: at}},
		Version:         2,
		CreatedAt:       at,
		UpdatedAt:       at,
	}

	var e jx.Encoder
	EncodeOrder(&e, o)

	assert.JSONEq(t, `{
		"id": "o-1",
		"status": "partially_refunded",
		"items": [{"productId": "tee", "variantId": "xl", "title": "Tee - XL", "unitPrice": 30.00, "quantity": 1}],
		"shippingAddress": {"name": "A", "line1": "B", "city": "C", "postalCode": "D", "country": "E"},
		"paymentMethod": "cod",
		"subtotal": 0.00, "discount": 0.00, "shippingFee": 0.00, "tax": 0.00, "paymentFee": 0.00,
		"giftCardApplied": 0.00, "total": 42.50, "finalTotal": 0.00, "refundedTotal": 2.50,
		"refunds": [{"id": "r1", "amount": 2.50, "reason": "dent", "restocked": false, "date": "2025-06-15T12:00:00Z"}],
		"timeline": [{"status": "pending", "note": "Order placed", "date": "2025-06-15T12:00:00Z"}],
		"restocked": false,
		"version": 2,
		"createdAt": "2025-06-15T12:00:00Z",
		"updatedAt": "2025-06-15T12:00:00Z"
	}`, e.String())
}

func TestDecodeAddress(t *testing.T) {
	a, err := DecodeAddress(jx.DecodeStr(`{"name":"Ada","line1":"1 Main","city":"X","postalCode":"1","country":"GB","extra":42}`))
	require.NoError(t, err)
	assert.Equal(t, order.Address{Name: "Ada", Line1: "1 Main", City: "X", PostalCode: "1", Country: "GB"}, a)
}
