package order

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestDraftValidate(t *testing.T) {
	tests := []struct {
		name      string
		draft     Draft
		wantField string
		wantMsg   string
	}{
		{
			name:  "market buy",
			draft: Draft{Type: TypeMarket, Side: SideBuy, Instrument: "BTCUSD", Quantity: *dec("1")},
		},
		{
			name:  "limit sell",
			draft: Draft{Type: TypeLimit, Side: SideSell, Instrument: "BTCUSD", LimitPrice: dec("50000"), Quantity: *dec("0.5")},
		},
		{
			name:      "unknown type",
			draft:     Draft{Type: "stop", Side: SideBuy, Instrument: "BTCUSD", Quantity: *dec("1")},
			wantField: "type",
			wantMsg:   "invalid order type or side",
		},
		{
			name:      "unknown side",
			draft:     Draft{Type: TypeMarket, Side: "hold", Instrument: "BTCUSD", Quantity: *dec("1")},
			wantField: "type",
			wantMsg:   "invalid order type or side",
		},
		{
			name:      "case matters",
			draft:     Draft{Type: "MARKET", Side: SideBuy, Instrument: "BTCUSD", Quantity: *dec("1")},
			wantField: "type",
			wantMsg:   "invalid order type or side",
		},
		{
			name:      "blank instrument",
			draft:     Draft{Type: TypeMarket, Side: SideBuy, Instrument: "   ", Quantity: *dec("1")},
			wantField: "instrument",
			wantMsg:   "instrument is required",
		},
		{
			name:      "market with price",
			draft:     Draft{Type: TypeMarket, Side: SideBuy, Instrument: "BTCUSD", LimitPrice: dec("100"), Quantity: *dec("1")},
			wantField: "limit_price",
			wantMsg:   "market orders cannot have a limit price",
		},
		{
			name:      "limit without price",
			draft:     Draft{Type: TypeLimit, Side: SideBuy, Instrument: "BTCUSD", Quantity: *dec("1")},
			wantField: "limit_price",
			wantMsg:   "limit orders require a limit price",
		},
		{
			name:      "limit with zero price",
			draft:     Draft{Type: TypeLimit, Side: SideBuy, Instrument: "BTCUSD", LimitPrice: dec("0"), Quantity: *dec("1")},
			wantField: "limit_price",
			wantMsg:   "limit orders require a limit price",
		},
		{
			name:      "limit with negative price",
			draft:     Draft{Type: TypeLimit, Side: SideBuy, Instrument: "BTCUSD", LimitPrice: dec("-1"), Quantity: *dec("1")},
			wantField: "limit_price",
			wantMsg:   "limit price must be positive",
		},
		{
			name:  "amounts at the limits",
			draft: Draft{Type: TypeLimit, Side: SideBuy, Instrument: "BTCUSD", LimitPrice: dec("99999999999999999999.000000000000000001"), Quantity: *dec("0.000000000000000001")},
		},
		{
			name:  "trailing exponent within limits",
			draft: Draft{Type: TypeMarket, Side: SideBuy, Instrument: "BTCUSD", Quantity: *dec("5e19")},
		},
		{
			name:      "quantity too large",
			draft:     Draft{Type: TypeMarket, Side: SideBuy, Instrument: "BTCUSD", Quantity: *dec("1e20")},
			wantField: "quantity",
			wantMsg:   "quantity is out of range",
		},
		{
			name:      "quantity too precise",
			draft:     Draft{Type: TypeMarket, Side: SideBuy, Instrument: "BTCUSD", Quantity: *dec("0.0000000000000000001")},
			wantField: "quantity",
			wantMsg:   "quantity is out of range",
		},
		{
			name:      "huge exponent quantity",
			draft:     Draft{Type: TypeMarket, Side: SideBuy, Instrument: "BTCUSD", Quantity: *dec("1e2000000000")},
			wantField: "quantity",
			wantMsg:   "quantity is out of range",
		},
		{
			name:      "huge exponent price",
			draft:     Draft{Type: TypeLimit, Side: SideBuy, Instrument: "BTCUSD", LimitPrice: dec("1e2000000000"), Quantity: *dec("1")},
			wantField: "limit_price",
			wantMsg:   "limit price is out of range",
		},
		{
			name:      "negative quantity",
			draft:     Draft{Type: TypeMarket, Side: SideBuy, Instrument: "BTCUSD", Quantity: *dec("-2")},
			wantField: "quantity",
			wantMsg:   "quantity must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.draft.Validate()
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantField, verr.Field)
			assert.Equal(t, tt.wantMsg, verr.Error())
		})
	}
}

func TestOrderWellFormed(t *testing.T) {
	ok := &Order{ID: 1, Type: TypeMarket, Side: SideBuy, Instrument: "BTCUSD", Quantity: *dec("1")}
	assert.True(t, ok.WellFormed())

	var nilOrder *Order
	assert.False(t, nilOrder.WellFormed())

	noID := *ok
	noID.ID = 0
	assert.False(t, noID.WellFormed())

	badSide := *ok
	badSide.Side = "hold"
	assert.False(t, badSide.WellFormed())

	zeroQty := *ok
	zeroQty.Quantity = decimal.Zero
	assert.False(t, zeroQty.WellFormed())
}

func TestPersistenceErrorUnwrap(t *testing.T) {
	cause := assert.AnError
	err := error(&PersistenceError{Op: "creating order", Code: "check_violation", Err: cause})

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "creating order")
	assert.Contains(t, err.Error(), "check_violation")
}

// A limit order is accepted iff its price is positive; a market order iff it has none.
func TestDraftValidate_PriceMatchesType(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		typ := rapid.SampledFrom([]Type{TypeMarket, TypeLimit}).Draw(t, "type")
		side := rapid.SampledFrom([]Side{SideBuy, SideSell}).Draw(t, "side")
		qty := decimal.New(rapid.Int64Range(1, 1_000_000).Draw(t, "qty"), -rapid.Int32Range(0, 8).Draw(t, "qtyExp"))

		var price *decimal.Decimal
		if rapid.Bool().Draw(t, "hasPrice") {
			p := decimal.New(rapid.Int64Range(-1_000_000, 1_000_000).Draw(t, "price"), -2)
			price = &p
		}

		err := Draft{Type: typ, Side: side, Instrument: "BTCUSD", LimitPrice: price, Quantity: qty}.Validate()

		want := (typ == TypeMarket && price == nil) || (typ == TypeLimit && price != nil && price.IsPositive())
		if want && err != nil {
			t.Fatalf("valid draft rejected: %v", err)
		}
		if !want && err == nil {
			t.Fatalf("invalid draft accepted: type=%s price=%v", typ, price)
		}
	})
}
