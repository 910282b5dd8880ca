package order

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Type - тип ордера (рыночный или лимитный)
type Type string

const (
	TypeMarket Type = "market"
	TypeLimit  Type = "limit"
)

func (t Type) Valid() bool {
	return t == TypeMarket || t == TypeLimit
}

// Side - направление ордера
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Order is a persisted trade order. ID and CreatedAt are assigned by the store.
type Order struct {
	ID         int64
	Type       Type
	Side       Side
	Instrument string
	LimitPrice *decimal.Decimal // nil for market orders
	Quantity   decimal.Decimal
	CreatedAt  time.Time
}

// Пределы для сумм: не больше MaxAmountScale знаков после запятой и
// MaxAmountIntDigits знаков в целой части.
const (
	MaxAmountScale     = 18
	MaxAmountIntDigits = 20
)

// amountInRange проверяет порядок числа без вычисления его полного представления.
func amountInRange(d decimal.Decimal) bool {
	if d.IsZero() {
		return true
	}
	exp := int64(d.Exponent())
	if exp < -MaxAmountScale {
		return false
	}
	return int64(d.NumDigits())+exp <= MaxAmountIntDigits
}

// Draft is an order that has not been persisted yet.
type Draft struct {
	Type       Type
	Side       Side
	Instrument string
	LimitPrice *decimal.Decimal
	Quantity   decimal.Decimal
}

// Validate checks the business rules that must hold before an order is written.
func (d Draft) Validate() error {
	if !d.Type.Valid() || !d.Side.Valid() {
		return &ValidationError{Field: "type", Message: "invalid order type or side"}
	}
	if strings.TrimSpace(d.Instrument) == "" {
		return &ValidationError{Field: "instrument", Message: "instrument is required"}
	}

	switch d.Type {
	case TypeMarket:
		if d.LimitPrice != nil {
			return &ValidationError{Field: "limit_price", Message: "market orders cannot have a limit price"}
		}
	case TypeLimit:
		if d.LimitPrice == nil || d.LimitPrice.IsZero() {
			return &ValidationError{Field: "limit_price", Message: "limit orders require a limit price"}
		}
		if !amountInRange(*d.LimitPrice) {
			return &ValidationError{Field: "limit_price", Message: "limit price is out of range"}
		}
		if d.LimitPrice.IsNegative() {
			return &ValidationError{Field: "limit_price", Message: "limit price must be positive"}
		}
	}

	if !amountInRange(d.Quantity) {
		return &ValidationError{Field: "quantity", Message: "quantity is out of range"}
	}
	if !d.Quantity.IsPositive() {
		return &ValidationError{Field: "quantity", Message: "quantity must be positive"}
	}
	return nil
}

// WellFormed reports whether o looks like an order that came out of the store.
func (o *Order) WellFormed() bool {
	return o != nil &&
		o.ID > 0 &&
		o.Type.Valid() &&
		o.Side.Valid() &&
		o.Instrument != "" &&
		o.Quantity.IsPositive()
}
