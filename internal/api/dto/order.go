package dto

import (
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// PlaceOrderRequest - тело POST /api/orders.
// required на decimal срабатывает и для отсутствующего поля, и для нуля.
type PlaceOrderRequest struct {
	Type       string           `json:"type" validate:"required"`
	Side       string           `json:"side" validate:"required"`
	Instrument string           `json:"instrument" validate:"required"`
	LimitPrice *decimal.Decimal `json:"limit_price"`
	Quantity   decimal.Decimal  `json:"quantity" validate:"required"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

var Validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// required для decimal: ноль считается отсутствующим значением.
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok && !d.IsZero() {
			return 1
		}
		return 0
	}, decimal.Decimal{})
	return v
}
