package dto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceOrderRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"complete limit", `{"type":"limit","side":"buy","instrument":"X","limit_price":1.5,"quantity":2}`, false},
		{"string amounts", `{"type":"market","side":"buy","instrument":"X","quantity":"0.001"}`, false},
		{"null limit price", `{"type":"market","side":"buy","instrument":"X","limit_price":null,"quantity":1}`, false},
		{"missing quantity", `{"type":"market","side":"buy","instrument":"X"}`, true},
		{"zero quantity", `{"type":"market","side":"buy","instrument":"X","quantity":"0"}`, true},
		{"huge exponent passes presence check", `{"type":"market","side":"buy","instrument":"X","quantity":1e2000000000}`, false},
		{"zero with huge exponent", `{"type":"market","side":"buy","instrument":"X","quantity":0e2000000000}`, true},
		{"missing side", `{"type":"market","instrument":"X","quantity":1}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req PlaceOrderRequest
			require.NoError(t, json.Unmarshal([]byte(tt.body), &req))

			err := Validate.Struct(req)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPlaceOrderRequest_NullPriceIsAbsent(t *testing.T) {
	var req PlaceOrderRequest
	require.NoError(t, json.Unmarshal([]byte(`{"limit_price":null}`), &req))
	assert.Nil(t, req.LimitPrice)
}
