// Package exchangetest provides an in-memory exchange.Gateway with a
// fault-injection hook. It is only meant for tests.
package exchangetest

import (
	"context"
	"sync"

	"orderdesk/internal/exchange"
	"orderdesk/internal/order"
)

const Venue = "test"

type Gateway struct {
	mu     sync.Mutex
	fail   func(o *order.Order) error
	placed []*order.Order
	calls  int
}

func NewGateway() *Gateway {
	return &Gateway{}
}

// FailWith makes subsequent calls fail whenever hook returns a non-nil error.
// A nil hook restores normal behaviour.
func (g *Gateway) FailWith(hook func(o *order.Order) error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fail = hook
}

// FailAlways is a shorthand for FailWith with a constant error.
func (g *Gateway) FailAlways(err error) {
	g.FailWith(func(*order.Order) error { return err })
}

func (g *Gateway) Venue() string {
	return Venue
}

func (g *Gateway) PlaceOrder(ctx context.Context, o *order.Order) (*order.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++

	if err := exchange.CheckOrder(Venue, o); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &exchange.PlacementError{Venue: Venue, Reason: "request cancelled", Err: err}
	}
	if g.fail != nil {
		if err := g.fail(o); err != nil {
			return nil, &exchange.PlacementError{Venue: Venue, Reason: "injected failure", Err: err}
		}
	}

	g.placed = append(g.placed, o)
	return o, nil
}

func (g *Gateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func (g *Gateway) Placed() []*order.Order {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*order.Order, len(g.placed))
	copy(out, g.placed)
	return out
}
