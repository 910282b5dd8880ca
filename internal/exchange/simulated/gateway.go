// Package simulated is a paper venue: it acknowledges every well-formed order
// after a fixed latency. Used for local runs without exchange credentials.
package simulated

import (
	"context"
	"time"

	"go.uber.org/zap"

	"orderdesk/internal/exchange"
	"orderdesk/internal/order"
)

const Venue = "simulated"

type Gateway struct {
	latency time.Duration
	logger  *zap.Logger
}

func NewGateway(latency time.Duration, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{latency: latency, logger: logger}
}

func (g *Gateway) Venue() string {
	return Venue
}

func (g *Gateway) PlaceOrder(ctx context.Context, o *order.Order) (*order.Order, error) {
	if err := exchange.CheckOrder(Venue, o); err != nil {
		return nil, err
	}

	timer := time.NewTimer(g.latency)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, &exchange.PlacementError{Venue: Venue, Reason: "request cancelled", Err: ctx.Err()}
	case <-timer.C:
	}

	g.logger.Debug("simulated venue acknowledged order",
		zap.Int64("order_id", o.ID),
		zap.String("client_order_id", exchange.ClientOrderID(o)),
	)
	return o, nil
}
