// Package exchange defines the contract for forwarding stored orders to an
// external trade-execution venue. Adapters live in the subpackages.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"orderdesk/internal/metrics"
	"orderdesk/internal/order"
)

// Gateway forwards an order to a venue. It never touches the order store.
type Gateway interface {
	PlaceOrder(ctx context.Context, o *order.Order) (*order.Order, error)
	Venue() string
}

// PlacementError means the venue did not accept the order.
type PlacementError struct {
	Venue  string
	Reason string
	Err    error
}

func (e *PlacementError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: failed to place order: %s: %v", e.Venue, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: failed to place order: %s", e.Venue, e.Reason)
}

func (e *PlacementError) Unwrap() error {
	return e.Err
}

var ErrInvalidOrder = errors.New("invalid order parameter provided")

// CheckOrder rejects anything that did not come out of the store.
func CheckOrder(venue string, o *order.Order) error {
	if !o.WellFormed() {
		return &PlacementError{Venue: venue, Reason: "rejected before sending", Err: ErrInvalidOrder}
	}
	return nil
}

// ClientOrderID is the idempotency key sent to venues, so a resubmitted order
// can be recognised on their side.
func ClientOrderID(o *order.Order) string {
	return "orderdesk-" + strconv.FormatInt(o.ID, 10)
}

type instrumented struct {
	next    Gateway
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// Instrument wraps g with request metrics and logging.
func Instrument(g Gateway, m *metrics.Metrics, logger *zap.Logger) Gateway {
	return &instrumented{next: g, metrics: m, logger: logger.With(zap.String("venue", g.Venue()))}
}

func (g *instrumented) Venue() string {
	return g.next.Venue()
}

func (g *instrumented) PlaceOrder(ctx context.Context, o *order.Order) (*order.Order, error) {
	start := time.Now()
	placed, err := g.next.PlaceOrder(ctx, o)
	elapsed := time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
	}
	g.metrics.ExchangeRequestsTotal.WithLabelValues(g.Venue(), status).Inc()
	g.metrics.ExchangeRequestDuration.WithLabelValues(g.Venue()).Observe(elapsed.Seconds())

	if err == nil {
		g.logger.Info("order placed at exchange",
			zap.Int64("order_id", o.ID),
			zap.String("instrument", o.Instrument),
			zap.Duration("took", elapsed),
		)
	}
	return placed, err
}
