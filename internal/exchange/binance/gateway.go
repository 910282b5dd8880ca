// internal/exchange/binance/gateway.go
package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"go.uber.org/zap"

	"orderdesk/internal/exchange"
	"orderdesk/internal/order"
)

const Venue = "binance"

// Gateway размещает ордера на споте Binance через go-binance.
type Gateway struct {
	client *binance.Client
	logger *zap.Logger
}

type Config struct {
	APIKey    string
	SecretKey string
	BaseURL   string // пусто - боевой endpoint библиотеки
	Timeout   time.Duration
}

func NewGateway(cfg Config, logger *zap.Logger) *Gateway {
	client := binance.NewClient(cfg.APIKey, cfg.SecretKey)
	if cfg.BaseURL != "" {
		client.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.Timeout > 0 {
		client.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{client: client, logger: logger}
}

func (g *Gateway) Venue() string {
	return Venue
}

func (g *Gateway) PlaceOrder(ctx context.Context, o *order.Order) (*order.Order, error) {
	if err := exchange.CheckOrder(Venue, o); err != nil {
		return nil, err
	}

	service := g.client.NewCreateOrderService().
		Symbol(strings.ToUpper(o.Instrument)).
		Side(sideType(o.Side)).
		Quantity(o.Quantity.String()).
		NewClientOrderID(exchange.ClientOrderID(o))

	if o.Type == order.TypeLimit {
		service.Type(binance.OrderTypeLimit).
			TimeInForce(binance.TimeInForceTypeGTC).
			Price(o.LimitPrice.String())
	} else {
		service.Type(binance.OrderTypeMarket)
	}

	resp, err := service.Do(ctx)
	if err != nil {
		return nil, placementError(err)
	}

	g.logger.Debug("binance accepted order",
		zap.Int64("order_id", o.ID),
		zap.Int64("venue_order_id", resp.OrderID),
		zap.String("status", string(resp.Status)),
	)
	return o, nil
}

// SyncTime выравнивает timestamp подписанных запросов по серверному времени Binance.
// Без этого биржа отклоняет ордера при расхождении часов (-1021).
func (g *Gateway) SyncTime(ctx context.Context) (time.Duration, error) {
	offset, err := g.client.NewSetServerTimeService().Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get server time: %w", err)
	}
	diff := time.Duration(offset) * time.Millisecond
	g.logger.Debug("binance time offset updated", zap.Duration("offset", diff))
	return diff, nil
}

// RunTimeSync повторяет SyncTime каждые interval, пока не отменён ctx.
func (g *Gateway) RunTimeSync(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := g.SyncTime(ctx); err != nil && ctx.Err() == nil {
				g.logger.Warn("binance time sync failed", zap.Error(err))
			}
		}
	}
}

func sideType(s order.Side) binance.SideType {
	if s == order.SideSell {
		return binance.SideTypeSell
	}
	return binance.SideTypeBuy
}

func placementError(err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return &exchange.PlacementError{Venue: Venue, Reason: "rejected by venue", Err: apiErr}
	}
	return &exchange.PlacementError{Venue: Venue, Reason: "request failed", Err: err}
}
