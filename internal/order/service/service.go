package service

import (
	"context"
	"fmt"

	"orderdesk/internal/exchange"
	"orderdesk/internal/metrics"
	"orderdesk/internal/order"
)

type OrderStore interface {
	CreateOrder(ctx context.Context, d order.Draft) (*order.Order, error)
	GetByID(ctx context.Context, id int64) (*order.Order, error)
}

// NotForwardedError - ордер сохранён, но биржа его не приняла.
// Запись в базе остаётся, откат не выполняется.
type NotForwardedError struct {
	Order *order.Order
	Err   error
}

func (e *NotForwardedError) Error() string {
	return fmt.Sprintf("order %d stored but not forwarded: %v", e.Order.ID, e.Err)
}

func (e *NotForwardedError) Unwrap() error {
	return e.Err
}

type Service struct {
	Store   OrderStore
	Gateway exchange.Gateway
	Metrics *metrics.Metrics
}

func NewService(store OrderStore, gateway exchange.Gateway, m *metrics.Metrics) *Service {
	return &Service{
		Store:   store,
		Gateway: gateway,
		Metrics: m,
	}
}

// PlaceOrder persists the draft and then forwards it to the exchange.
//
// Errors:
//   - *order.ValidationError, *order.PersistenceError: nothing was stored;
//   - *NotForwardedError: the order is stored, the exchange call failed.
func (s *Service) PlaceOrder(ctx context.Context, d order.Draft) (*order.Order, error) {
	// Отключение клиента не прерывает запись и отправку на биржу.
	// Длительность ограничена таймаутом HTTP-клиента шлюза.
	ctx = context.WithoutCancel(ctx)

	created, err := s.Store.CreateOrder(ctx, d)
	if err != nil {
		return nil, err
	}
	s.Metrics.OrdersCreatedTotal.WithLabelValues(string(created.Type), string(created.Side)).Inc()

	if _, err := s.Gateway.PlaceOrder(ctx, created); err != nil {
		s.Metrics.OrdersForwardFailuresTotal.WithLabelValues(s.Gateway.Venue()).Inc()
		return nil, &NotForwardedError{Order: created, Err: err}
	}

	return created, nil
}

func (s *Service) GetOrder(ctx context.Context, id int64) (*order.Order, error) {
	return s.Store.GetByID(ctx, id)
}
