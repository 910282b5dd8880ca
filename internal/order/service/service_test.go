package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderdesk/internal/exchange"
	"orderdesk/internal/exchange/exchangetest"
	"orderdesk/internal/exchange/simulated"
	"orderdesk/internal/metrics"
	"orderdesk/internal/order"
)

// memStore is an OrderStore that keeps orders in a map.
type memStore struct {
	mu     sync.Mutex
	orders map[int64]*order.Order
	nextID int64
	err    error
	// afterCreate вызывается после успешной записи
	afterCreate func()
}

func newMemStore() *memStore {
	return &memStore{orders: make(map[int64]*order.Order)}
}

func (s *memStore) CreateOrder(_ context.Context, d order.Draft) (*order.Order, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.nextID++
	o := &order.Order{
		ID: s.nextID, Type: d.Type, Side: d.Side, Instrument: d.Instrument,
		LimitPrice: d.LimitPrice, Quantity: d.Quantity, CreatedAt: time.Now().UTC(),
	}
	s.orders[o.ID] = o
	if s.afterCreate != nil {
		s.afterCreate()
	}
	return o, nil
}

func (s *memStore) GetByID(_ context.Context, id int64) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o, nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func limitDraft() order.Draft {
	p := decimal.RequireFromString("50000")
	return order.Draft{
		Type: order.TypeLimit, Side: order.SideBuy, Instrument: "BTCUSD",
		LimitPrice: &p, Quantity: decimal.RequireFromString("0.5"),
	}
}

func TestPlaceOrder_StoresThenForwards(t *testing.T) {
	store := newMemStore()
	gw := exchangetest.NewGateway()
	m := metrics.New(nil)
	svc := NewService(store, gw, m)

	o, err := svc.PlaceOrder(context.Background(), limitDraft())
	require.NoError(t, err)

	assert.Equal(t, int64(1), o.ID)
	require.Len(t, gw.Placed(), 1)
	assert.Equal(t, o.ID, gw.Placed()[0].ID)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrdersCreatedTotal.WithLabelValues("limit", "buy")))
}

func TestPlaceOrder_ValidationErrorNeverForwards(t *testing.T) {
	store := newMemStore()
	gw := exchangetest.NewGateway()
	svc := NewService(store, gw, metrics.New(nil))

	d := limitDraft()
	d.LimitPrice = nil
	_, err := svc.PlaceOrder(context.Background(), d)

	var verr *order.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 0, gw.Calls())
	assert.Equal(t, 0, store.count())
}

func TestPlaceOrder_PersistenceErrorNeverForwards(t *testing.T) {
	store := newMemStore()
	store.err = &order.PersistenceError{Op: "creating order", Err: errors.New("connection refused")}
	gw := exchangetest.NewGateway()
	svc := NewService(store, gw, metrics.New(nil))

	_, err := svc.PlaceOrder(context.Background(), limitDraft())

	var perr *order.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 0, gw.Calls())
}

func TestPlaceOrder_ExchangeFailureKeepsOrder(t *testing.T) {
	store := newMemStore()
	gw := exchangetest.NewGateway()
	gw.FailAlways(errors.New("venue unavailable"))
	m := metrics.New(nil)
	svc := NewService(store, gw, m)

	o, err := svc.PlaceOrder(context.Background(), limitDraft())
	assert.Nil(t, o)

	var nf *NotForwardedError
	require.ErrorAs(t, err, &nf)
	var perr *exchange.PlacementError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, exchangetest.Venue, perr.Venue)

	stored, getErr := svc.GetOrder(context.Background(), nf.Order.ID)
	require.NoError(t, getErr)
	assert.Equal(t, "BTCUSD", stored.Instrument)
	assert.Equal(t, 1, store.count())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrdersForwardFailuresTotal.WithLabelValues(exchangetest.Venue)))
}

func TestPlaceOrder_ConcurrentIDsAreUnique(t *testing.T) {
	store := newMemStore()
	gw := exchangetest.NewGateway()
	svc := NewService(store, gw, metrics.New(nil))

	const n = 50
	ids := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o, err := svc.PlaceOrder(context.Background(), limitDraft())
			if err == nil {
				ids <- o.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
	assert.Equal(t, n, gw.Calls())
}

func TestGetOrder_NotFound(t *testing.T) {
	svc := NewService(newMemStore(), exchangetest.NewGateway(), metrics.New(nil))

	_, err := svc.GetOrder(context.Background(), 99)
	assert.ErrorIs(t, err, order.ErrNotFound)
}

func TestPlaceOrder_ClientDisconnectAfterStoreStillForwards(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := newMemStore()
	store.afterCreate = cancel
	gw := exchangetest.NewGateway()
	svc := NewService(store, gw, metrics.New(nil))

	o, err := svc.PlaceOrder(ctx, limitDraft())
	require.NoError(t, err)
	require.Error(t, ctx.Err())

	require.Len(t, gw.Placed(), 1)
	assert.Equal(t, o.ID, gw.Placed()[0].ID)
}

func TestPlaceOrder_CancelledCallerWaitsForSimulatedVenue(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := newMemStore()
	svc := NewService(store, simulated.NewGateway(100*time.Millisecond, nil), metrics.New(nil))

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	o, err := svc.PlaceOrder(ctx, limitDraft())
	require.NoError(t, err)
	assert.Equal(t, int64(1), o.ID)
	assert.Equal(t, 1, store.count())
}
