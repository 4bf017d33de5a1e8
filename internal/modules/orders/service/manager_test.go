package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
	"signal_bot/internal/notify"
	"signal_bot/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// общий журнал операций: проверяем, что ордер пишется раньше позиции
type opLog struct {
	ops []string
}

type fakePositionCache struct {
	log    *opLog
	state  models.PositionState
	has    bool
	setErr error
}

func (f *fakePositionCache) Position(_ context.Context, _ string) (models.PositionState, bool, error) {
	return f.state, f.has, nil
}

func (f *fakePositionCache) SetPosition(_ context.Context, _ string, st models.PositionState) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.log.ops = append(f.log.ops, "set_position")
	f.state, f.has = st, true
	return nil
}

type fakeOrderStore struct {
	log    *opLog
	orders []models.Order
	err    error
}

func (f *fakeOrderStore) InsertOrder(_ context.Context, o models.Order) error {
	if f.err != nil {
		return f.err
	}
	f.log.ops = append(f.log.ops, "insert_order")
	f.orders = append(f.orders, o)
	return nil
}

func newTestManager(cache *fakePositionCache, store *fakeOrderStore) *Manager {
	cfg := &config.Config{}
	cfg.Exchange.Symbol = "BTCUSDT"
	return NewManager(cfg, cache, store, notify.NewStdout())
}

func testSignal(side models.Side) models.Signal {
	return models.Signal{
		Timestamp:     time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		Symbol:        "BTCUSDT",
		Type:          side,
		PriceAtSignal: 65000,
	}
}

func TestBuyWhileFlatOpensLong(t *testing.T) {
	log := &opLog{}
	cache := &fakePositionCache{log: log} // позиции ещё нет -> FLAT
	store := &fakeOrderStore{log: log}
	m := newTestManager(cache, store)

	m.OnSignal(context.Background(), testSignal(models.SideBuy))

	require.Len(t, store.orders, 1)
	o := store.orders[0]
	assert.Equal(t, models.SideBuy, o.Side)
	assert.Equal(t, models.OrderTypeMarket, o.Type)
	assert.Equal(t, models.OrderStatusSimulated, o.Status)
	assert.InDelta(t, 65000.0, o.Price, 1e-9)
	assert.Equal(t, models.PositionLong, cache.state)
	// ордер в логе строго раньше смены позиции
	assert.Equal(t, []string{"insert_order", "set_position"}, log.ops)
}

func TestBuyWhileLongIsNoop(t *testing.T) {
	log := &opLog{}
	cache := &fakePositionCache{log: log, state: models.PositionLong, has: true}
	store := &fakeOrderStore{log: log}
	m := newTestManager(cache, store)

	m.OnSignal(context.Background(), testSignal(models.SideBuy))

	assert.Empty(t, store.orders)
	assert.Equal(t, models.PositionLong, cache.state)
	assert.Empty(t, log.ops)
}

func TestSellWhileLongClosesPosition(t *testing.T) {
	log := &opLog{}
	cache := &fakePositionCache{log: log, state: models.PositionLong, has: true}
	store := &fakeOrderStore{log: log}
	m := newTestManager(cache, store)

	m.OnSignal(context.Background(), testSignal(models.SideSell))

	require.Len(t, store.orders, 1)
	assert.Equal(t, models.SideSell, store.orders[0].Side)
	assert.Equal(t, models.PositionFlat, cache.state)
}

func TestSellTwiceOnlyFirstFires(t *testing.T) {
	log := &opLog{}
	cache := &fakePositionCache{log: log, state: models.PositionLong, has: true}
	store := &fakeOrderStore{log: log}
	m := newTestManager(cache, store)

	m.OnSignal(context.Background(), testSignal(models.SideSell))
	m.OnSignal(context.Background(), testSignal(models.SideSell))

	assert.Len(t, store.orders, 1)
	assert.Equal(t, models.PositionFlat, cache.state)
}

func TestSellWhileFlatIsNoop(t *testing.T) {
	log := &opLog{}
	cache := &fakePositionCache{log: log, state: models.PositionFlat, has: true}
	store := &fakeOrderStore{log: log}
	m := newTestManager(cache, store)

	m.OnSignal(context.Background(), testSignal(models.SideSell))

	assert.Empty(t, store.orders)
	assert.Equal(t, models.PositionFlat, cache.state)
}

func TestUnknownSignalTypeIgnored(t *testing.T) {
	log := &opLog{}
	cache := &fakePositionCache{log: log, state: models.PositionFlat, has: true}
	store := &fakeOrderStore{log: log}
	m := newTestManager(cache, store)

	m.OnSignal(context.Background(), testSignal(models.Side("HOLD")))

	assert.Empty(t, store.orders)
	assert.Empty(t, log.ops)
}

func TestOrderWriteFailureLeavesPositionUnchanged(t *testing.T) {
	log := &opLog{}
	cache := &fakePositionCache{log: log} // FLAT
	store := &fakeOrderStore{log: log, err: errors.New("mongo down")}
	m := newTestManager(cache, store)

	m.OnSignal(context.Background(), testSignal(models.SideBuy))

	assert.Empty(t, store.orders)
	assert.False(t, cache.has, "position must not be written when order log fails")
	assert.Empty(t, log.ops)
}
