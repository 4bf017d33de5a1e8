package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
	healthsvc "signal_bot/internal/modules/health/service"
	"signal_bot/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type fakeCloseStore struct {
	closes  map[string]models.DailyClose
	upserts int
}

func (f *fakeCloseStore) UpsertDailyClose(_ context.Context, dc models.DailyClose) error {
	if f.closes == nil {
		f.closes = make(map[string]models.DailyClose)
	}
	f.closes[dc.Date] = dc
	f.upserts++
	return nil
}

type fakePriceCache struct {
	pushes []float64
	maxLen int64
}

func (f *fakePriceCache) PushPrice(_ context.Context, _ string, price float64, maxLen int64) error {
	f.pushes = append(f.pushes, price)
	f.maxLen = maxLen
	return nil
}

func newTestProcessor(store *fakeCloseStore, cache *fakePriceCache) (*Processor, chan models.CloseEvent) {
	cfg := &config.Config{}
	cfg.Exchange.Symbol = "BTCUSDT"
	cfg.Strategy.CacheRetention = 250

	closes := make(chan models.CloseEvent, 16)
	return NewProcessor(cfg, store, cache, closes, healthsvc.NewState()), closes
}

func tickAt(day int, hour int, mid float64) models.Tick {
	return models.Tick{
		Ts:  time.Date(2024, 3, day, hour, 0, 0, 0, time.UTC),
		Bid: mid,
		Ask: mid,
	}
}

func TestRolloverDerivesLastMidExactlyOnce(t *testing.T) {
	store := &fakeCloseStore{}
	cache := &fakePriceCache{}
	p, closes := newTestProcessor(store, cache)
	ctx := context.Background()

	// три дня: [100, 100, 105 | 106, 107 | 90]
	p.onTick(ctx, tickAt(1, 9, 100))
	p.onTick(ctx, tickAt(1, 12, 100))
	p.onTick(ctx, tickAt(1, 23, 105))
	p.onTick(ctx, tickAt(2, 1, 106))
	p.onTick(ctx, tickAt(2, 22, 107))
	p.onTick(ctx, tickAt(3, 0, 90))

	require.Len(t, store.closes, 2)
	assert.InDelta(t, 105.0, store.closes["2024-03-01"].Price, 1e-9)
	assert.InDelta(t, 107.0, store.closes["2024-03-02"].Price, 1e-9)
	assert.Equal(t, 2, store.upserts)

	assert.Equal(t, []float64{105, 107}, cache.pushes)
	assert.EqualValues(t, 250, cache.maxLen)

	require.Len(t, closes, 2)
	first := <-closes
	assert.Equal(t, "2024-03-01", first.Day.Format(models.DateLayout))
	assert.InDelta(t, 105.0, first.Price, 1e-9)
	second := <-closes
	assert.Equal(t, "2024-03-02", second.Day.Format(models.DateLayout))
	assert.InDelta(t, 107.0, second.Price, 1e-9)
}

func TestFirstTickOnlyInitializes(t *testing.T) {
	store := &fakeCloseStore{}
	cache := &fakePriceCache{}
	p, closes := newTestProcessor(store, cache)

	p.onTick(context.Background(), tickAt(1, 9, 100))

	assert.Empty(t, store.closes)
	assert.Empty(t, cache.pushes)
	assert.Empty(t, closes)
}

func TestInvalidBidAskRejected(t *testing.T) {
	store := &fakeCloseStore{}
	cache := &fakePriceCache{}
	p, _ := newTestProcessor(store, cache)
	ctx := context.Background()

	p.onTick(ctx, tickAt(1, 9, 100))
	p.onTick(ctx, models.Tick{Ts: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), Bid: -1, Ask: 100})
	p.onTick(ctx, models.Tick{Ts: time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC), Bid: 100, Ask: 0})
	// мусорные тики не должны были сдвинуть lastMid
	p.onTick(ctx, tickAt(2, 0, 200))

	require.Len(t, store.closes, 1)
	assert.InDelta(t, 100.0, store.closes["2024-03-01"].Price, 1e-9)
}

func TestLateTickIgnored(t *testing.T) {
	store := &fakeCloseStore{}
	cache := &fakePriceCache{}
	p, _ := newTestProcessor(store, cache)
	ctx := context.Background()

	p.onTick(ctx, tickAt(2, 9, 100))
	p.onTick(ctx, tickAt(1, 23, 555)) // из прошлого
	p.onTick(ctx, tickAt(3, 0, 200))

	require.Len(t, store.closes, 1)
	// закрылся день 2, и не ценой опоздавшего тика
	assert.InDelta(t, 100.0, store.closes["2024-03-02"].Price, 1e-9)
}

func TestRerunUpsertsSameDayWithoutDuplicates(t *testing.T) {
	store := &fakeCloseStore{}
	cache := &fakePriceCache{}
	ctx := context.Background()

	p1, _ := newTestProcessor(store, cache)
	p1.onTick(ctx, tickAt(1, 23, 105))
	p1.onTick(ctx, tickAt(2, 0, 106))

	// рестарт процесса: тот же день закрывается повторно
	p2, _ := newTestProcessor(store, cache)
	p2.onTick(ctx, tickAt(1, 23, 105))
	p2.onTick(ctx, tickAt(2, 0, 106))

	assert.Len(t, store.closes, 1)
	assert.Equal(t, 2, store.upserts)
}

func TestTickQueueBackpressure(t *testing.T) {
	q := make(chan models.Tick, 2)
	q <- models.Tick{UpdateID: 1}
	q <- models.Tick{UpdateID: 2}

	delivered := make(chan struct{})
	go func() {
		q <- models.Tick{UpdateID: 3}
		close(delivered)
	}()

	select {
	case <-delivered:
		t.Fatal("enqueue into a full queue must suspend the producer")
	case <-time.After(50 * time.Millisecond):
	}

	<-q // консьюмер снял один элемент

	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("producer must resume after a dequeue")
	}
}
