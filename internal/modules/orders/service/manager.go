package service

import (
	"context"
	"time"

	"github.com/opentracing/opentracing-go"

	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
	"signal_bot/internal/notify"
	"signal_bot/pkg/logger"
)

// PositionCache — состояние позиции в Redis. ok=false: записи ещё нет.
type PositionCache interface {
	Position(ctx context.Context, symbol string) (models.PositionState, bool, error)
	SetPosition(ctx context.Context, symbol string, state models.PositionState) error
}

// OrderStore — append-only лог симулированных ордеров.
type OrderStore interface {
	InsertOrder(ctx context.Context, o models.Order) error
}

// Manager — автомат позиции с двумя состояниями FLAT/LONG. Переходы монотонные:
// BUY двигает только FLAT->LONG, SELL только LONG->FLAT, остальное no-op.
type Manager struct {
	symbol string
	cache  PositionCache
	store  OrderStore
	n      notify.Notifier

	now func() time.Time
}

func NewManager(cfg *config.Config, cache PositionCache, store OrderStore, n notify.Notifier) *Manager {
	return &Manager{
		symbol: cfg.Exchange.Symbol,
		cache:  cache,
		store:  store,
		n:      n,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// OnSignal применяет сигнал к позиции. Ордер пишется в лог ДО перезаписи
// позиции: если запись ордера не прошла, позиция не меняется вообще.
func (m *Manager) OnSignal(ctx context.Context, sig models.Signal) {
	span := opentracing.StartSpan("process_signal")
	defer span.Finish()

	logger.Info("[ORDER] [%s] signal %s at %.2f", m.symbol, sig.Type, sig.PriceAtSignal)

	current, ok, err := m.cache.Position(ctx, m.symbol)
	if err != nil {
		// без достоверного состояния решение принимать нельзя
		logger.Error("[ORDER] [%s] failed to read position: %v", m.symbol, err)
		return
	}
	if !ok {
		logger.Info("[ORDER] [%s] no stored position, initializing to FLAT", m.symbol)
		current = models.PositionFlat
	}
	logger.Info("[ORDER] [%s] current position: %s", m.symbol, current)

	var next models.PositionState
	switch {
	case sig.Type == models.SideBuy && current == models.PositionFlat:
		next = models.PositionLong
	case sig.Type == models.SideSell && current == models.PositionLong:
		next = models.PositionFlat
	case sig.Type == models.SideBuy || sig.Type == models.SideSell:
		logger.Info("[ORDER] [%s] %s while %s, no action", m.symbol, sig.Type, current)
		return
	default:
		logger.Warn("[ORDER] [%s] unknown signal type: %q", m.symbol, sig.Type)
		return
	}

	order := models.Order{
		Timestamp: m.now(),
		Symbol:    m.symbol,
		Side:      sig.Type,
		Type:      models.OrderTypeMarket,
		Price:     sig.PriceAtSignal,
		Status:    models.OrderStatusSimulated,
		SignalDay: sig.Timestamp,
	}

	logger.Info("[ORDER] [%s] simulating MARKET %s @ %.2f", m.symbol, order.Side, order.Price)
	if err := m.store.InsertOrder(ctx, order); err != nil {
		// единственная запись, чей отказ нельзя проглотить: позиция
		// остаётся как была, оператор сверится по логу ордеров
		logger.Error("[ORDER] [%s] failed to log order, position unchanged: %v", m.symbol, err)
		m.n.Sendf("⚠️ %s: не смог записать %s-ордер, позиция осталась %s", m.symbol, order.Side, current)
		return
	}

	if err := m.cache.SetPosition(ctx, m.symbol, next); err != nil {
		// ордер уже в логе, позиция нет: восстановимая рассинхронизация
		logger.Error("[ORDER] [%s] order logged but position update failed: %v", m.symbol, err)
		return
	}
	logger.Info("[ORDER] [%s] position updated: %s -> %s", m.symbol, current, next)
	m.n.Sendf("✅ %s: MARKET %s @ %.2f, позиция %s", m.symbol, order.Side, order.Price, next)
}
