package service

import (
	"context"
	"time"

	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
	healthsvc "signal_bot/internal/modules/health/service"
	"signal_bot/pkg/logger"
)

// CloseStore — durable-путь для дневных закрытий.
type CloseStore interface {
	UpsertDailyClose(ctx context.Context, dc models.DailyClose) error
}

// PriceCache — кэш-путь: список цен с ограничением длины.
type PriceCache interface {
	PushPrice(ctx context.Context, symbol string, price float64, maxLen int64) error
}

// Processor сворачивает поток тиков в одно дневное закрытие на день.
// Границу суток никто не сторожит по wall-clock: закрытие дня D считается,
// когда приходит ПЕРВЫЙ тик дня D+1. Тихий фид через
// полночь означает, что закрытие задержится до возобновления трафика.
type Processor struct {
	symbol    string
	retention int64

	store  CloseStore
	cache  PriceCache
	closes chan<- models.CloseEvent
	state  *healthsvc.State

	currentDay  time.Time
	lastMid     float64
	initialized bool
}

func NewProcessor(
	cfg *config.Config,
	store CloseStore,
	cache PriceCache,
	closes chan<- models.CloseEvent,
	state *healthsvc.State,
) *Processor {
	return &Processor{
		symbol:    cfg.Exchange.Symbol,
		retention: int64(cfg.Strategy.CacheRetention),
		store:     store,
		cache:     cache,
		closes:    closes,
		state:     state,
	}
}

// Run — долгоживущий консьюмер очереди. Строгий FIFO, по одному тику.
func (p *Processor) Run(ctx context.Context, in <-chan models.Tick) {
	logger.Info("[AGG] processor started")
	for {
		select {
		case <-ctx.Done():
			logger.Info("[AGG] processor stopped")
			return
		case tick, ok := <-in:
			if !ok {
				logger.Info("[AGG] tick channel closed")
				return
			}
			p.onTick(ctx, tick)
		}
	}
}

func (p *Processor) onTick(ctx context.Context, tick models.Tick) {
	if tick.Bid <= 0 || tick.Ask <= 0 {
		logger.Warn("[AGG] invalid bid/ask: bid=%f ask=%f u=%d", tick.Bid, tick.Ask, tick.UpdateID)
		return
	}

	mid := tick.Mid()
	tickDay := tick.Day()
	p.state.TouchTick(tick.Ts)

	if !p.initialized {
		p.currentDay = tickDay
		p.lastMid = mid
		p.initialized = true
		logger.Info("[AGG] initialized: day=%s mid=%.2f", tickDay.Format(models.DateLayout), mid)
		return
	}

	switch {
	case tickDay.After(p.currentDay):
		p.rollover(ctx, tickDay, mid)
	case tickDay.Equal(p.currentDay):
		// тот же день: двигаем только «последний увиденный mid»
		p.lastMid = mid
	default:
		// опоздавший тик из прошлого, в живом фиде такого быть не должно
		logger.Warn("[AGG] tick from the past: %s < %s, ignored",
			tickDay.Format(models.DateLayout), p.currentDay.Format(models.DateLayout))
	}
}

// rollover — граница суток пересечена: derived close завершённого дня равен
// последнему mid ДО границы. Пишем в Mongo и в кэш, отдаём детектору и лишь
// потом переключаемся на новый день.
func (p *Processor) rollover(ctx context.Context, tickDay time.Time, mid float64) {
	closedDay := p.currentDay
	closePrice := p.lastMid

	logger.Info("[AGG] day boundary crossed: %s -> %s",
		closedDay.Format(models.DateLayout), tickDay.Format(models.DateLayout))

	if closePrice > 0 {
		logger.Info("[AGG] *** [%s] derived close for %s: %.2f ***",
			p.symbol, closedDay.Format(models.DateLayout), closePrice)

		dc := models.DailyClose{
			Date:         closedDay.Format(models.DateLayout),
			Symbol:       p.symbol,
			Price:        closePrice,
			TimestampUTC: closedDay,
		}
		// отказ записи не фатален: теряем этот цикл, пайплайн живёт дальше
		if err := p.store.UpsertDailyClose(ctx, dc); err != nil {
			logger.Error("[AGG] failed to save daily close: %v", err)
		}
		if err := p.cache.PushPrice(ctx, p.symbol, closePrice, p.retention); err != nil {
			logger.Error("[AGG] failed to push close to cache: %v", err)
		}
		p.state.TouchClose(closedDay)

		ev := models.CloseEvent{Day: closedDay, Symbol: p.symbol, Price: closePrice}
		// fire-and-forget: горячий цикл тиков детектора не ждёт
		select {
		case p.closes <- ev:
		default:
			logger.Warn("[AGG] close queue full, dropping event for %s", dc.Date)
		}
	} else {
		logger.Warn("[AGG] [%s] rollover without lastMid for %s, skipping derived close",
			p.symbol, closedDay.Format(models.DateLayout))
	}

	p.currentDay = tickDay
	p.lastMid = mid
}
