package service

import (
	"context"
	"fmt"
	"time"

	"github.com/opentracing/opentracing-go"

	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
	"signal_bot/internal/notify"
	"signal_bot/pkg/logger"
)

// SMACache — кэш цен и пары «прошлых» SMA.
type SMACache interface {
	Prices(ctx context.Context, symbol string, count int64) ([]float64, error)
	PrevSMAs(ctx context.Context, symbol string) (float64, float64, bool, error)
	SetPrevSMAs(ctx context.Context, symbol string, short, long float64) error
}

// SignalStore — append-only лог сигналов.
type SignalStore interface {
	InsertSignal(ctx context.Context, sig models.Signal) error
}

// Detector раз в завершённый день пересчитывает обе SMA, сравнивает с
// вчерашней парой и решает BUY/SELL/ничего.
type Detector struct {
	symbol      string
	shortWindow int
	longWindow  int

	cache SMACache
	store SignalStore
	n     notify.Notifier
	out   chan<- models.Signal
}

func NewDetector(
	cfg *config.Config,
	cache SMACache,
	store SignalStore,
	n notify.Notifier,
	out chan<- models.Signal,
) *Detector {
	return &Detector{
		symbol:      cfg.Exchange.Symbol,
		shortWindow: cfg.Strategy.ShortWindow,
		longWindow:  cfg.Strategy.LongWindow,
		cache:       cache,
		store:       store,
		n:           n,
		out:         out,
	}
}

// OnClose обрабатывает одно дневное закрытие. Вызывается из единственного
// воркера, поэтому записи prev-SMA между днями не гоняются.
func (d *Detector) OnClose(ctx context.Context, ev models.CloseEvent) {
	span := opentracing.StartSpan("sma_crossover_check")
	defer span.Finish()

	day := ev.Day.Format(models.DateLayout)
	logger.Info("[SIGNAL] [%s] crossover check for %s", d.symbol, day)

	prices, err := d.cache.Prices(ctx, d.symbol, int64(d.longWindow))
	if err != nil {
		logger.Error("[SIGNAL] [%s] failed to read price cache: %v", d.symbol, err)
		return
	}
	if len(prices) == 0 {
		logger.Warn("[SIGNAL] [%s] price cache empty, cannot calculate SMAs for %s", d.symbol, day)
		return
	}
	if len(prices) < d.longWindow {
		// warm-up: длинного окна ещё нет. Короткую SMA считаем только для
		// наблюдаемости, «прошлую» пару не трогаем.
		if short, ok := CalculateSMA(prices, d.shortWindow); ok {
			logger.Warn("[SIGNAL] [%s] only %d of %d prices: SMA%d=%.2f, waiting for long window",
				d.symbol, len(prices), d.longWindow, d.shortWindow, short)
		} else {
			logger.Warn("[SIGNAL] [%s] insufficient data (%d of %d prices), skipping %s",
				d.symbol, len(prices), d.longWindow, day)
		}
		return
	}

	short, _ := CalculateSMA(prices, d.shortWindow)
	long, _ := CalculateSMA(prices, d.longWindow)
	logger.Info("[SIGNAL] [%s] %s: SMA%d=%.2f SMA%d=%.2f",
		d.symbol, day, d.shortWindow, short, d.longWindow, long)

	prevShort, prevLong, hasPrev, err := d.cache.PrevSMAs(ctx, d.symbol)
	if err != nil {
		logger.Error("[SIGNAL] [%s] failed to read previous SMAs: %v", d.symbol, err)
		return
	}

	// Текущая пара становится «прошлой» безусловно, был сигнал или нет:
	// следующий прогон обязан сравнивать с сегодняшними значениями.
	if err := d.cache.SetPrevSMAs(ctx, d.symbol, short, long); err != nil {
		logger.Error("[SIGNAL] [%s] failed to store current SMAs: %v", d.symbol, err)
	}

	if !hasPrev {
		logger.Info("[SIGNAL] [%s] no previous SMAs (first eligible run), nothing to cross", d.symbol)
		return
	}

	var side models.Side
	var reason string
	switch {
	case short > long && prevShort <= prevLong:
		side = models.SideBuy
		reason = fmt.Sprintf("SMA%d crossed above SMA%d", d.shortWindow, d.longWindow)
		logger.Info("[SIGNAL] *** [%s] BUY (golden cross) on %s ***", d.symbol, day)
	case short < long && prevShort >= prevLong:
		side = models.SideSell
		reason = fmt.Sprintf("SMA%d crossed below SMA%d", d.shortWindow, d.longWindow)
		logger.Info("[SIGNAL] *** [%s] SELL (death cross) on %s ***", d.symbol, day)
	default:
		logger.Info("[SIGNAL] [%s] no crossover for %s", d.symbol, day)
		return
	}

	sig := models.Signal{
		Timestamp:        ev.Day,
		Symbol:           d.symbol,
		Type:             side,
		Reason:           reason,
		PriceAtSignal:    ev.Price,
		SMAShort:         short,
		SMALong:          long,
		CalculationRanAt: time.Now().UTC(),
	}
	// лог сигнала пишется ДО диспатча в ордера; отказ записи глотаем
	if err := d.store.InsertSignal(ctx, sig); err != nil {
		logger.Error("[SIGNAL] [%s] failed to save signal: %v", d.symbol, err)
	}
	d.n.Sendf("📈 %s: %s @ %.2f (%s)", d.symbol, side, ev.Price, reason)

	select {
	case d.out <- sig:
	case <-ctx.Done():
	}
}
