package service

import (
	"context"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
	"signal_bot/internal/notify"
	"signal_bot/pkg/logger"
)

// ClosePersister — тот же upsert-путь, что у живого агрегатора.
type ClosePersister interface {
	UpsertDailyClose(ctx context.Context, dc models.DailyClose) error
}

// PriceSeeder — перезаливка кэш-списка цен целиком.
type PriceSeeder interface {
	ReplacePrices(ctx context.Context, symbol string, oldestFirst []float64, maxLen int64) error
}

// Backfiller один раз на старте тянет исторические дневные свечи, чтобы
// детектор сразу видел корректное окно цен, а не ждал 200 дней.
type Backfiller struct {
	cfg   *config.Config
	http  *resty.Client
	store ClosePersister
	cache PriceSeeder
	n     notify.Notifier
}

func NewBackfiller(cfg *config.Config, store ClosePersister, cache PriceSeeder, n notify.Notifier) *Backfiller {
	httpClient := resty.New().
		SetBaseURL(cfg.Exchange.RESTURL).
		SetTimeout(15 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(2 * time.Second)

	return &Backfiller{
		cfg:   cfg,
		http:  httpClient,
		store: store,
		cache: cache,
		n:     n,
	}
}

// Run — GET /api/v3/klines за backfill_days дней, каждая свеча проходит
// через обычный upsert (идемпотентно), потом кэш перезаливается так, чтобы
// самые свежие цены были в голове списка.
func (b *Backfiller) Run(ctx context.Context) error {
	symbol := b.cfg.Exchange.Symbol
	days := b.cfg.Strategy.BackfillDays

	logger.Info("[BACKFILL] start: %s, %d days", symbol, days)

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -days)

	resp, err := b.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol":    symbol,
			"interval":  "1d",
			"startTime": strconv.FormatInt(start.UnixMilli(), 10),
			"endTime":   strconv.FormatInt(end.UnixMilli(), 10),
			// с запасом, чтобы не упереться в границу
			"limit": strconv.Itoa(days + 50),
		}).
		Get("/api/v3/klines")
	if err != nil {
		return errors.Wrap(err, "fetch klines")
	}
	if resp.IsError() {
		return errors.Errorf("fetch klines: status %d: %s", resp.StatusCode(), resp.String())
	}

	// формат строки: [openTime,o,h,l,c,vol,closeTime,...]
	var rows [][]interface{}
	if err := sonic.Unmarshal(resp.Body(), &rows); err != nil {
		return errors.Wrap(err, "decode klines")
	}
	logger.Info("[BACKFILL] fetched %d klines", len(rows))

	prices := make([]float64, 0, len(rows)) // от старых к новым
	var saved int
	for _, row := range rows {
		dc, ok := parseKline(row, symbol)
		if !ok {
			logger.Warn("[BACKFILL] could not parse kline row, skipped")
			continue
		}
		if err := b.store.UpsertDailyClose(ctx, dc); err != nil {
			logger.Error("[BACKFILL] failed to save %s: %v", dc.Date, err)
			continue
		}
		prices = append(prices, dc.Price)
		saved++
	}

	if len(prices) == 0 {
		return errors.New("no valid historical klines")
	}

	if err := b.cache.ReplacePrices(ctx, symbol, prices, int64(b.cfg.Strategy.CacheRetention)); err != nil {
		return errors.Wrap(err, "seed price cache")
	}

	logger.Info("[BACKFILL] done: %d closes saved, cache seeded", saved)
	b.n.Sendf("🔥 %s: бэкфилл завершён, %d дневных закрытий", symbol, saved)
	return nil
}

// parseKline — close (индекс 4, строка) и closeTime (индекс 6, ms).
// Дата дня берётся из closeTime.
func parseKline(row []interface{}, symbol string) (models.DailyClose, bool) {
	if len(row) < 7 {
		return models.DailyClose{}, false
	}
	closeStr, ok := row[4].(string)
	if !ok {
		return models.DailyClose{}, false
	}
	price, err := strconv.ParseFloat(closeStr, 64)
	if err != nil || price <= 0 {
		return models.DailyClose{}, false
	}
	closeMs, ok := row[6].(float64)
	if !ok {
		return models.DailyClose{}, false
	}
	closeAt := time.UnixMilli(int64(closeMs)).UTC()

	return models.DailyClose{
		Date:         closeAt.Format(models.DateLayout),
		Symbol:       symbol,
		Price:        price,
		TimestampUTC: closeAt,
		IsHistorical: true,
	}, true
}
