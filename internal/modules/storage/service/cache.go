package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"signal_bot/internal/models"
)

const (
	smaShortField = "sma_short"
	smaLongField  = "sma_long"
)

// Cache — обёртка над Redis: список derived-цен (новые в голове),
// позиция, прошлые SMA и статус фида.
type Cache struct {
	rdb *redis.Client
}

func NewCache(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

func pricesKey(symbol string) string { return fmt.Sprintf("prices:%s:derived_1d", symbol) }

func positionKey(symbol string) string { return fmt.Sprintf("position:%s", symbol) }

func prevSMAKey(symbol string) string { return fmt.Sprintf("previous_sma:%s", symbol) }

func statusKey(symbol string) string { return fmt.Sprintf("websocket_status:%s", symbol) }

// PushPrice — LPUSH нового close в голову + LTRIM до maxLen.
func (c *Cache) PushPrice(ctx context.Context, symbol string, price float64, maxLen int64) error {
	key := pricesKey(symbol)
	if err := c.rdb.LPush(ctx, key, strconv.FormatFloat(price, 'f', -1, 64)).Err(); err != nil {
		return errors.Wrap(err, "lpush derived price")
	}
	if err := c.rdb.LTrim(ctx, key, 0, maxLen-1).Err(); err != nil {
		return errors.Wrap(err, "ltrim derived prices")
	}
	return nil
}

// ReplacePrices — полная перезаливка списка при бэкфилле: DEL, потом LPUSH
// от старых к новым, чтобы самые свежие оказались в голове.
func (c *Cache) ReplacePrices(ctx context.Context, symbol string, oldestFirst []float64, maxLen int64) error {
	key := pricesKey(symbol)
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return errors.Wrap(err, "del derived prices")
	}
	if len(oldestFirst) == 0 {
		return nil
	}
	vals := make([]interface{}, 0, len(oldestFirst))
	for _, p := range oldestFirst {
		vals = append(vals, strconv.FormatFloat(p, 'f', -1, 64))
	}
	if err := c.rdb.LPush(ctx, key, vals...).Err(); err != nil {
		return errors.Wrap(err, "lpush derived prices")
	}
	if err := c.rdb.LTrim(ctx, key, 0, maxLen-1).Err(); err != nil {
		return errors.Wrap(err, "ltrim derived prices")
	}
	return nil
}

// Prices — первые count цен из головы списка (most-recent-first).
func (c *Cache) Prices(ctx context.Context, symbol string, count int64) ([]float64, error) {
	raw, err := c.rdb.LRange(ctx, pricesKey(symbol), 0, count-1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "lrange derived prices")
	}
	prices := make([]float64, 0, len(raw))
	for _, s := range raw {
		p, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "parse cached price %q", s)
		}
		prices = append(prices, p)
	}
	return prices, nil
}

// Position — текущее состояние позиции; ok=false если записи ещё нет.
func (c *Cache) Position(ctx context.Context, symbol string) (models.PositionState, bool, error) {
	v, err := c.rdb.Get(ctx, positionKey(symbol)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "get position")
	}
	return models.PositionState(v), true, nil
}

func (c *Cache) SetPosition(ctx context.Context, symbol string, state models.PositionState) error {
	if err := c.rdb.Set(ctx, positionKey(symbol), string(state), 0).Err(); err != nil {
		return errors.Wrap(err, "set position")
	}
	return nil
}

// PrevSMAs — пара SMA прошлого цикла; ok=false на первом прогоне.
func (c *Cache) PrevSMAs(ctx context.Context, symbol string) (float64, float64, bool, error) {
	vals, err := c.rdb.HGetAll(ctx, prevSMAKey(symbol)).Result()
	if err != nil {
		return 0, 0, false, errors.Wrap(err, "hgetall previous smas")
	}
	shortStr, okS := vals[smaShortField]
	longStr, okL := vals[smaLongField]
	if !okS || !okL {
		return 0, 0, false, nil
	}
	short, err := strconv.ParseFloat(shortStr, 64)
	if err != nil {
		return 0, 0, false, errors.Wrapf(err, "parse %s", smaShortField)
	}
	long, err := strconv.ParseFloat(longStr, 64)
	if err != nil {
		return 0, 0, false, errors.Wrapf(err, "parse %s", smaLongField)
	}
	return short, long, true, nil
}

func (c *Cache) SetPrevSMAs(ctx context.Context, symbol string, short, long float64) error {
	err := c.rdb.HSet(ctx, prevSMAKey(symbol), map[string]interface{}{
		smaShortField: strconv.FormatFloat(short, 'f', -1, 64),
		smaLongField:  strconv.FormatFloat(long, 'f', -1, 64),
	}).Err()
	if err != nil {
		return errors.Wrap(err, "hset previous smas")
	}
	return nil
}

// SetFeedStatus — liveness фида: connected / disconnected / error.
func (c *Cache) SetFeedStatus(ctx context.Context, symbol, status string) error {
	if err := c.rdb.Set(ctx, statusKey(symbol), status, 0).Err(); err != nil {
		return errors.Wrap(err, "set feed status")
	}
	return nil
}
