package service

import (
	"context"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
	healthsvc "signal_bot/internal/modules/health/service"
	"signal_bot/pkg/logger"
)

// StatusReporter — liveness фида наружу (Redis).
type StatusReporter interface {
	SetFeedStatus(ctx context.Context, symbol, status string) error
}

const (
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
	StatusError        = "error"
)

// Client держит одну подписку на bookTicker-фид и публикует тики в очередь.
type Client struct {
	cfg      *config.Config
	wsDialer *websocket.Dialer
	status   StatusReporter
	state    *healthsvc.State
}

func NewClient(cfg *config.Config, status StatusReporter, state *healthsvc.State) *Client {
	return &Client{
		cfg:      cfg,
		wsDialer: &websocket.Dialer{},
		status:   status,
		state:    state,
	}
}

// bookTicker-фрейм: {"u":400900217,"s":"BTCUSDT","b":"25.35","a":"25.36",...}
type bookTickerFrame struct {
	UpdateID int64  `json:"u"`
	Symbol   string `json:"s"`
	Bid      string `json:"b"`
	Ask      string `json:"a"`
}

// parseTick — тик из сырого фрейма. Мусор логируем и пропускаем, чужой
// символ и пустые поля отбрасываем молча. Соединение не рвём в любом случае.
func parseTick(msg []byte, symbol string, now time.Time) (models.Tick, bool) {
	var frame bookTickerFrame
	if err := sonic.Unmarshal(msg, &frame); err != nil {
		logger.Warn("[WS] could not decode message: %v", err)
		return models.Tick{}, false
	}
	if frame.Symbol != symbol || frame.Bid == "" || frame.Ask == "" {
		return models.Tick{}, false
	}
	bid, err := strconv.ParseFloat(frame.Bid, 64)
	if err != nil {
		logger.Warn("[WS] could not parse bid %q: %v", frame.Bid, err)
		return models.Tick{}, false
	}
	ask, err := strconv.ParseFloat(frame.Ask, 64)
	if err != nil {
		logger.Warn("[WS] could not parse ask %q: %v", frame.Ask, err)
		return models.Tick{}, false
	}
	return models.Tick{
		Ts:       now,
		Bid:      bid,
		Ask:      ask,
		UpdateID: frame.UpdateID,
	}, true
}

// Run — вечный цикл: dial -> read -> enqueue. Любая ошибка транспорта —
// статус в Redis, фиксированная пауза и реконнект. Без роста бэкоффа,
// без лимита попыток.
func (c *Client) Run(ctx context.Context, out chan<- models.Tick) {
	url := c.cfg.Exchange.WSURL
	symbol := c.cfg.Exchange.Symbol
	delay := c.cfg.ReconnectDelay

	for {
		logger.Info("[WS] connect %s", url)
		conn, _, err := c.wsDialer.DialContext(ctx, url, nil)
		if err != nil {
			logger.Error("[WS] dial error: %v", err)
			c.reportStatus(ctx, symbol, StatusError)
			if !c.sleep(ctx, delay) {
				return
			}
			continue
		}

		logger.Info("[WS] connected %s", symbol)
		c.reportStatus(ctx, symbol, StatusConnected)
		c.state.SetWSConnected(true)

		c.readLoop(ctx, conn, symbol, out)

		_ = conn.Close()
		c.state.SetWSConnected(false)
		select {
		case <-ctx.Done():
			return
		default:
		}
		logger.Info("[WS] reconnect in %s", delay)
		if !c.sleep(ctx, delay) {
			return
		}
	}
}

// readLoop читает до первой ошибки транспорта. Кривые сообщения не рвут
// соединение, их просто пропускаем.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, symbol string, out chan<- models.Tick) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			logger.Warn("[WS] read error: %v", err)
			c.reportStatus(ctx, symbol, StatusDisconnected)
			return
		}

		tick, ok := parseTick(msg, symbol, time.Now().UTC())
		if !ok {
			continue
		}

		// очередь полная — висим тут (backpressure), данные не теряем
		select {
		case out <- tick:
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) reportStatus(ctx context.Context, symbol, status string) {
	if err := c.status.SetFeedStatus(ctx, symbol, status); err != nil {
		logger.Warn("[WS] could not update feed status: %v", err)
	}
}

func (c *Client) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
