package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
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

func TestParseTickValidFrame(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := []byte(`{"u":400900217,"s":"BTCUSDT","b":"65000.10","B":"31.21","a":"65000.90","A":"40.66"}`)

	tick, ok := parseTick(msg, "BTCUSDT", now)
	require.True(t, ok)
	assert.Equal(t, int64(400900217), tick.UpdateID)
	assert.InDelta(t, 65000.10, tick.Bid, 1e-9)
	assert.InDelta(t, 65000.90, tick.Ask, 1e-9)
	assert.InDelta(t, 65000.50, tick.Mid(), 1e-9)
	assert.Equal(t, now, tick.Ts)
}

func TestParseTickDiscards(t *testing.T) {
	now := time.Now().UTC()
	cases := map[string]string{
		"malformed json": `{"u":1,"s":`,
		"wrong symbol":   `{"u":1,"s":"ETHUSDT","b":"1.0","a":"2.0"}`,
		"empty bid":      `{"u":1,"s":"BTCUSDT","b":"","a":"2.0"}`,
		"missing ask":    `{"u":1,"s":"BTCUSDT","b":"1.0"}`,
		"bad bid float":  `{"u":1,"s":"BTCUSDT","b":"abc","a":"2.0"}`,
		"empty object":   `{}`,
	}
	for name, msg := range cases {
		_, ok := parseTick([]byte(msg), "BTCUSDT", now)
		assert.False(t, ok, name)
	}
}

type fakeStatusReporter struct {
	mu       sync.Mutex
	statuses []string
}

func (f *fakeStatusReporter) SetFeedStatus(_ context.Context, _ string, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *fakeStatusReporter) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.statuses...)
}

func TestClientRunEmitsTicks(t *testing.T) {
	done := make(chan struct{})
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		frames := []string{
			`{"u":1,"s":"ETHUSDT","b":"1.0","a":"2.0"}`, // чужой символ — мимо
			`not json at all`,                           // мусор — мимо, без разрыва
			`{"u":42,"s":"BTCUSDT","b":"100.0","a":"101.0"}`,
		}
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		<-done
	}))
	defer srv.Close()
	defer close(done)

	cfg := &config.Config{}
	cfg.Exchange.WSURL = "ws" + strings.TrimPrefix(srv.URL, "http")
	cfg.Exchange.Symbol = "BTCUSDT"
	cfg.ReconnectDelay = 10 * time.Millisecond

	status := &fakeStatusReporter{}
	state := healthsvc.NewState()
	client := NewClient(cfg, status, state)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := make(chan models.Tick, 4)
	go client.Run(ctx, out)

	select {
	case tick := <-out:
		assert.Equal(t, int64(42), tick.UpdateID)
		assert.InDelta(t, 100.0, tick.Bid, 1e-9)
		assert.InDelta(t, 101.0, tick.Ask, 1e-9)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tick")
	}

	assert.True(t, state.WSConnected())
	assert.Contains(t, status.seen(), StatusConnected)
	// чужой и мусорный фреймы не дали тиков
	assert.Empty(t, out)
}
