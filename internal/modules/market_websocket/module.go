package marketwebsocket

import (
	"context"

	"go.uber.org/fx"

	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
	"signal_bot/internal/modules/market_websocket/service"
	storagesvc "signal_bot/internal/modules/storage/service"
)

// Транспортная очередь: единственный общий ресурс листенера и агрегатора.
// Отправка блокируется на полной очереди — это и есть backpressure.
func newTickChan(cfg *config.Config) chan models.Tick {
	return make(chan models.Tick, cfg.QueueSize)
}
func asSendOnlyTicks(ch chan models.Tick) chan<- models.Tick { return ch }
func asRecvOnlyTicks(ch chan models.Tick) <-chan models.Tick { return ch }

func Module() fx.Option {
	return fx.Module("market_websocket",
		fx.Provide(
			newTickChan,
			asSendOnlyTicks,
			asRecvOnlyTicks,
			func(c *storagesvc.Cache) service.StatusReporter { return c },
			service.NewClient, // *service.Client
		),
		fx.Invoke(func(lc fx.Lifecycle, c *service.Client, out chan<- models.Tick, ctx context.Context) {
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					go c.Run(ctx, out)
					return nil
				},
			})
		}),
	)
}
