package signals

import (
	"context"

	"go.uber.org/fx"

	"signal_bot/internal/models"
	"signal_bot/internal/modules/signals/service"
	storagesvc "signal_bot/internal/modules/storage/service"
	"signal_bot/pkg/logger"
)

// Очереди детектора и ордеров. Каждую дренит ровно один воркер, поэтому
// события одного инструмента обрабатываются строго по порядку прихода.
func newCloseChan() chan models.CloseEvent {
	return make(chan models.CloseEvent, 4096)
}
func asSendOnlyCloses(ch chan models.CloseEvent) chan<- models.CloseEvent { return ch }

func newSignalsChan() chan models.Signal {
	return make(chan models.Signal, 4096)
}
func asSendOnlySignals(ch chan models.Signal) chan<- models.Signal { return ch }
func asRecvOnlySignals(ch chan models.Signal) <-chan models.Signal { return ch }

func Module() fx.Option {
	return fx.Module("signals",
		fx.Provide(
			newCloseChan,
			asSendOnlyCloses,
			newSignalsChan,
			asSendOnlySignals,
			asRecvOnlySignals,
			func(c *storagesvc.Cache) service.SMACache { return c },
			func(s *storagesvc.Store) service.SignalStore { return s },
			service.NewDetector, // *service.Detector
		),
		fx.Invoke(func(lc fx.Lifecycle, d *service.Detector, closes chan models.CloseEvent, ctx context.Context) {
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					go func() {
						logger.Info("[SIGNAL] detector loop started")
						for {
							select {
							case <-ctx.Done():
								logger.Info("[SIGNAL] detector loop stopped")
								return
							case ev, ok := <-closes:
								if !ok {
									logger.Info("[SIGNAL] close channel closed")
									return
								}
								d.OnClose(ctx, ev)
							}
						}
					}()
					return nil
				},
			})
		}),
	)
}
