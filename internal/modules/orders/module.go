package orders

import (
	"context"

	"go.uber.org/fx"

	"signal_bot/internal/models"
	"signal_bot/internal/modules/orders/service"
	storagesvc "signal_bot/internal/modules/storage/service"
	"signal_bot/pkg/logger"
)

func Module() fx.Option {
	return fx.Module("orders",
		fx.Provide(
			func(c *storagesvc.Cache) service.PositionCache { return c },
			func(s *storagesvc.Store) service.OrderStore { return s },
			service.NewManager, // *service.Manager
		),
		fx.Invoke(func(lc fx.Lifecycle, m *service.Manager, sigs <-chan models.Signal, ctx context.Context) {
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					go func() {
						logger.Info("[ORDER] manager loop started")
						for {
							select {
							case <-ctx.Done():
								logger.Info("[ORDER] manager loop stopped")
								return
							case sig, ok := <-sigs:
								if !ok {
									logger.Info("[ORDER] signal channel closed")
									return
								}
								m.OnSignal(ctx, sig)
							}
						}
					}()
					return nil
				},
			})
		}),
	)
}
