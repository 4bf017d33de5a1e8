package bootstrap

import (
	"context"

	"go.uber.org/fx"

	"signal_bot/internal/modules/bootstrap/service"
	healthsvc "signal_bot/internal/modules/health/service"
	storagesvc "signal_bot/internal/modules/storage/service"
	"signal_bot/pkg/logger"
)

// Бэкфилл гоняется синхронно в OnStart до запуска живых циклов: детектор
// должен сразу видеть согласованное окно цен. Его провал не роняет процесс.
func Module() fx.Option {
	return fx.Module("bootstrap",
		fx.Provide(
			func(s *storagesvc.Store) service.ClosePersister { return s },
			func(c *storagesvc.Cache) service.PriceSeeder { return c },
			service.NewBackfiller, // *service.Backfiller
		),
		fx.Invoke(func(lc fx.Lifecycle, b *service.Backfiller, state *healthsvc.State) {
			lc.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					if err := b.Run(ctx); err != nil {
						logger.Error("[BACKFILL] failed: %v", err)
					}
					state.SetReady(true)
					return nil
				},
			})
		}),
	)
}
