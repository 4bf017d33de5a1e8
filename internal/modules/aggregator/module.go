package aggregator

import (
	"context"

	"go.uber.org/fx"

	"signal_bot/internal/models"
	"signal_bot/internal/modules/aggregator/service"
	storagesvc "signal_bot/internal/modules/storage/service"
)

func Module() fx.Option {
	return fx.Module("aggregator",
		fx.Provide(
			func(s *storagesvc.Store) service.CloseStore { return s },
			func(c *storagesvc.Cache) service.PriceCache { return c },
			service.NewProcessor, // *service.Processor
		),
		fx.Invoke(func(lc fx.Lifecycle, p *service.Processor, in <-chan models.Tick, ctx context.Context) {
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					go p.Run(ctx, in)
					return nil
				},
			})
		}),
	)
}
