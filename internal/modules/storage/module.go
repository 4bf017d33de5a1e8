package storage

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	mongoopts "go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/fx"

	"signal_bot/internal/modules/config"
	"signal_bot/internal/modules/storage/service"
	"signal_bot/pkg/logger"
)

// Module поднимает клиентов Mongo и Redis. Коннект проверяется пингом сразу:
// без хранилищ стартовать нельзя.
func Module() fx.Option {
	return fx.Module("storage",
		fx.Provide(
			func(ctx context.Context, cfg *config.Config, lc fx.Lifecycle) (*mongo.Database, error) {
				client, err := mongo.Connect(ctx, mongoopts.Client().ApplyURI(cfg.Mongo.ConnString))
				if err != nil {
					return nil, fmt.Errorf("failed to create mongo client: %w", err)
				}
				if err := client.Ping(ctx, nil); err != nil {
					return nil, fmt.Errorf("mongo ping failed: %w", err)
				}
				logger.Info("[STORE] mongo connected: %s", cfg.Mongo.ConnString)

				lc.Append(fx.Hook{
					OnStop: func(ctx context.Context) error {
						return client.Disconnect(ctx)
					},
				})
				return client.Database(cfg.Mongo.Database), nil
			},
			func(ctx context.Context, cfg *config.Config, lc fx.Lifecycle) (*redis.Client, error) {
				rdb := redis.NewClient(&redis.Options{
					Addr: fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
				})
				if err := rdb.Ping(ctx).Err(); err != nil {
					return nil, fmt.Errorf("redis ping failed: %w", err)
				}
				logger.Info("[STORE] redis connected: %s:%d", cfg.Redis.Host, cfg.Redis.Port)

				lc.Append(fx.Hook{
					OnStop: func(_ context.Context) error {
						return rdb.Close()
					},
				})
				return rdb, nil
			},
			service.NewCache, // *service.Cache
			service.NewStore, // *service.Store
		),
	)
}
