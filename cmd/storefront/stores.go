package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/migrate"
	"storefront/internal/repository/record"
)

func openRecordStore(ctx context.Context, kind, site string) (record.Store, func(), error) {
	switch kind {
	case config.RecordStoreJar:
		store, err := record.NewJar(site)
		if err != nil {
			return nil, nil, err
		}
		logger.Debug("record store: cookie jar (not kept after exit)")
		return store, func() {}, nil

	case config.RecordStorePostgres:
		pool, err := db.Connect(ctx, cfg.DBConnString, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connect db: %w", err)
		}
		if err := migrate.Apply(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("apply migrations: %w", err)
		}
		return record.NewPostgres(pool, namespace, logger), pool.Close, nil

	case config.RecordStoreRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
		}
		logger.Debug("record store: redis", zap.String("addr", cfg.RedisAddr), zap.String("namespace", namespace))
		return record.NewRedis(client, namespace), func() { _ = client.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown record store %q (want %s, %s or %s)",
			kind, config.RecordStoreJar, config.RecordStorePostgres, config.RecordStoreRedis)
	}
}
