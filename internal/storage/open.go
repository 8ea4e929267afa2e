package storage

import (
	"context"
	"fmt"

	"github.com/mesaqr/api/internal/config"
	"github.com/mesaqr/api/internal/orderstore"
	"github.com/rs/zerolog/log"
)

// Open builds the backend selected by cfg.Storage. The returned close
// function releases its connections.
func Open(ctx context.Context, cfg *config.Config) (orderstore.Storage, func(), error) {
	switch cfg.Storage {
	case config.StorageFile:
		log.Info().Str("path", cfg.StoragePath).Msg("using file storage")
		return NewFileStorage(cfg.StoragePath), func() {}, nil

	case config.StorageRedis:
		rdb, err := NewRedisClient(ctx, RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, nil, err
		}
		return NewRedisStorage(rdb, cfg.StoreKey), func() { rdb.Close() }, nil

	case config.StoragePostgres:
		pool, err := NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		s := NewPostgresStorage(pool, cfg.StoreKey)
		if err := s.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return s, pool.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
}
