// Package kvstore persists small named values. It backs the single setup slot and can be
// pointed at memory, a local SQLite file, Redis or Postgres.
package kvstore

import (
	"context"
	"errors"
	"fmt"

	"ai-character-chat-simulator/backend/pkg/config"
	"ai-character-chat-simulator/backend/pkg/logger"
)

// ErrNotFound is returned by Get for a key that was never set
var ErrNotFound = errors.New("key not found")

// Store is a string key-value store
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Ping(ctx context.Context) error
	Close() error
}

// Storage drivers
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// Open builds the store selected by cfg.Storage.Driver
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger) (Store, error) {
	log = log.WithComponent("kvstore")

	var (
		store Store
		err   error
	)
	switch cfg.Storage.Driver {
	case DriverMemory:
		store = NewMemory()
	case DriverSQLite:
		store, err = NewSQLite(ctx, cfg.Storage.SQLitePath)
	case DriverRedis:
		store, err = NewRedis(ctx, RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	case DriverPostgres:
		store, err = NewPostgres(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Storage.Driver, err)
	}

	log.Info("key-value store ready", "driver", cfg.Storage.Driver)
	return store, nil
}
