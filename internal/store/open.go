package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	BackendGorm  = "gorm"
	BackendRedis = "redis"
)

type Options struct {
	Backend string
	DB      *gorm.DB
	Redis   *redis.Client
	Breaker *BreakerConfig
	Logger  *slog.Logger
}

// Open builds the configured backend wrapped in a circuit breaker.
func Open(ctx context.Context, opts Options) (*Guarded, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "store", "backend", opts.Backend)

	var inner Store
	switch opts.Backend {
	case BackendGorm, "":
		if opts.DB == nil {
			return nil, errors.New("gorm store requires a database")
		}
		s, err := NewGormStore(opts.DB, log)
		if err != nil {
			return nil, err
		}
		inner = s
	case BackendRedis:
		if opts.Redis == nil {
			return nil, errors.New("redis store requires a redis client")
		}
		s, err := NewRedisStore(ctx, opts.Redis, log)
		if err != nil {
			return nil, err
		}
		inner = s
	default:
		return nil, fmt.Errorf("unsupported store backend %q", opts.Backend)
	}

	return NewGuarded(inner, opts.Breaker), nil
}
