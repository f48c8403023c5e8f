package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"
	gormlogger "gorm.io/gorm/logger"

	"todola/backend/internal/auth"
	"todola/backend/internal/config"
	"todola/backend/internal/database"
	"todola/backend/internal/logger"
	"todola/backend/internal/monitoring"
	"todola/backend/internal/store"
)

var jsonOut bool

var rootCmd = &cobra.Command{
	Use:   "todola",
	Short: "TO-DO-LA task tracker backend",
	Long: `TO-DO-LA keeps per-user task lists in a real-time store and serves
them over REST and WebSocket.

Configuration is read from the environment and an optional .env file.

Examples:
  todola serve
  todola users list
  todola users delete 6f1c...`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print results as JSON")
}

// runtime holds the backends every command needs.
type runtime struct {
	cfg    *config.Config
	log    *slog.Logger
	pool   *database.DatabasePool
	store  *store.Guarded
	auth   *auth.Service
	health *monitoring.HealthChecker
	closer []func()
}

func bootstrap(ctx context.Context) (*runtime, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.Init(cfg.Log.Level, cfg.Log.JSON)

	rt := &runtime{cfg: cfg, log: log, health: monitoring.NewHealthChecker()}

	pool, err := database.NewDatabasePool(&database.PoolConfig{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.GetDatabaseDSN(),
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		LogLevel:        gormlogger.Warn,
	})
	if err != nil {
		return nil, err
	}
	rt.pool = pool
	rt.closer = append(rt.closer, func() { pool.Close() })
	rt.health.Register("database", func(ctx context.Context) error { return pool.Health() })

	opts := store.Options{
		Backend: cfg.Store.Backend,
		DB:      pool.DB,
		Breaker: &store.BreakerConfig{
			MaxFailures:      cfg.Store.BreakerMaxFailures,
			Timeout:          cfg.Store.BreakerTimeout,
			HalfOpenMaxCalls: cfg.Store.BreakerHalfOpenCall,
		},
		Logger: log,
	}
	if cfg.Store.Backend == store.BackendRedis {
		client := store.NewRedisClient(&store.RedisConfig{
			Addr:         cfg.GetRedisAddr(),
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   cfg.Redis.MaxRetries,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		rt.closer = append(rt.closer, func() { client.Close() })
		opts.Redis = client
	}

	s, err := store.Open(ctx, opts)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	rt.store = s
	rt.closer = append(rt.closer, func() { s.Close() })
	rt.health.Register("store", s.Health)

	svc, err := auth.NewService(pool.DB, auth.Config{
		Secret:     cfg.Auth.JWTSecret,
		Issuer:     cfg.Auth.Issuer,
		TokenTTL:   cfg.Auth.AccessTokenTTL,
		BCryptCost: cfg.Auth.BCryptCost,
	}, log)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to start auth service: %w", err)
	}
	rt.auth = svc

	return rt, nil
}

// Close releases backends in reverse order of acquisition.
func (rt *runtime) Close() {
	for i := len(rt.closer) - 1; i >= 0; i-- {
		rt.closer[i]()
	}
	rt.closer = nil
}

func newTable(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
}

func printJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
