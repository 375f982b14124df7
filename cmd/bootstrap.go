package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmehdipour/titletester/internal/config"
	"github.com/jmehdipour/titletester/internal/db"
	"github.com/jmehdipour/titletester/internal/lock"
	"github.com/jmehdipour/titletester/internal/logger"
	"github.com/jmehdipour/titletester/internal/quota"
	"github.com/jmehdipour/titletester/internal/repository"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func bootstrap() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	lg, err := logger.New(cfg.App.LogLevel)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, lg, nil
}

// openMySQL returns nil when no DSN is configured.
func openMySQL(ctx context.Context, cfg config.Config, lg *zap.Logger) (*sqlx.DB, error) {
	sqlDB, err := db.NewMySQLConnection(ctx, cfg.MySQL.DSN, db.MySQLOptsFrom(cfg.MySQL))
	if errors.Is(err, db.ErrNoDSN) {
		lg.Warn("mysql not configured, quota ledger disabled")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mysql connect: %w", err)
	}
	return sqlDB, nil
}

// openRedis returns nil when no address is configured.
func openRedis(ctx context.Context, cfg config.Config, lg *zap.Logger) (*redis.Client, error) {
	rdb, err := db.NewRedisClient(ctx, db.RedisOptsFrom(cfg.Redis))
	if errors.Is(err, db.ErrNoRedisAddr) {
		lg.Warn("redis not configured, rate limiting and quota tracking disabled")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis connect: %w", err)
	}
	return rdb, nil
}

func newLockManager(cfg config.Config, rdb *redis.Client, lg *zap.Logger) *lock.Manager {
	return lock.NewManager(rdb, lock.Config{
		TTL:        cfg.Lock.TTL,
		RetryDelay: cfg.Lock.RetryDelay,
		MaxRetries: cfg.Lock.MaxRetries,
	}, lg)
}

func newQuotaManager(cfg config.Config, rdb *redis.Client, sqlDB *sqlx.DB, locks *lock.Manager, lg *zap.Logger) *quota.Manager {
	opts := []quota.Option{quota.WithLocker(locks)}
	if sqlDB != nil {
		opts = append(opts, quota.WithStore(repository.NewQuotaUsageRepository(sqlDB)))
	}
	return quota.New(rdb, quota.Config{
		Daily:                   cfg.Quota.Daily,
		WarningThreshold:        cfg.Quota.WarningThreshold,
		CircuitBreakerThreshold: cfg.Quota.CircuitBreakerThreshold,
	}, lg, opts...)
}
