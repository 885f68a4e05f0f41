package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/marketplace-session/internal/config"
)

const (
	redisDialTimeout   = 5 * time.Second
	redisCapabilityKey = "marketplace-session:capability-check"
)

// ErrRedisMissingGetDel is returned by CheckCapabilities when the server
// predates GETDEL (Redis 6.2), which the credential store's Take relies on.
var ErrRedisMissingGetDel = errors.New("redis server does not support GETDEL")

// Redis holds the go-redis client backing the credential store.
type Redis struct {
	Client *redis.Client
}

// NewRedis builds the client and checks the server once. Neither an unreachable
// server nor a missing capability is fatal here; both are logged and the
// readiness probe keeps reporting the connection state.
func NewRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) *Redis {
	r := &Redis{Client: redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: redisDialTimeout,
	})}

	if err := r.Ping(ctx); err != nil {
		logger.Warn("unable to reach redis", zap.String("addr", cfg.Addr), zap.Error(err))
		return r
	}
	if err := r.CheckCapabilities(ctx); err != nil {
		logger.Warn("redis cannot serve the credential store", zap.String("addr", cfg.Addr), zap.Error(err))
		return r
	}
	logger.Info("connected to redis", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	return r
}

// CheckCapabilities verifies the server understands GETDEL by consuming a key
// nothing else writes.
func (r *Redis) CheckCapabilities(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	err := r.Client.GetDel(ctx, redisCapabilityKey).Err()
	if err == nil || errors.Is(err, redis.Nil) {
		return nil
	}
	var redisErr redis.Error
	if errors.As(err, &redisErr) {
		return fmt.Errorf("%w: %v", ErrRedisMissingGetDel, err)
	}
	return err
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}
