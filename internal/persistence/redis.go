package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/config"
)

// Redis wraps the go-redis client.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to Redis using the provided configuration.
func NewRedis(cfg config.RedisConfig, logger *zap.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("unable to reach redis", zap.Error(err))
	} else {
		logger.Info("connected to redis")
	}

	return &Redis{Client: client}
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

// SessionLocker serializes chat handoff resolution per (tenant, session) so
// two near-simultaneous messages cannot both create a ticket for one session.
type SessionLocker interface {
	// Acquire blocks until the session lease is held, the context ends, or
	// the attempt budget runs out. The returned release func is always safe
	// to call.
	Acquire(ctx context.Context, tenantID, sessionID string) (release func(), err error)
}

// lockClient is the slice of the go-redis API the locker needs.
type lockClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

type redisSessionLocker struct {
	client lockClient
	ttl    time.Duration
	logger *zap.Logger
}

// releaseLockScript deletes the lease only while the caller still holds it.
// After the TTL expires another holder may own the key; an unconditional DEL
// would drop their lease.
const releaseLockScript = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) end return 0`

// NewSessionLocker builds a Redis-lease locker. When Redis is unreachable the
// lock degrades to a no-op: chat availability wins over strict serialization.
func NewSessionLocker(r *Redis, ttl time.Duration, logger *zap.Logger) SessionLocker {
	return &redisSessionLocker{client: r.Client, ttl: ttl, logger: logger}
}

func (l *redisSessionLocker) Acquire(ctx context.Context, tenantID, sessionID string) (func(), error) {
	key := "handoff_lock:" + tenantID + ":" + sessionID
	token := uuid.NewString()

	deadline := time.Now().Add(l.ttl)
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			l.logger.Warn("session lock unavailable; proceeding unlocked",
				zap.String("session_id", sessionID), zap.Error(err))
			return func() {}, nil
		}
		if ok {
			return func() {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				if err := l.client.Eval(ctx, releaseLockScript, []string{key}, token).Err(); err != nil {
					l.logger.Warn("session lock release failed", zap.String("key", key), zap.Error(err))
				}
			}, nil
		}
		if time.Now().After(deadline) {
			return func() {}, errors.New("session lock timeout")
		}
		select {
		case <-ctx.Done():
			return func() {}, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}
