package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/presence-desk/internal/config"
)

const sessionKeyPrefix = "presence-desk:session:"

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

// RedisStores keeps each session as one hash with a sliding TTL, so a desk
// restart can resume a session from its shadow copy.
type RedisStores struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisStores builds the store set.
func NewRedisStores(client redis.UniversalClient, ttl time.Duration) *RedisStores {
	return &RedisStores{client: client, ttl: ttl}
}

// Open returns the store for sessionID.
func (r *RedisStores) Open(sessionID string) SessionStore {
	return &redisStore{client: r.client, key: sessionKeyPrefix + sessionID, ttl: r.ttl}
}

type redisStore struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

func (s *redisStore) Get(ctx context.Context, field string) (string, bool, error) {
	v, err := s.client.HGet(ctx, s.key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *redisStore) Set(ctx context.Context, field, value string) error {
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.key, field, value)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key, s.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *redisStore) Delete(ctx context.Context, field string) error {
	return s.client.HDel(ctx, s.key, field).Err()
}

func (s *redisStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}
