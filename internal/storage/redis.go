package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	go_json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var _ Backend = (*RedisBackend)(nil)

const (
	rateLimitKeyPrefix = "artemis:ratelimit:"
	stateKeyPrefix     = "artemis:state:"
	lockKeyPrefix      = "artemis:lock:"
	quotaKeyPrefix     = "artemis:quota:"
)

type RedisConfig struct {
	Client *redis.Client
}

type RedisBackend struct {
	client     *redis.Client
	rateLimit  int
	rateWindow time.Duration
}

func NewRedisBackend(cfg RedisConfig, rateLimit int) (*RedisBackend, error) {
	if cfg.Client == nil {
		return nil, errors.New("redis client is required")
	}
	return &RedisBackend{
		client:     cfg.Client,
		rateLimit:  rateLimit,
		rateWindow: time.Second,
	}, nil
}

func (r *RedisBackend) Allow(ctx context.Context, key string) (RateLimitResult, error) {
	params := rateLimitParams{
		window: r.rateWindow,
		limit:  r.rateLimit,
		ttl:    r.rateWindow + time.Second,
	}

	allowed, err := runRateLimitScript(ctx, r.client, rateLimitKeyPrefix+key, params)
	if err != nil {
		return RateLimitResult{}, fmt.Errorf("failed to run rate limit script: %w", err)
	}

	return RateLimitResult{
		Allowed:    allowed,
		RetryAfter: r.rateWindow,
	}, nil
}

func (r *RedisBackend) Set(ctx context.Context, state string, entry StateEntry, ttl time.Duration) error {
	data, err := go_json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal state entry: %w", err)
	}

	if err := r.client.Set(ctx, stateKeyPrefix+state, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set state: %w", err)
	}

	return nil
}

func (r *RedisBackend) GetAndDelete(ctx context.Context, state string) (StateEntry, error) {
	key := stateKeyPrefix + state

	data, err := r.client.GetDel(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return StateEntry{}, ErrNotFound
	}
	if err != nil {
		return StateEntry{}, fmt.Errorf("failed to get and delete state: %w", err)
	}

	var entry StateEntry
	if err := go_json.Unmarshal(data, &entry); err != nil {
		return StateEntry{}, fmt.Errorf("failed to unmarshal state entry: %w", err)
	}

	return entry, nil
}

func (r *RedisBackend) TryLock(ctx context.Context, key string, ttl time.Duration) (Unlock, error) {
	owner := uuid.NewString()
	fullKey := lockKeyPrefix + key
	err := r.client.SetArgs(ctx, fullKey, owner, redis.SetArgs{Mode: "NX", TTL: ttl}).Err()
	if errors.Is(err, redis.Nil) {
		return nil, ErrLockTaken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}

	return func(ctx context.Context) error {
		released, err := runReleaseScript(ctx, r.client, fullKey, owner)
		if err != nil {
			return fmt.Errorf("failed to release lock: %w", err)
		}
		if !released {
			return ErrLockExpired
		}
		return nil
	}, nil
}

func (r *RedisBackend) GetQuota(ctx context.Context, key string) (Quota, error) {
	data, err := r.client.Get(ctx, quotaKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Quota{}, ErrNotFound
	}
	if err != nil {
		return Quota{}, fmt.Errorf("failed to get quota: %w", err)
	}

	var q Quota
	if err := go_json.Unmarshal(data, &q); err != nil {
		return Quota{}, fmt.Errorf("failed to unmarshal quota: %w", err)
	}
	return q, nil
}

func (r *RedisBackend) SetQuota(ctx context.Context, key string, quota Quota) error {
	ttl := time.Until(quota.ResetAt)
	if ttl <= 0 {
		return r.client.Del(ctx, quotaKeyPrefix+key).Err()
	}

	data, err := go_json.Marshal(quota)
	if err != nil {
		return fmt.Errorf("failed to marshal quota: %w", err)
	}
	if err := r.client.Set(ctx, quotaKeyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set quota: %w", err)
	}
	return nil
}

func (r *RedisBackend) Close() error {
	return r.client.Close()
}

func (r *RedisBackend) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
