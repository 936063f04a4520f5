package client

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/modelguard/guardian/pkg/api"
	"github.com/modelguard/guardian/pkg/log"
)

type (
	// IdempotencyRegistry records mutating operations per correlation ID
	// so a repeated call never produces a second side effect
	IdempotencyRegistry interface {
		// Begin claims the key, reporting false when the operation was
		// already applied
		Begin(ctx context.Context, key string) (bool, error)

		// Release surrenders a claimed key after the guarded call
		// failed, so a retry re-attempts the side effect
		Release(ctx context.Context, key string) error

		Close() error
	}

	// MemoryRegistry is the in-process registry used when no Redis
	// address is configured
	MemoryRegistry struct {
		mu      sync.Mutex
		applied map[string]time.Time
		ttl     time.Duration
	}

	// RedisRegistry claims idempotency keys via SET NX with a TTL,
	// surviving process restarts
	RedisRegistry struct {
		client *redis.Client
		ttl    time.Duration
	}
)

const idempotencyKeyPrefix = "guardian:idem:"

var (
	_ IdempotencyRegistry = (*MemoryRegistry)(nil)
	_ IdempotencyRegistry = (*RedisRegistry)(nil)
)

// IdempotencyKey builds the registry key for one mutating operation within
// one plan's execution
func IdempotencyKey(cid api.CorrelationID, op string) string {
	return string(cid) + ":" + op
}

// NewMemoryRegistry creates an in-process idempotency registry
func NewMemoryRegistry(ttl time.Duration) *MemoryRegistry {
	return &MemoryRegistry{
		applied: map[string]time.Time{},
		ttl:     ttl,
	}
}

func (r *MemoryRegistry) Begin(_ context.Context, key string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for k, at := range r.applied {
		if now.Sub(at) > r.ttl {
			delete(r.applied, k)
		}
	}

	if _, ok := r.applied[key]; ok {
		return false, nil
	}
	r.applied[key] = now
	return true, nil
}

func (r *MemoryRegistry) Release(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.applied, key)
	return nil
}

func (r *MemoryRegistry) Close() error {
	return nil
}

// NewRedisRegistry creates a Redis-backed idempotency registry
func NewRedisRegistry(addr, password string, ttl time.Duration) *RedisRegistry {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	return &RedisRegistry{client: client, ttl: ttl}
}

func (r *RedisRegistry) Begin(ctx context.Context, key string) (bool, error) {
	return r.client.SetNX(ctx, idempotencyKeyPrefix+key, 1, r.ttl).Result()
}

func (r *RedisRegistry) Release(ctx context.Context, key string) error {
	return r.client.Del(ctx, idempotencyKeyPrefix+key).Err()
}

func (r *RedisRegistry) Close() error {
	return r.client.Close()
}

// releaseKey surrenders a claimed key so a retry can re-attempt the
// call. Runs detached from the caller's context; cancellation must not
// leave a failed operation claimed
func releaseKey(idem IdempotencyRegistry, key string) {
	if err := idem.Release(context.Background(), key); err != nil {
		slog.Warn("Failed to release idempotency key",
			slog.String("key", key),
			log.Error(err))
	}
}
