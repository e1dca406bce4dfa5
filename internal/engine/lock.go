package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	errx "github.com/pidebot/engine/internal/core/error"
	logx "github.com/pidebot/engine/pkg/logger"
)

// Locker serializes work on a key, best effort. The store's guarantees do
// not depend on it; it exists so two concurrent turns for the same
// customer do not interleave their completions.
type Locker interface {
	// Acquire tries to take the lock. When ok, release must be called to
	// free it; release is safe to call regardless.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool)
}

// NoopLocker grants every acquisition. Used when no Redis endpoint is
// configured (single-instance deployments) and in tests.
type NoopLocker struct{}

func (NoopLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool) {
	return func() {}, true
}

// RedisLocker implements Locker with SET NX PX plus a token-checked delete,
// so an expired holder cannot release a lock somebody else now owns.
type RedisLocker struct {
	rdb    redis.Cmdable
	prefix string
}

func NewRedisLocker(rdb redis.Cmdable) *RedisLocker {
	return &RedisLocker{rdb: rdb, prefix: "lock:"}
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), bool) {
	full := l.prefix + key
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, full, token, ttl).Result()
	if err != nil {
		logx.Warn().Err(errx.WrapRedis(err)).Str("key", full).Msg("lock acquisition failed, proceeding unlocked")
		return func() {}, true
	}
	if !ok {
		return func() {}, false
	}

	release := func() {
		// release outlives the caller's context on purpose
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.rdb, []string{full}, token).Err(); err != nil && err != redis.Nil {
			logx.Warn().Err(errx.WrapRedis(err)).Str("key", full).Msg("lock release failed")
		}
	}
	return release, true
}

var (
	_ Locker = NoopLocker{}
	_ Locker = (*RedisLocker)(nil)
)
