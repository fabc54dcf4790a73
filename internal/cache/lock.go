package cache

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// ErrLocked is returned by TryLock when the lock is already held.
var ErrLocked = errors.New("lock is already held")

// Locker hands out exclusive, expiring locks by key.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// RedisLocker shares locks between processes through Redis.
type RedisLocker struct {
	r *Redis
}

// NewRedisLocker returns a Locker backed by r.
func NewRedisLocker(r *Redis) *RedisLocker {
	return &RedisLocker{r: r}
}

// unlockScript deletes the key only if the token still matches.
const unlockScript = `
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	end
	return 0
`

// TryLock uses the Redis SET NX EX pattern. On success it returns an unlock
// function that MUST be called (typically via defer) to release the lock.
func (l *RedisLocker) TryLock(ctx context.Context, name string, ttl time.Duration) (func(), error) {
	// Random token ensures only the holder can release the lock.
	token := randomToken()

	ok, err := l.r.client.SetNX(ctx, key(name), token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("cache lock %s: %w", name, err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return func() {
		// Use a background context so unlock works even if the caller's context is cancelled.
		_ = l.r.client.Eval(context.Background(), unlockScript, []string{key(name)}, token).Err()
	}, nil
}

// LocalLocker is an in-process Locker for single-instance deployments.
type LocalLocker struct {
	held *xsync.MapOf[string, time.Time]
}

// NewLocalLocker returns an empty LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: xsync.NewMapOf[string, time.Time]()}
}

// TryLock acquires key unless another holder has it and its ttl has not passed.
func (l *LocalLocker) TryLock(_ context.Context, key string, ttl time.Duration) (func(), error) {
	now := time.Now()
	mine := now.Add(ttl)
	acquired := false
	l.held.Compute(key, func(expires time.Time, loaded bool) (time.Time, bool) {
		if loaded && now.Before(expires) {
			return expires, false
		}
		acquired = true
		return mine, false
	})
	if !acquired {
		return nil, ErrLocked
	}
	return func() {
		// Only release our own hold; an expired lock may have been taken over.
		l.held.Compute(key, func(expires time.Time, loaded bool) (time.Time, bool) {
			return expires, loaded && expires.Equal(mine)
		})
	}, nil
}

func randomToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
