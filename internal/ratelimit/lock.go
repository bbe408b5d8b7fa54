package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned by WithLock when another holder owns the key.
var ErrLockHeld = errors.New("lock_held")

const unlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// Locker is a single-key redis lease used to keep periodic jobs to one
// replica at a time.
type Locker struct {
	client *redis.Client
	unlock *redis.Script
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{client: client, unlock: redis.NewScript(unlockScript)}
}

func (l *Locker) acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if key == "" {
		return "", false, errors.New("lock key is empty")
	}
	if ttl <= 0 {
		return "", false, errors.New("lock ttl must be positive")
	}
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (l *Locker) release(ctx context.Context, key, token string) error {
	if token == "" {
		return nil
	}
	return l.unlock.Run(ctx, l.client, []string{key}, token).Err()
}

// WithLock runs fn while holding key. A nil Locker runs fn unguarded.
func (l *Locker) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if l == nil || l.client == nil {
		return fn(ctx)
	}
	token, ok, err := l.acquire(ctx, key, ttl)
	if err != nil {
		return err
	}
	if !ok {
		return ErrLockHeld
	}
	defer func() {
		_ = l.release(context.WithoutCancel(ctx), key, token)
	}()
	return fn(ctx)
}
