package shared

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// InFlightKey builds redis keys guarding one action per session.
func InFlightKey(sessionID, action string) string {
	return fmt.Sprintf("backoffice:inflight:%s:%s", sessionID, action)
}

// Locker hands out short-lived SETNX locks.
type Locker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLocker builds a Locker whose locks expire after ttl even if never released.
func NewLocker(client *redis.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Locker{client: client, ttl: ttl}
}

// Acquire takes the lock for key. It returns ErrInFlight when another request
// holds it. The returned release func is safe to call more than once.
func (l *Locker) Acquire(ctx context.Context, key string) (func(), error) {
	ok, err := l.client.SetNX(ctx, key, "1", l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrInFlight
	}
	released := false
	return func() {
		if released {
			return
		}
		released = true
		_ = l.client.Del(context.WithoutCancel(ctx), key).Err()
	}, nil
}
