package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jcmexdev/storefront-fulfillment/internal/pkg/cache"
)

// Locker hands out a lease per job name. A job only runs while it holds the
// lease; ok is false when someone else has it.
type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (release func(), ok bool, err error)
}

// LocalLocker leases jobs within one process.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]bool)}
}

func (l *LocalLocker) TryLock(_ context.Context, name string, _ time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held[name] {
		return nil, false, nil
	}
	l.held[name] = true
	return func() {
		l.mu.Lock()
		delete(l.held, name)
		l.mu.Unlock()
	}, true, nil
}

// RedisLocker leases jobs across every instance sharing the Redis server. The
// lease expires after ttl so a crashed holder cannot block the job forever.
type RedisLocker struct {
	cache cache.Cache
}

func NewRedisLocker(c cache.Cache) *RedisLocker {
	return &RedisLocker{cache: c}
}

func (l *RedisLocker) TryLock(ctx context.Context, name string, ttl time.Duration) (func(), bool, error) {
	key := l.cache.GenerateKey("lease", name)
	token := uuid.NewString()

	ok, err := l.cache.SetNX(ctx, key, token, ttl)
	if err != nil {
		return nil, false, fmt.Errorf("scheduler: lease %s: %w", name, err)
	}
	if !ok {
		return nil, false, nil
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := l.cache.Release(ctx, key, token); err != nil {
			slog.WarnContext(ctx, "lease release failed", "job", name, "error", err)
		}
	}, true, nil
}
