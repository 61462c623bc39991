// Package lock serializes work on a shared resource (an installment, a bank transaction)
// across goroutines and, with Redis, across API replicas.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/juridico/conciliacao-api/pkg/logger"
	goredislib "github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when the lock could not be taken in time
var ErrNotAcquired = errors.New("lock not acquired")

// Locker runs fn while holding the lock identified by key
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// Key builds a lock key such as "sync:parcela:42"
func Key(scope string, id uint) string {
	return fmt.Sprintf("%s:%d", scope, id)
}

// LocalLocker is an in-process keyed mutex, used when no Redis is configured
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker creates an in-process locker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*keyLock)}
}

// WithLock blocks until key is free or ctx is done
func (l *LocalLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}()

	select {
	case kl.ch <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, ctx.Err())
	}
	defer func() { <-kl.ch }()

	return fn(ctx)
}

// RedisLocker uses the Redlock algorithm through redsync
type RedisLocker struct {
	rs         *redsync.Redsync
	expiry     time.Duration
	tries      int
	retryDelay time.Duration
}

// NewRedisLocker creates a distributed locker on top of a go-redis client
func NewRedisLocker(client goredislib.UniversalClient) *RedisLocker {
	pool := goredis.NewPool(client)
	return &RedisLocker{
		rs:         redsync.New(pool),
		expiry:     30 * time.Second,
		tries:      50,
		retryDelay: 100 * time.Millisecond,
	}
}

// WithLock acquires the distributed lock, runs fn and releases the lock even on panic
func (l *RedisLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	mutex := l.rs.NewMutex(
		"lock:"+key,
		redsync.WithExpiry(l.expiry),
		redsync.WithTries(l.tries),
		redsync.WithRetryDelay(l.retryDelay),
	)

	if err := mutex.LockContext(ctx); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, err)
	}

	defer func() {
		// release with a fresh context so a cancelled request still frees the key
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if ok, err := mutex.UnlockContext(releaseCtx); !ok || err != nil {
			logger.Error("Failed to release lock", "key", key, "ok", ok, "error", err)
		}
	}()

	return fn(ctx)
}
