package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("lock not acquired")
	ErrLockNotOwned    = errors.New("lock not owned")
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lock re-taken by someone else is never released by us.
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

// DistributedLock is a held Redis lock.
type DistributedLock struct {
	client *redis.Client
	key    string
	value  string
	ttl    time.Duration
}

// LockManager hands out SET NX locks with a random owner token.
type LockManager struct {
	client     *redis.Client
	ttl        time.Duration
	retries    int
	retryDelay time.Duration
}

func NewLockManager(client *redis.Client, ttl time.Duration, retries int, retryDelay time.Duration) *LockManager {
	if retries < 1 {
		retries = 1
	}
	return &LockManager{client: client, ttl: ttl, retries: retries, retryDelay: retryDelay}
}

func (m *LockManager) AcquireLock(ctx context.Context, key string, ttl time.Duration) (*DistributedLock, error) {
	lockKey := fmt.Sprintf("lock:%s", key)
	lockValue := uuid.NewString()

	ok, err := m.client.SetNX(ctx, lockKey, lockValue, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", lockKey, err)
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}
	return &DistributedLock{client: m.client, key: lockKey, value: lockValue, ttl: ttl}, nil
}

// AcquireLockWithRetry makes up to maxRetries attempts, retryDelay apart.
func (m *LockManager) AcquireLockWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (*DistributedLock, error) {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		// Try once; success ends the loop immediately.
		lock, err := m.AcquireLock(ctx, key, ttl)
		if err == nil {
			return lock, nil
		}
		lastErr = err
		// Redis errors are not contention, so there is no point retrying.
		if !errors.Is(err, ErrLockNotAcquired) {
			return nil, err
		}
		// No wait after the final attempt: the caller gets the error
		// straight away.
		if i == maxRetries-1 {
			break
		}
		// Wait for the next attempt unless the request is abandoned first.
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
	return nil, lastErr
}

// Acquire takes the lock for key with the manager's TTL and retry policy
// and returns a release func. Release errors are dropped: the TTL bounds
// how long a lost release can block others.
func (m *LockManager) Acquire(ctx context.Context, key string) (func(), error) {
	lock, err := m.AcquireLockWithRetry(ctx, key, m.ttl, m.retries, m.retryDelay)
	if err != nil {
		return nil, err
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		_ = lock.Release(ctx)
	}, nil
}

func (l *DistributedLock) Release(ctx context.Context) error {
	result, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.value).Int()
	if err != nil {
		return fmt.Errorf("release lock %s: %w", l.key, err)
	}
	if result == 0 {
		return ErrLockNotOwned
	}
	return nil
}
