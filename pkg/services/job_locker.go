package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// JobLocker guards a questionnaire against concurrent generation runs,
// including runs started by other service instances.
type JobLocker interface {
	// Acquire takes the lock for key; false means someone else holds it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Refresh extends a lock this locker holds.
	Refresh(ctx context.Context, key string, ttl time.Duration) error

	// Release drops a lock this locker holds. Releasing a lock held by
	// someone else is a no-op.
	Release(ctx context.Context, key string) error
}

const jobLockPrefix = "questionnaire:generation:"

// GenerationLockKey returns the lock key for a questionnaire.
func GenerationLockKey(questionnaireID uuid.UUID) string {
	return jobLockPrefix + questionnaireID.String()
}

// ============================================================================
// Redis
// ============================================================================

var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisJobLocker stores locks in Redis with SET NX and a TTL. Each instance
// writes its own token so it never releases another instance's lock.
type RedisJobLocker struct {
	client *redis.Client
	token  string
}

// NewRedisJobLocker creates a RedisJobLocker with a fresh instance token.
func NewRedisJobLocker(client *redis.Client) *RedisJobLocker {
	return &RedisJobLocker{client: client, token: uuid.NewString()}
}

var _ JobLocker = (*RedisJobLocker)(nil)

func (l *RedisJobLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, key, l.token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire job lock: %w", err)
	}
	return ok, nil
}

func (l *RedisJobLocker) Refresh(ctx context.Context, key string, ttl time.Duration) error {
	if err := refreshScript.Run(ctx, l.client, []string{key}, l.token, ttl.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("refresh job lock: %w", err)
	}
	return nil
}

func (l *RedisJobLocker) Release(ctx context.Context, key string) error {
	if err := releaseScript.Run(ctx, l.client, []string{key}, l.token).Err(); err != nil {
		return fmt.Errorf("release job lock: %w", err)
	}
	return nil
}

// ============================================================================
// In-process
// ============================================================================

// LocalJobLocker is the single-instance JobLocker used when Redis is not configured.
type LocalJobLocker struct {
	mu    sync.Mutex
	locks map[string]time.Time // key -> expiry
	now   func() time.Time
}

// NewLocalJobLocker creates an empty LocalJobLocker.
func NewLocalJobLocker() *LocalJobLocker {
	return &LocalJobLocker{locks: make(map[string]time.Time), now: time.Now}
}

var _ JobLocker = (*LocalJobLocker)(nil)

func (l *LocalJobLocker) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if expiry, held := l.locks[key]; held && l.now().Before(expiry) {
		return false, nil
	}
	l.locks[key] = l.now().Add(ttl)
	return true, nil
}

func (l *LocalJobLocker) Refresh(_ context.Context, key string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, held := l.locks[key]; held {
		l.locks[key] = l.now().Add(ttl)
	}
	return nil
}

func (l *LocalJobLocker) Release(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.locks, key)
	return nil
}
