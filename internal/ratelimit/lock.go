package ratelimit

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	redis "github.com/redis/go-redis/v9"
)

var (
	ErrLockNotConfigured = errors.New("lock_not_configured")
	ErrLockInvalid       = errors.New("lock_invalid")
)

const lockNamespace = "colegio:lock:"

// Deletes the key only while it still holds the caller's token.
const compareAndDelete = `
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
  return 0
end
return redis.call("DEL", KEYS[1])
`

// Locker hands out short redis leases for preference polls and scheduler
// jobs. A lease that outlives its holder simply expires.
type Locker struct {
	client *redis.Client
	del    *redis.Script
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{client: client, del: redis.NewScript(compareAndDelete)}
}

// TryLock returns the lease token and whether it was granted. A lease held
// elsewhere is not an error.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, ErrLockNotConfigured
	}
	key = strings.TrimSpace(key)
	if key == "" || ttl <= 0 {
		return "", false, ErrLockInvalid
	}

	token := ulid.Make().String()
	granted, err := l.client.SetNX(ctx, leaseKey(key), token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !granted {
		return "", false, nil
	}
	return token, true, nil
}

// Release frees the lease if token still owns it.
func (l *Locker) Release(ctx context.Context, key, token string) error {
	if l == nil || l.client == nil || token == "" {
		return nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	return l.del.Run(ctx, l.client, []string{leaseKey(key)}, token).Err()
}

func leaseKey(key string) string {
	if strings.HasPrefix(key, lockNamespace) {
		return key
	}
	return lockNamespace + key
}
