package security

import (
	"context"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/colegio/internal/clock"
)

// NonceStore remembers nonces for the length of the timestamp skew window.
type NonceStore interface {
	Seen(ctx context.Context, nonce string) (bool, error)
	// Mark records nonce unless it is already present. It reports false when
	// another request recorded it first.
	Mark(ctx context.Context, nonce string, ttl time.Duration) (bool, error)
}

// MemoryNonceStore is a process-local NonceStore. Replays across instances
// are not detected; configure redis for multi-instance deployments.
type MemoryNonceStore struct {
	mu      sync.Mutex
	clock   clock.Clock
	entries map[string]time.Time
}

func NewMemoryNonceStore(clk clock.Clock) *MemoryNonceStore {
	return &MemoryNonceStore{clock: clk, entries: map[string]time.Time{}}
}

func (s *MemoryNonceStore) Seen(_ context.Context, nonce string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liveLocked(nonce), nil
}

func (s *MemoryNonceStore) Mark(_ context.Context, nonce string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.liveLocked(nonce) {
		return false, nil
	}
	s.entries[nonce] = s.clock.Now().Add(ttl)
	return true, nil
}

func (s *MemoryNonceStore) liveLocked(nonce string) bool {
	expiry, ok := s.entries[nonce]
	if !ok {
		return false
	}
	if s.clock.Now().Before(expiry) {
		return true
	}
	delete(s.entries, nonce)
	return false
}

// Sweep drops expired nonces and returns how many were removed.
func (s *MemoryNonceStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	removed := 0
	for nonce, expiry := range s.entries {
		if !now.Before(expiry) {
			delete(s.entries, nonce)
			removed++
		}
	}
	return removed
}

func (s *MemoryNonceStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// RunSweeper sweeps every interval until ctx is done.
func (s *MemoryNonceStore) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

const redisNoncePrefix = "colegio:webhook:nonce:"

// RedisNonceStore shares nonces between instances with SET NX.
type RedisNonceStore struct {
	client *redis.Client
	prefix string
}

func NewRedisNonceStore(client *redis.Client) *RedisNonceStore {
	return &RedisNonceStore{client: client, prefix: redisNoncePrefix}
}

func (s *RedisNonceStore) Seen(ctx context.Context, nonce string) (bool, error) {
	n, err := s.client.Exists(ctx, s.prefix+nonce).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisNonceStore) Mark(ctx context.Context, nonce string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, s.prefix+nonce, 1, ttl).Result()
}
