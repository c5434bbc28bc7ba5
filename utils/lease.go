package utils

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Lease is a per-account advisory lock around a sync run, so two
// concurrent invocations cannot interleave partial updates on the same
// mailbox. Backed by Redis SETNX when Redis is configured; otherwise a
// process-local table (sufficient for single-instance deployments).
type Lease struct {
	rdb *redis.Client

	mu    sync.Mutex
	local map[string]time.Time
}

func NewLease(rdb *redis.Client) *Lease {
	return &Lease{
		rdb:   rdb,
		local: make(map[string]time.Time),
	}
}

// Acquire takes the lease for key, returning false if another holder
// has it. The TTL guards against leases leaking when a process dies.
func (l *Lease) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if l.rdb != nil {
		return l.rdb.SetNX(ctx, key, "1", ttl).Result()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if expiry, held := l.local[key]; held && time.Now().Before(expiry) {
		return false, nil
	}
	l.local[key] = time.Now().Add(ttl)
	return true, nil
}

func (l *Lease) Release(ctx context.Context, key string) error {
	if l.rdb != nil {
		return l.rdb.Del(ctx, key).Err()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.local, key)
	return nil
}
