// Package budget persists token budget counters in Redis.
package budget

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/semroute/internal/db"
)

// incrScript increments a counter and sets its expiry on first write only.
const incrScript = `
local v = redis.call('INCRBY', KEYS[1], ARGV[1])
if redis.call('TTL', KEYS[1]) < 0 then
  redis.call('EXPIRE', KEYS[1], ARGV[2])
end
return v`

// store is the consumer interface for budget counters.
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Eval(ctx context.Context, script string, keys []string, args ...string) (int64, error)
}

// Store implements budget.Store on top of Redis.
type Store struct {
	store store
}

// New creates a budget store.
func New(s store) *Store {
	return &Store{store: s}
}

// IncrBy atomically adds val to key and returns the new total. ttl applies only when the key has none.
func (s *Store) IncrBy(ctx context.Context, key string, val int64, ttl time.Duration) (int64, error) {
	secs := max(int64(ttl/time.Second), 1)
	n, err := s.store.Eval(ctx, incrScript, []string{key},
		strconv.FormatInt(val, 10), strconv.FormatInt(secs, 10))
	if err != nil {
		return 0, fmt.Errorf("budget incr %s: %w", key, err)
	}
	return n, nil
}

// Get returns the counter value, 0 when the key does not exist.
func (s *Store) Get(ctx context.Context, key string) (int64, error) {
	data, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("budget get %s: %w", key, err)
	}
	val, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("budget get %s: parse: %w", key, err)
	}
	return val, nil
}
