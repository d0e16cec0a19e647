// Package rediscache stores cache entries as Redis hashes indexed by the query engine.
package rediscache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/semroute/internal/db"
	"github.com/kailas-cloud/semroute/internal/domain"
	domcache "github.com/kailas-cloud/semroute/internal/domain/cache"
)

// insertScript writes the hash only if the key is absent. Returns 1 on insert, 0 on conflict.
const insertScript = `if redis.call('EXISTS', KEYS[1]) == 1 then return 0 end
redis.call('HSET', KEYS[1], unpack(ARGV))
return 1`

// bumpScript increments frequency and refreshes last_accessed_at. Returns 0 if the key is absent.
const bumpScript = `if redis.call('EXISTS', KEYS[1]) == 0 then return 0 end
redis.call('HINCRBY', KEYS[1], 'frequency', 1)
redis.call('HSET', KEYS[1], 'last_accessed_at', ARGV[1])
return 1`

// store is the consumer interface for cache entries.
type store interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, keys ...string) error
	Eval(ctx context.Context, script string, keys []string, args ...string) (int64, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchList(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index, query string) (int, error)
}

// Config configures the repository.
type Config struct {
	KeyPrefix string // e.g. "semroute:"
	VectorDim int
	HNSW      HNSWConfig
}

// Repo implements the cache store over Redis.
type Repo struct {
	store  store
	prefix string
	dim    int
	hnsw   HNSWConfig
	now    func() time.Time
}

// New creates a Redis-backed cache repository.
func New(s store, cfg Config) *Repo {
	return &Repo{store: s, prefix: cfg.KeyPrefix, dim: cfg.VectorDim, hnsw: cfg.HNSW, now: time.Now}
}

// EnsureSchema creates the vector index if it does not exist yet.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	def, err := buildIndex(r.prefix, r.dim, r.hnsw)
	if err != nil {
		return fmt.Errorf("build cache index: %w", err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return unavailable("create index", err)
	}
	return nil
}

// FindExact returns the entry stored under hash.
func (r *Repo) FindExact(ctx context.Context, hash string) (domcache.Entry, error) {
	m, err := r.store.HGetAll(ctx, r.key(hash))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domcache.Entry{}, domain.ErrNotFound
		}
		return domcache.Entry{}, unavailable("find exact", err)
	}
	e, err := fromHash(hash, m)
	if err != nil {
		return domcache.Entry{}, unavailable("decode entry "+hash, err)
	}
	return e, nil
}

// FindNearest returns up to k entries ordered by ascending cosine distance.
func (r *Repo) FindNearest(ctx context.Context, embedding []float32, k int) ([]domcache.Entry, error) {
	res, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    indexName(r.prefix),
		VectorField:  fieldVector,
		Vector:       embedding,
		K:            k,
		ReturnFields: entryFields,
	})
	if err != nil {
		return nil, unavailable("find nearest", err)
	}

	out := make([]domcache.Entry, 0, len(res.Entries))
	for _, hit := range res.Entries {
		hash := strings.TrimPrefix(hit.Key, entryPrefix(r.prefix))
		e, err := fromHash(hash, hit.Fields)
		if err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Insert stores a new entry. An existing hash yields domain.ErrDuplicateKey.
func (r *Repo) Insert(ctx context.Context, e *domcache.Entry) error {
	n, err := r.store.Eval(ctx, insertScript, []string{r.key(e.QueryHash())}, toArgs(e)...)
	if err != nil {
		return unavailable("insert", err)
	}
	if n == 0 {
		return fmt.Errorf("insert %s: %w", e.QueryHash(), domain.ErrDuplicateKey)
	}
	return nil
}

// BumpUsage atomically increments frequency and sets last_accessed_at to now.
func (r *Repo) BumpUsage(ctx context.Context, hash string) error {
	now := strconv.FormatInt(r.now().UnixMilli(), 10)
	n, err := r.store.Eval(ctx, bumpScript, []string{r.key(hash)}, now)
	if err != nil {
		return unavailable("bump usage", err)
	}
	if n == 0 {
		return fmt.Errorf("bump usage %s: %w", hash, domain.ErrNotFound)
	}
	return nil
}

// Count returns the number of cached entries.
func (r *Repo) Count(ctx context.Context) (int64, error) {
	n, err := r.store.SearchCount(ctx, indexName(r.prefix), "*")
	if err != nil {
		return 0, unavailable("count", err)
	}
	return int64(n), nil
}

// Prune deletes the least recently accessed entries until at most maxEntries remain.
// maxEntries <= 0 means unbounded. Returns the number of deleted entries.
func (r *Repo) Prune(ctx context.Context, maxEntries int64) (int64, error) {
	if maxEntries <= 0 {
		return 0, nil
	}
	total, err := r.Count(ctx)
	if err != nil {
		return 0, err
	}
	excess := total - maxEntries
	if excess <= 0 {
		return 0, nil
	}

	res, err := r.store.SearchList(ctx, &db.ListQuery{
		IndexName:    indexName(r.prefix),
		Query:        "*",
		SortBy:       fieldLastAccessed,
		Limit:        int(excess),
		ReturnFields: []string{fieldLastAccessed},
	})
	if err != nil {
		return 0, unavailable("list oldest", err)
	}

	keys := make([]string, 0, len(res.Entries))
	for _, hit := range res.Entries {
		keys = append(keys, hit.Key)
	}
	if err := r.store.Del(ctx, keys...); err != nil {
		return 0, unavailable("delete oldest", err)
	}
	return int64(len(keys)), nil
}

func (r *Repo) key(hash string) string {
	return entryPrefix(r.prefix) + hash
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrStoreUnavailable, op, err)
}
