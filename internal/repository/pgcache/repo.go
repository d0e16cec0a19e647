// Package pgcache stores cache entries in PostgreSQL with the pgvector extension.
package pgcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/kailas-cloud/semroute/internal/domain"
	domcache "github.com/kailas-cloud/semroute/internal/domain/cache"
	"github.com/kailas-cloud/semroute/internal/domain/vector"
)

const columns = `query_hash, query_text, response_text, embedding::text, context_tags,
	frequency, created_at, last_accessed_at`

const (
	selectByHash = `SELECT ` + columns + ` FROM semantic_cache WHERE query_hash = $1`

	selectNearest = `SELECT ` + columns + ` FROM semantic_cache
	ORDER BY embedding <=> $1::vector LIMIT $2`

	insertEntry = `INSERT INTO semantic_cache
	(query_hash, query_text, response_text, embedding, context_tags, frequency, created_at, last_accessed_at)
	VALUES ($1, $2, $3, $4::vector, $5, $6, $7, $8)
	ON CONFLICT (query_hash) DO NOTHING`

	bumpUsage = `UPDATE semantic_cache
	SET frequency = frequency + 1, last_accessed_at = now()
	WHERE query_hash = $1`

	countEntries = `SELECT count(*) FROM semantic_cache`

	pruneOldest = `DELETE FROM semantic_cache WHERE query_hash IN (
	SELECT query_hash FROM semantic_cache ORDER BY last_accessed_at DESC OFFSET $1)`
)

// Repo implements the cache store over PostgreSQL.
type Repo struct {
	db       *sql.DB
	dim      int
	ivfLists int
}

// New creates a PostgreSQL-backed cache repository.
// dim fixes the embedding column width; ivfLists tunes the ivfflat index (0 means 100).
func New(db *sql.DB, dim, ivfLists int) *Repo {
	if ivfLists <= 0 {
		ivfLists = 100
	}
	return &Repo{db: db, dim: dim, ivfLists: ivfLists}
}

// EnsureSchema creates the extension, table and indexes if missing.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS semantic_cache (
	query_hash       TEXT PRIMARY KEY,
	query_text       TEXT NOT NULL,
	response_text    TEXT NOT NULL,
	embedding        vector(%d) NOT NULL,
	context_tags     TEXT[] NOT NULL DEFAULT '{}',
	frequency        BIGINT NOT NULL DEFAULT 1,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_accessed_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, r.dim),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS semantic_cache_embedding_idx
	ON semantic_cache USING ivfflat (embedding vector_cosine_ops) WITH (lists = %d)`, r.ivfLists),
		`CREATE INDEX IF NOT EXISTS semantic_cache_last_accessed_idx ON semantic_cache (last_accessed_at)`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return unavailable("ensure schema", err)
		}
	}
	return nil
}

// FindExact returns the entry stored under hash.
func (r *Repo) FindExact(ctx context.Context, hash string) (domcache.Entry, error) {
	e, err := scanEntry(r.db.QueryRowContext(ctx, selectByHash, hash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domcache.Entry{}, domain.ErrNotFound
		}
		return domcache.Entry{}, unavailable("find exact", err)
	}
	return e, nil
}

// FindNearest returns up to k entries ordered by ascending cosine distance.
func (r *Repo) FindNearest(ctx context.Context, embedding []float32, k int) ([]domcache.Entry, error) {
	rows, err := r.db.QueryContext(ctx, selectNearest, vector.ToLiteral(embedding), k)
	if err != nil {
		return nil, unavailable("find nearest", err)
	}
	defer rows.Close()

	var out []domcache.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, unavailable("scan nearest", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate nearest", err)
	}
	return out, nil
}

// Insert stores a new entry. An existing hash yields domain.ErrDuplicateKey.
func (r *Repo) Insert(ctx context.Context, e *domcache.Entry) error {
	res, err := r.db.ExecContext(ctx, insertEntry,
		e.QueryHash(), e.QueryText(), e.ResponseText(), vector.ToLiteral(e.Embedding()),
		pq.Array(e.Tags()), e.Frequency(), e.CreatedAt(), e.LastAccessedAt(),
	)
	if err != nil {
		return unavailable("insert", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("insert rows affected", err)
	}
	if n == 0 {
		return fmt.Errorf("insert %s: %w", e.QueryHash(), domain.ErrDuplicateKey)
	}
	return nil
}

// BumpUsage atomically increments frequency and sets last_accessed_at to now.
func (r *Repo) BumpUsage(ctx context.Context, hash string) error {
	res, err := r.db.ExecContext(ctx, bumpUsage, hash)
	if err != nil {
		return unavailable("bump usage", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("bump rows affected", err)
	}
	if n == 0 {
		return fmt.Errorf("bump usage %s: %w", hash, domain.ErrNotFound)
	}
	return nil
}

// Count returns the number of cached entries.
func (r *Repo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, countEntries).Scan(&n); err != nil {
		return 0, unavailable("count", err)
	}
	return n, nil
}

// Prune deletes all but the maxEntries most recently accessed entries.
// maxEntries <= 0 means unbounded.
func (r *Repo) Prune(ctx context.Context, maxEntries int64) (int64, error) {
	if maxEntries <= 0 {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx, pruneOldest, maxEntries)
	if err != nil {
		return 0, unavailable("prune", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, unavailable("prune rows affected", err)
	}
	return n, nil
}

// Ping checks connectivity.
func (r *Repo) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (domcache.Entry, error) {
	var (
		hash, query, response, emb string
		tags                       []string
		freq                       int64
		created, accessed          time.Time
	)
	if err := s.Scan(&hash, &query, &response, &emb, pq.Array(&tags), &freq, &created, &accessed); err != nil {
		return domcache.Entry{}, err
	}
	v, err := vector.ParseLiteral(emb)
	if err != nil {
		return domcache.Entry{}, fmt.Errorf("parse embedding: %w", err)
	}
	if tags == nil {
		tags = []string{}
	}
	return domcache.Reconstruct(hash, query, response, v, tags, freq, created.UTC(), accessed.UTC()), nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrStoreUnavailable, op, err)
}
