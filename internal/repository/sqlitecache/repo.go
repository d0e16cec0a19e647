// Package sqlitecache stores cache entries in a local SQLite file.
// Nearest-neighbour search is a brute-force cosine scan, suited to single-node deployments.
package sqlitecache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/kailas-cloud/semroute/internal/domain"
	domcache "github.com/kailas-cloud/semroute/internal/domain/cache"
	"github.com/kailas-cloud/semroute/internal/domain/vector"
)

var migrations = []string{`
CREATE TABLE IF NOT EXISTS semantic_cache (
	query_hash TEXT PRIMARY KEY,
	query_text TEXT NOT NULL,
	response_text TEXT NOT NULL,
	embedding BLOB NOT NULL,
	context_tags TEXT NOT NULL DEFAULT '',
	frequency INTEGER NOT NULL DEFAULT 1,
	created_at INTEGER NOT NULL,
	last_accessed_at INTEGER NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS semantic_cache_last_accessed_idx ON semantic_cache (last_accessed_at)`,
}

const (
	columns = `query_hash, query_text, response_text, embedding, context_tags, frequency, created_at, last_accessed_at`

	tagSeparator = "|"
)

// Repo implements the cache store over SQLite.
type Repo struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and migrates the schema.
func Open(path string) (*Repo, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	// One writer at a time; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	for _, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate cache db: %w", err)
		}
	}
	return &Repo{db: db, now: time.Now}, nil
}

// Close releases the database.
func (r *Repo) Close() error {
	return r.db.Close()
}

// Ping checks the database is usable.
func (r *Repo) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// FindExact returns the entry stored under hash.
func (r *Repo) FindExact(ctx context.Context, hash string) (domcache.Entry, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM semantic_cache WHERE query_hash = ?`, hash)
	e, err := scanEntry(row)
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
	if k <= 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+columns+` FROM semantic_cache`)
	if err != nil {
		return nil, unavailable("find nearest", err)
	}
	defer rows.Close()

	type scored struct {
		entry domcache.Entry
		sim   float64
	}
	var all []scored
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, unavailable("scan nearest", err)
		}
		all = append(all, scored{entry: e, sim: vector.Cosine(embedding, e.Embedding())})
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate nearest", err)
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].sim > all[j].sim })
	if len(all) > k {
		all = all[:k]
	}

	out := make([]domcache.Entry, len(all))
	for i := range all {
		out[i] = all[i].entry
	}
	return out, nil
}

// Insert stores a new entry. An existing hash yields domain.ErrDuplicateKey.
func (r *Repo) Insert(ctx context.Context, e *domcache.Entry) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO semantic_cache (`+columns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(query_hash) DO NOTHING`,
		e.QueryHash(), e.QueryText(), e.ResponseText(), vector.ToBytes(e.Embedding()),
		strings.Join(e.Tags(), tagSeparator), e.Frequency(),
		e.CreatedAt().UnixMilli(), e.LastAccessedAt().UnixMilli(),
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
	res, err := r.db.ExecContext(ctx,
		`UPDATE semantic_cache SET frequency = frequency + 1, last_accessed_at = ? WHERE query_hash = ?`,
		r.now().UnixMilli(), hash,
	)
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
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM semantic_cache`).Scan(&n); err != nil {
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
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM semantic_cache WHERE query_hash IN (
			SELECT query_hash FROM semantic_cache ORDER BY last_accessed_at DESC LIMIT -1 OFFSET ?)`,
		maxEntries,
	)
	if err != nil {
		return 0, unavailable("prune", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, unavailable("prune rows affected", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (domcache.Entry, error) {
	var (
		hash, query, response, tags string
		emb                         []byte
		freq, created, accessed     int64
	)
	if err := s.Scan(&hash, &query, &response, &emb, &tags, &freq, &created, &accessed); err != nil {
		return domcache.Entry{}, err
	}
	v, err := vector.FromBytes(emb)
	if err != nil {
		return domcache.Entry{}, err
	}
	tagList := []string{}
	if tags != "" {
		tagList = strings.Split(tags, tagSeparator)
	}
	return domcache.Reconstruct(hash, query, response, v, tagList, freq,
		time.UnixMilli(created).UTC(), time.UnixMilli(accessed).UTC()), nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrStoreUnavailable, op, err)
}
