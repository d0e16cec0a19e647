package pgcache

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/semroute/internal/domain"
	domcache "github.com/kailas-cloud/semroute/internal/domain/cache"
)

var entryColumns = []string{
	"query_hash", "query_text", "response_text", "embedding", "context_tags",
	"frequency", "created_at", "last_accessed_at",
}

func newTestRepo(t *testing.T) (*Repo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db, 3, 0), mock
}

func TestEnsureSchema(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("CREATE EXTENSION IF NOT EXISTS vector")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS semantic_cache (.+)embedding\s+vector\(3\)`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`USING ivfflat \(embedding vector_cosine_ops\) WITH \(lists = 100\)`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`semantic_cache_last_accessed_idx`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema_MissingExtension(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectExec("CREATE EXTENSION").WillReturnError(errors.New(`extension "vector" is not available`))

	err := repo.EnsureSchema(context.Background())
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestFindExact_Hit(t *testing.T) {
	repo, mock := newTestRepo(t)
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT (.+) FROM semantic_cache WHERE query_hash = \$1`).
		WithArgs("abc").
		WillReturnRows(sqlmock.NewRows(entryColumns).
			AddRow("abc", "What is Python?", "A language.", "[1,0,0]", "{python,online}", 4, created, created))

	e, err := repo.FindExact(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "A language.", e.ResponseText())
	assert.Equal(t, int64(4), e.Frequency())
	assert.Equal(t, []float32{1, 0, 0}, e.Embedding())
	assert.Equal(t, []string{"python", "online"}, e.Tags())
	assert.True(t, e.CreatedAt().Equal(created))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindExact_Miss(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery(`FROM semantic_cache WHERE query_hash`).
		WithArgs("abc").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindExact(context.Background(), "abc")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFindExact_ConnectionError(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery(`FROM semantic_cache WHERE query_hash`).
		WillReturnError(sql.ErrConnDone)

	_, err := repo.FindExact(context.Background(), "abc")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestFindNearest(t *testing.T) {
	repo, mock := newTestRepo(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`ORDER BY embedding <=> \$1::vector LIMIT \$2`).
		WithArgs("[1,0,0]", 20).
		WillReturnRows(sqlmock.NewRows(entryColumns).
			AddRow("h1", "q1", "a1", "[1,0,0]", "{}", 1, now, now).
			AddRow("h2", "q2", "a2", "[0.9,0.1,0]", "{java}", 2, now, now))

	got, err := repo.FindNearest(context.Background(), []float32{1, 0, 0}, 20)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "h1", got[0].QueryHash())
	assert.Empty(t, got[0].Tags())
	assert.Equal(t, []string{"java"}, got[1].Tags())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindNearest_BadEmbedding(t *testing.T) {
	repo, mock := newTestRepo(t)
	now := time.Now()

	mock.ExpectQuery(`ORDER BY embedding`).
		WillReturnRows(sqlmock.NewRows(entryColumns).AddRow("h1", "q", "a", "not-a-vector", "{}", 1, now, now))

	_, err := repo.FindNearest(context.Background(), []float32{1}, 5)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestInsert(t *testing.T) {
	repo, mock := newTestRepo(t)
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	e, err := domcache.New("What is Python?", "A language.", []float32{1, 0, 0}, []string{"python"}, now)
	require.NoError(t, err)

	mock.ExpectExec(`INSERT INTO semantic_cache (.+) ON CONFLICT \(query_hash\) DO NOTHING`).
		WithArgs(e.QueryHash(), "What is Python?", "A language.", "[1,0,0]", sqlmock.AnyArg(), int64(1), now, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Insert(context.Background(), &e))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert_Duplicate(t *testing.T) {
	repo, mock := newTestRepo(t)
	e, err := domcache.New("q", "a", []float32{1, 0, 0}, nil, time.Now())
	require.NoError(t, err)

	mock.ExpectExec(`INSERT INTO semantic_cache`).WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.Insert(context.Background(), &e)
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)
	assert.NotErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestBumpUsage(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("SET frequency = frequency + 1, last_accessed_at = now()")).
		WithArgs("abc").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.BumpUsage(context.Background(), "abc"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBumpUsage_Missing(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectExec(`UPDATE semantic_cache`).WithArgs("abc").WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.BumpUsage(context.Background(), "abc"), domain.ErrNotFound)
}

func TestCount(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM semantic_cache")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}

func TestPrune(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectExec(`DELETE FROM semantic_cache (.+) ORDER BY last_accessed_at DESC OFFSET \$1`).
		WithArgs(int64(100)).
		WillReturnResult(sqlmock.NewResult(0, 12))

	n, err := repo.Prune(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)

	n, err = repo.Prune(context.Background(), 0)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPing(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectPing().WillReturnError(sql.ErrConnDone)

	assert.ErrorIs(t, repo.Ping(context.Background()), domain.ErrStoreUnavailable)
}
