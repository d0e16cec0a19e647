package sqlitecache

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/semroute/internal/domain"
	domcache "github.com/kailas-cloud/semroute/internal/domain/cache"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	r, err := Open(filepath.Join(t.TempDir(), "cache_test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func mustEntry(t *testing.T, query, response string, emb []float32, tags []string, at time.Time) domcache.Entry {
	t.Helper()
	e, err := domcache.New(query, response, emb, tags, at)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestInsertAndFindExact(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	at := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	e := mustEntry(t, "What is Python?", "A language.", []float32{1, 0.5, 0}, []string{"python", "online"}, at)
	if err := r.Insert(ctx, &e); err != nil {
		t.Fatal(err)
	}

	got, err := r.FindExact(ctx, domcache.Hash("  what is PYTHON? "))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ResponseText() != "A language." || got.Frequency() != 1 {
		t.Errorf("unexpected entry: %+v", got)
	}
	if len(got.Embedding()) != 3 || got.Embedding()[1] != 0.5 {
		t.Errorf("embedding not round-tripped: %v", got.Embedding())
	}
	if len(got.Tags()) != 2 || got.Tags()[0] != "online" {
		t.Errorf("tags not round-tripped: %v", got.Tags())
	}
	if !got.CreatedAt().Equal(at) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt(), at)
	}
}

func TestFindExact_Miss(t *testing.T) {
	r := newTestRepo(t)
	if _, err := r.FindExact(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestInsert_Duplicate(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	e := mustEntry(t, "q", "first", []float32{1}, nil, time.Now())
	if err := r.Insert(ctx, &e); err != nil {
		t.Fatal(err)
	}
	dup := mustEntry(t, "Q ", "second", []float32{1}, nil, time.Now())
	if err := r.Insert(ctx, &dup); !errors.Is(err, domain.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}

	got, _ := r.FindExact(ctx, e.QueryHash())
	if got.ResponseText() != "first" {
		t.Errorf("duplicate insert must not overwrite, got %q", got.ResponseText())
	}
}

func TestFindNearest_OrderAndLimit(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	now := time.Now()

	for _, e := range []domcache.Entry{
		mustEntry(t, "far", "a", []float32{0, 1}, nil, now),
		mustEntry(t, "near", "b", []float32{1, 0.1}, nil, now),
		mustEntry(t, "exact", "c", []float32{1, 0}, nil, now),
	} {
		if err := r.Insert(ctx, &e); err != nil {
			t.Fatal(err)
		}
	}

	got, err := r.FindNearest(ctx, []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if got[0].QueryText() != "exact" || got[1].QueryText() != "near" {
		t.Errorf("unexpected order: %s, %s", got[0].QueryText(), got[1].QueryText())
	}
}

func TestFindNearest_Empty(t *testing.T) {
	r := newTestRepo(t)
	got, err := r.FindNearest(context.Background(), []float32{1}, 20)
	if err != nil || len(got) != 0 {
		t.Errorf("expected empty result, got %v, %v", got, err)
	}
}

func TestBumpUsage(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	later := time.Date(2026, 5, 5, 5, 5, 5, 0, time.UTC)
	r.now = func() time.Time { return later }

	e := mustEntry(t, "q", "a", []float32{1}, nil, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	if err := r.Insert(ctx, &e); err != nil {
		t.Fatal(err)
	}
	if err := r.BumpUsage(ctx, e.QueryHash()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := r.FindExact(ctx, e.QueryHash())
	if got.Frequency() != 2 {
		t.Errorf("expected frequency 2, got %d", got.Frequency())
	}
	if !got.LastAccessedAt().Equal(later) {
		t.Errorf("last_accessed_at = %v, want %v", got.LastAccessedAt(), later)
	}
}

func TestBumpUsage_Missing(t *testing.T) {
	r := newTestRepo(t)
	if err := r.BumpUsage(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestBumpUsage_ConcurrentIncrementsAreNotLost(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	e := mustEntry(t, "popular question", "a", []float32{1}, nil, time.Now())
	if err := r.Insert(ctx, &e); err != nil {
		t.Fatal(err)
	}

	const n = 40
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- r.BumpUsage(ctx, e.QueryHash())
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("bump failed: %v", err)
		}
	}

	got, _ := r.FindExact(ctx, e.QueryHash())
	if got.Frequency() != 1+n {
		t.Errorf("expected frequency %d, got %d", 1+n, got.Frequency())
	}
}

func TestCountAndPrune(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, q := range []string{"oldest", "older", "newer", "newest"} {
		e := mustEntry(t, q, "a", []float32{1}, nil, base.Add(time.Duration(i)*time.Hour))
		if err := r.Insert(ctx, &e); err != nil {
			t.Fatal(err)
		}
	}

	n, err := r.Count(ctx)
	if err != nil || n != 4 {
		t.Fatalf("Count = %d, %v", n, err)
	}

	removed, err := r.Prune(ctx, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed != 2 {
		t.Errorf("expected 2 removed, got %d", removed)
	}
	if _, err := r.FindExact(ctx, domcache.Hash("oldest")); !errors.Is(err, domain.ErrNotFound) {
		t.Error("oldest entry should be pruned")
	}
	if _, err := r.FindExact(ctx, domcache.Hash("newest")); err != nil {
		t.Errorf("newest entry should survive: %v", err)
	}

	if removed, _ := r.Prune(ctx, 0); removed != 0 {
		t.Errorf("Prune(0) must be a no-op, removed %d", removed)
	}
}
