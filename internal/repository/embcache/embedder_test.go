package embcache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/semroute/internal/domain"
	"github.com/kailas-cloud/semroute/internal/domain/vector"
)

func TestEmbed_MissThenHit(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}, TotalTokens: 10}}
	ce, ms := newTestCachedEmbedder(t, inner)
	ctx := context.Background()

	first, err := ce.Embed(ctx, "python course")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.TotalTokens != 10 {
		t.Errorf("expected provider tokens on miss, got %d", first.TotalTokens)
	}
	if len(ms.data) != 1 {
		t.Fatalf("expected one cached vector, got %d", len(ms.data))
	}
	for k, ttl := range ms.ttls {
		if !strings.HasPrefix(k, "semroute:emb:text-embedding-3-large:") {
			t.Errorf("unexpected key %s", k)
		}
		if ttl != 30*24*time.Hour {
			t.Errorf("unexpected ttl %v", ttl)
		}
	}

	second, err := ce.Embed(ctx, "python course")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("expected provider to be called once, got %d", inner.calls)
	}
	if second.TotalTokens != 0 || second.Embedding[2] != 0.3 {
		t.Errorf("unexpected cached result: %+v", second)
	}
}

func TestEmbed_ProviderError(t *testing.T) {
	inner := &mockEmbedder{err: domain.ErrEmbeddingProviderError}
	ce, ms := newTestCachedEmbedder(t, inner)

	_, err := ce.Embed(context.Background(), "x")
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Errorf("expected provider error, got %v", err)
	}
	if len(ms.data) != 0 {
		t.Error("failed embeddings must not be cached")
	}
}

func TestEmbed_StoreFailuresDegradeToProvider(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	ce, ms := newTestCachedEmbedder(t, inner)
	ms.getFn = func(context.Context, string) ([]byte, error) { return nil, errors.New("redis down") }
	ms.setFn = func(context.Context, string, []byte, time.Duration) error { return errors.New("redis down") }

	res, err := ce.Embed(context.Background(), "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Embedding) != 1 || inner.calls != 1 {
		t.Errorf("expected provider result, got %+v (calls=%d)", res, inner.calls)
	}
}

func TestEmbed_CorruptEntryIsIgnored(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	ce, ms := newTestCachedEmbedder(t, inner)
	ms.getFn = func(context.Context, string) ([]byte, error) { return []byte{1, 2, 3}, nil }

	if _, err := ce.Embed(context.Background(), "x"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("expected provider call, got %d", inner.calls)
	}
}

func TestEmbed_ModelsDoNotShareEntries(t *testing.T) {
	ms := &memKVStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
	a := New(&mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}, ms, Config{Model: "a"}, nil, zap.NewNop())
	bInner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{2}}}
	b := New(bInner, ms, Config{Model: "b"}, nil, zap.NewNop())

	_, _ = a.Embed(context.Background(), "same text")
	res, _ := b.Embed(context.Background(), "same text")
	if res.Embedding[0] != 2 || bInner.calls != 1 {
		t.Errorf("model b must not read model a's vector, got %v", res.Embedding)
	}
}

func TestBatchEmbed_OnlyMissesReachProvider(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.5}, TotalTokens: 4}}
	ce, ms := newTestCachedEmbedder(t, inner)
	ms.data[ce.key("cached")] = vector.ToBytes([]float32{9})

	res, err := ce.BatchEmbed(context.Background(), []string{"a", "cached", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.batchCalls != 1 || len(inner.batchTexts) != 2 {
		t.Fatalf("expected one batch call with 2 texts, got %d calls %v", inner.batchCalls, inner.batchTexts)
	}
	if res.Embeddings[1][0] != 9 || res.Embeddings[0][0] != 0.5 || res.Embeddings[2][0] != 0.5 {
		t.Errorf("unexpected embeddings %v", res.Embeddings)
	}
	if res.TotalTokens != 8 {
		t.Errorf("expected 8 tokens, got %d", res.TotalTokens)
	}
	if len(ms.data) != 3 {
		t.Errorf("misses should be cached, store has %d entries", len(ms.data))
	}
}

func TestBatchEmbed_AllCached(t *testing.T) {
	inner := &mockEmbedder{}
	ce, ms := newTestCachedEmbedder(t, inner)
	ms.data[ce.key("a")] = vector.ToBytes([]float32{1})

	if _, err := ce.BatchEmbed(context.Background(), []string{"a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.batchCalls != 0 {
		t.Errorf("provider must not be called, got %d", inner.batchCalls)
	}
}

func TestCacheCounter(t *testing.T) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_emb_cache_total"}, []string{"result"})
	ms := &memKVStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
	ce := New(&mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}, ms, Config{}, counter, zap.NewNop())

	_, _ = ce.Embed(context.Background(), "x")
	_, _ = ce.Embed(context.Background(), "x")
	_, _ = ce.Embed(context.Background(), "x")

	if got := testutil.ToFloat64(counter.WithLabelValues("miss")); got != 1 {
		t.Errorf("miss = %v, want 1", got)
	}
	if got := testutil.ToFloat64(counter.WithLabelValues("hit")); got != 2 {
		t.Errorf("hit = %v, want 2", got)
	}
}
