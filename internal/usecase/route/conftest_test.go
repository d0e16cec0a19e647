package route

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/semroute/internal/domain"
	domcache "github.com/kailas-cloud/semroute/internal/domain/cache"
	domknowledge "github.com/kailas-cloud/semroute/internal/domain/knowledge"
	"github.com/kailas-cloud/semroute/internal/domain/tag"
	"github.com/kailas-cloud/semroute/internal/usecase/fallback"
	"github.com/kailas-cloud/semroute/internal/usecase/lookup"
	"github.com/kailas-cloud/semroute/internal/usecase/scope"
	"github.com/kailas-cloud/semroute/internal/usecase/usage"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// --- memStore: in-memory cache store ---

type memStore struct {
	mu      sync.Mutex
	entries map[string]domcache.Entry

	findErr   error
	insertErr error
	inserts   int
	bumps     int
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[string]domcache.Entry)}
}

func (m *memStore) FindExact(_ context.Context, hash string) (domcache.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return domcache.Entry{}, m.findErr
	}
	e, ok := m.entries[hash]
	if !ok {
		return domcache.Entry{}, domain.ErrNotFound
	}
	return e, nil
}

func (m *memStore) FindNearest(_ context.Context, _ []float32, k int) ([]domcache.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	out := make([]domcache.Entry, 0, len(m.entries))
	for _, e := range m.entries {
		if len(out) == k {
			break
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *memStore) BumpUsage(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bumps++
	e, ok := m.entries[hash]
	if !ok {
		return domain.ErrNotFound
	}
	m.entries[hash] = domcache.Reconstruct(e.QueryHash(), e.QueryText(), e.ResponseText(), e.Embedding(),
		e.Tags(), e.Frequency()+1, e.CreatedAt(), fixedNow)
	return nil
}

func (m *memStore) Insert(ctx context.Context, e *domcache.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	if m.insertErr != nil {
		return m.insertErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := m.entries[e.QueryHash()]; ok {
		return domain.ErrDuplicateKey
	}
	m.entries[e.QueryHash()] = *e
	return nil
}

func (m *memStore) get(query string) (domcache.Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[domcache.Hash(query)]
	return e, ok
}

func (m *memStore) seed(query, response string, emb []float32, tags []string) {
	e, _ := domcache.New(query, response, emb, tags, fixedNow)
	m.mu.Lock()
	m.entries[e.QueryHash()] = e
	m.mu.Unlock()
}

// --- mapEmbedder: fixed vectors per text ---

type mapEmbedder struct {
	vectors map[string][]float32
	def     []float32
	err     error
}

func (m *mapEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	if v, ok := m.vectors[text]; ok {
		return domain.EmbeddingResult{Embedding: v}, nil
	}
	return domain.EmbeddingResult{Embedding: m.def}, nil
}

// --- knowledge and generator mocks ---

type mockKnowledge struct {
	candidates []domknowledge.Candidate
	err        error
	block      bool
	calls      int
	gotEmb     []float32
}

func (m *mockKnowledge) Search(ctx context.Context, _ string, emb []float32) ([]domknowledge.Candidate, error) {
	m.calls++
	m.gotEmb = emb
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.candidates, m.err
}

type mockGenerator struct {
	text        string
	err         error
	calls       int
	gotPassages []string
}

func (m *mockGenerator) Generate(_ context.Context, _ string, passages []string) (string, int, error) {
	m.calls++
	m.gotPassages = passages
	return m.text, 10, m.err
}

// --- harness ---

type harness struct {
	store     *memStore
	embedder  *mapEmbedder
	knowledge *mockKnowledge
	generator *mockGenerator
	fallback  *fallback.Provider
	stats     *usage.Service
	svc       *Service
}

func candidate(content string, score float64) domknowledge.Candidate {
	return domknowledge.NewCandidate("", content, score)
}

func newHarness(cfg Config, withScope bool) *harness {
	h := &harness{
		store:     newMemStore(),
		embedder:  &mapEmbedder{def: []float32{1, 0, 0}},
		knowledge: &mockKnowledge{candidates: []domknowledge.Candidate{candidate("Python course lasts 6 weeks.", 0.9)}},
		generator: &mockGenerator{text: "The Python course lasts six weeks."},
		fallback:  fallback.New("Lab of Future"),
		stats:     usage.New(nil, zap.NewNop()),
	}
	lk := lookup.New(h.store, h.embedder, tag.New(nil), lookup.Config{}, zap.NewNop())

	deps := Deps{
		Lookup:    lk,
		Writer:    h.store,
		Knowledge: h.knowledge,
		Generator: h.generator,
		Fallback:  h.fallback,
		Recorder:  h.stats,
	}
	if withScope {
		deps.Scope = scope.New(scope.Config{Enabled: true, DefaultAllow: true})
	}
	h.svc = New(deps, cfg, zap.NewNop())
	h.svc.now = func() time.Time { return fixedNow }
	return h
}
