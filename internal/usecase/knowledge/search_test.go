package knowledge

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/semroute/internal/domain"
	domknowledge "github.com/kailas-cloud/semroute/internal/domain/knowledge"
)

func TestSearch_ReusesEmbedding(t *testing.T) {
	emb := &mockEmbedder{}
	s := &mockSearcher{candidates: []domknowledge.Candidate{domknowledge.NewCandidate("a", "x", 0.8)}}

	got, err := NewSearchService(emb, s, 3).Search(context.Background(), "q", []float32{0.5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if emb.calls != 0 {
		t.Errorf("embedder must not be called when an embedding is supplied")
	}
	if s.k != 3 || s.got[0] != 0.5 || len(got) != 1 {
		t.Errorf("unexpected search: k=%d got=%v candidates=%d", s.k, s.got, len(got))
	}
}

func TestSearch_EmbedsWhenMissing(t *testing.T) {
	emb := &mockEmbedder{}
	s := &mockSearcher{}

	if _, err := NewSearchService(emb, s, 0).Search(context.Background(), "four", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if emb.calls != 1 || s.got[0] != 4 || s.k != DefaultTopK {
		t.Errorf("calls=%d got=%v k=%d", emb.calls, s.got, s.k)
	}
}

func TestSearch_Errors(t *testing.T) {
	_, err := NewSearchService(&mockEmbedder{err: domain.ErrEmbeddingProviderError}, &mockSearcher{}, 1).
		Search(context.Background(), "q", nil)
	if !errors.Is(err, domain.ErrKnowledgeSource) || !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Errorf("expected wrapped embedding error, got %v", err)
	}

	_, err = NewSearchService(&mockEmbedder{}, &mockSearcher{err: domain.ErrKnowledgeSource}, 1).
		Search(context.Background(), "q", []float32{1})
	if !errors.Is(err, domain.ErrKnowledgeSource) {
		t.Errorf("expected knowledge error, got %v", err)
	}
}
