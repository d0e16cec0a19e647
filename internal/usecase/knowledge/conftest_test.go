package knowledge

import (
	"context"

	"github.com/kailas-cloud/semroute/internal/domain"
	domknowledge "github.com/kailas-cloud/semroute/internal/domain/knowledge"
	kbrepo "github.com/kailas-cloud/semroute/internal/repository/knowledge"
)

type mockEmbedder struct {
	err        error
	calls      int
	batchSizes []int
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.calls++
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: []float32{float32(len(text))}, TotalTokens: 1}, nil
}

func (m *mockEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	m.batchSizes = append(m.batchSizes, len(texts))
	if m.err != nil {
		return domain.BatchEmbeddingResult{}, m.err
	}
	out := domain.BatchEmbeddingResult{Embeddings: make([][]float32, len(texts)), TotalTokens: len(texts)}
	for i, t := range texts {
		out.Embeddings[i] = []float32{float32(len(t))}
	}
	return out, nil
}

type mockSearcher struct {
	got        []float32
	k          int
	candidates []domknowledge.Candidate
	err        error
}

func (m *mockSearcher) Search(_ context.Context, embedding []float32, k int) ([]domknowledge.Candidate, error) {
	m.got, m.k = embedding, k
	return m.candidates, m.err
}

type mockWriter struct {
	chunks    []kbrepo.Chunk
	resets    int
	schemas   int
	upsertErr error
}

func (m *mockWriter) EnsureSchema(context.Context) error {
	m.schemas++
	return nil
}

func (m *mockWriter) Upsert(_ context.Context, chunks []kbrepo.Chunk) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.chunks = append(m.chunks, chunks...)
	return nil
}

func (m *mockWriter) Reset(context.Context) error {
	m.resets++
	return nil
}
