package domain

import (
	"context"
	"fmt"
)

// Embedder turns text into a fixed-dimension vector.
// Implementations fail with an error wrapping ErrEmbeddingProviderError and never retry.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// BatchEmbedder vectorizes multiple texts in a single provider call.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// HealthChecker verifies provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries the vector and token usage through the decorator chain.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// BatchEmbeddingResult carries one vector per input text and aggregate token usage.
type BatchEmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}

// EmbedAll uses the native batch endpoint when e has one and embeds texts one by one otherwise.
func EmbedAll(ctx context.Context, e Embedder, texts []string) (BatchEmbeddingResult, error) {
	if be, ok := e.(BatchEmbedder); ok {
		return be.BatchEmbed(ctx, texts)
	}

	out := BatchEmbeddingResult{Embeddings: make([][]float32, len(texts))}
	for i, text := range texts {
		res, err := e.Embed(ctx, text)
		if err != nil {
			return BatchEmbeddingResult{}, fmt.Errorf("embed [%d]: %w", i, err)
		}
		out.Embeddings[i] = res.Embedding
		out.PromptTokens += res.PromptTokens
		out.TotalTokens += res.TotalTokens
	}
	return out, nil
}

// InstructionEmbedder prepends a retrieval instruction to every text before embedding.
// Used for query-side embeddings of instruction-tuned models.
type InstructionEmbedder struct {
	inner       Embedder
	instruction string
}

// NewInstructionEmbedder wraps inner. An empty instruction is a pass-through.
func NewInstructionEmbedder(inner Embedder, instruction string) *InstructionEmbedder {
	return &InstructionEmbedder{inner: inner, instruction: instruction}
}

// Embed prepends the instruction and delegates.
func (e *InstructionEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	res, err := e.inner.Embed(ctx, e.instruction+text)
	if err != nil {
		return EmbeddingResult{}, fmt.Errorf("instruction embed: %w", err)
	}
	return res, nil
}

// DimensionGuard rejects vectors whose length differs from the store's fixed dimension.
type DimensionGuard struct {
	inner Embedder
	dim   int
}

// NewDimensionGuard wraps inner. dim <= 0 disables the check.
func NewDimensionGuard(inner Embedder, dim int) *DimensionGuard {
	return &DimensionGuard{inner: inner, dim: dim}
}

// Embed delegates and verifies the vector length.
func (g *DimensionGuard) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	res, err := g.inner.Embed(ctx, text)
	if err != nil {
		return EmbeddingResult{}, err
	}
	if g.dim > 0 && len(res.Embedding) != g.dim {
		return EmbeddingResult{}, fmt.Errorf("%w: %w: got %d, want %d",
			ErrEmbeddingProviderError, ErrVectorDimMismatch, len(res.Embedding), g.dim)
	}
	return res, nil
}

// BatchEmbed delegates to the inner embedder and verifies every vector.
func (g *DimensionGuard) BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error) {
	res, err := EmbedAll(ctx, g.inner, texts)
	if err != nil {
		return BatchEmbeddingResult{}, err
	}
	if len(res.Embeddings) != len(texts) {
		return BatchEmbeddingResult{}, fmt.Errorf("%w: got %d vectors for %d texts",
			ErrEmbeddingProviderError, len(res.Embeddings), len(texts))
	}
	for i, v := range res.Embeddings {
		if g.dim > 0 && len(v) != g.dim {
			return BatchEmbeddingResult{}, fmt.Errorf("%w: %w: text %d got %d, want %d",
				ErrEmbeddingProviderError, ErrVectorDimMismatch, i, len(v), g.dim)
		}
	}
	return res, nil
}
