// Package embedding decorates the embedding provider with token budgeting and logging.
package embedding

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/semroute/internal/domain"
)

// MaxBatchSize caps the number of texts sent in one provider call.
const MaxBatchSize = 256

// Budget is the consumer interface for token budget enforcement.
type Budget interface {
	Check(ctx context.Context) error
	Record(tokens int64)
}

// InstrumentedEmbedder checks the token budget before every provider call and records usage after it.
// Provider metrics live in transport/openai.
type InstrumentedEmbedder struct {
	inner  domain.Embedder
	model  string
	budget Budget
	logger *zap.Logger
}

// NewInstrumentedEmbedder wraps inner. budget may be nil.
func NewInstrumentedEmbedder(inner domain.Embedder, model string, budget Budget, logger *zap.Logger) *InstrumentedEmbedder {
	return &InstrumentedEmbedder{inner: inner, model: model, budget: budget, logger: logger}
}

// Embed implements domain.Embedder.
func (e *InstrumentedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := e.checkBudget(ctx, 1); err != nil {
		return domain.EmbeddingResult{}, err
	}

	start := time.Now()
	res, err := e.inner.Embed(ctx, text)
	if err != nil {
		e.logger.Error("Embedding request failed",
			zap.String("model", e.model),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	e.record(res.TotalTokens)

	e.logger.Debug("Embedding request completed",
		zap.String("model", e.model),
		zap.Duration("duration", time.Since(start)),
		zap.Int("dimensions", len(res.Embedding)),
		zap.Int("total_tokens", res.TotalTokens),
	)
	return res, nil
}

// BatchEmbed implements domain.BatchEmbedder, splitting texts into MaxBatchSize chunks.
// The budget is re-checked before each chunk.
func (e *InstrumentedEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	var out domain.BatchEmbeddingResult
	start := time.Now()

	for offset := 0; offset < len(texts); offset += MaxBatchSize {
		chunk := texts[offset:min(offset+MaxBatchSize, len(texts))]
		if err := e.checkBudget(ctx, len(chunk)); err != nil {
			return domain.BatchEmbeddingResult{}, err
		}

		res, err := domain.EmbedAll(ctx, e.inner, chunk)
		if err != nil {
			e.logger.Error("Batch embedding request failed",
				zap.String("model", e.model),
				zap.Int("chunk_offset", offset),
				zap.Int("chunk_size", len(chunk)),
				zap.Error(err),
			)
			return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
		}
		e.record(res.TotalTokens)

		out.Embeddings = append(out.Embeddings, res.Embeddings...)
		out.PromptTokens += res.PromptTokens
		out.TotalTokens += res.TotalTokens
	}

	e.logger.Debug("Batch embedding completed",
		zap.String("model", e.model),
		zap.Duration("duration", time.Since(start)),
		zap.Int("batch_size", len(texts)),
		zap.Int("total_tokens", out.TotalTokens),
	)
	return out, nil
}

func (e *InstrumentedEmbedder) checkBudget(ctx context.Context, n int) error {
	if e.budget == nil {
		return nil
	}
	if err := e.budget.Check(ctx); err != nil {
		e.logger.Warn("Embedding blocked by token budget", zap.String("model", e.model), zap.Int("texts", n))
		return fmt.Errorf("budget check: %w", err)
	}
	return nil
}

func (e *InstrumentedEmbedder) record(tokens int) {
	if e.budget != nil && tokens > 0 {
		e.budget.Record(int64(tokens))
	}
}
