// Package generation decorates the answer generator with token budgeting and logging.
package generation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/semroute/internal/domain"
)

// Generator writes an answer to query grounded in passages and reports the tokens it spent.
type Generator interface {
	Generate(ctx context.Context, query string, passages []string) (string, int, error)
}

// Budget is the consumer interface for token budget enforcement.
type Budget interface {
	Check(ctx context.Context) error
	Record(tokens int64)
}

// InstrumentedGenerator checks the token budget before every completion and records usage after it.
type InstrumentedGenerator struct {
	inner  Generator
	model  string
	budget Budget
	logger *zap.Logger
}

// NewInstrumentedGenerator wraps inner. budget may be nil.
func NewInstrumentedGenerator(inner Generator, model string, budget Budget, logger *zap.Logger) *InstrumentedGenerator {
	return &InstrumentedGenerator{inner: inner, model: model, budget: budget, logger: logger}
}

// Generate implements Generator. Every error wraps domain.ErrGenerator.
func (g *InstrumentedGenerator) Generate(ctx context.Context, query string, passages []string) (string, int, error) {
	if g.budget != nil {
		if err := g.budget.Check(ctx); err != nil {
			g.logger.Warn("Generation blocked by token budget", zap.String("model", g.model))
			return "", 0, fmt.Errorf("%w: budget check: %w", domain.ErrGenerator, err)
		}
	}

	start := time.Now()
	text, tokens, err := g.inner.Generate(ctx, query, passages)
	if err != nil {
		g.logger.Error("Generation request failed",
			zap.String("model", g.model),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return "", 0, fmt.Errorf("%w: %w", domain.ErrGenerator, err)
	}
	if g.budget != nil && tokens > 0 {
		g.budget.Record(int64(tokens))
	}

	g.logger.Debug("Generation request completed",
		zap.String("model", g.model),
		zap.Duration("duration", time.Since(start)),
		zap.Int("passages", len(passages)),
		zap.Int("total_tokens", tokens),
	)
	return text, tokens, nil
}
