package openai

import (
	"context"
	"fmt"
	"sort"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/semroute/internal/domain"
	"github.com/kailas-cloud/semroute/internal/metrics"
)

// EmbedderConfig configures the embedding endpoint.
type EmbedderConfig struct {
	Config
	Model      string
	Dimensions int // 0 keeps the model default
}

// Embedder implements domain.Embedder and domain.BatchEmbedder against /embeddings.
type Embedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	logger     *zap.Logger
}

// NewEmbedder creates an embedding client.
func NewEmbedder(cfg EmbedderConfig, logger *zap.Logger) *Embedder {
	return &Embedder{
		client:     newClient(cfg.Config),
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		logger:     logger,
	}
}

// Embed vectorizes a single text.
func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := e.create(ctx, []string{text})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{
		Embedding:    res.Embeddings[0],
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

// BatchEmbed vectorizes texts in one request, preserving input order.
func (e *Embedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{}, nil
	}
	return e.create(ctx, texts)
}

// HealthCheck verifies the API is reachable via the free models endpoint.
func (e *Embedder) HealthCheck(ctx context.Context) error {
	if _, err := e.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

func (e *Embedder) create(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	model := string(e.model)
	req := openai.EmbeddingRequest{
		Input:          texts,
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
		Dimensions:     e.dimensions,
	}

	start := time.Now()
	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		e.fail(model, "api_error")
		return domain.BatchEmbeddingResult{}, apiError(err, domain.ErrEmbeddingProviderError)
	}
	if len(resp.Data) != len(texts) {
		e.fail(model, "count_mismatch")
		return domain.BatchEmbeddingResult{}, fmt.Errorf("%w: got %d vectors for %d texts",
			domain.ErrEmbeddingProviderError, len(resp.Data), len(texts))
	}

	metrics.ProviderRequestsTotal.WithLabelValues(kindEmbedding, model, "success").Inc()
	metrics.ProviderRequestDuration.WithLabelValues(kindEmbedding, model).Observe(time.Since(start).Seconds())
	metrics.ProviderTokensTotal.WithLabelValues(kindEmbedding, model, "prompt").Add(float64(resp.Usage.PromptTokens))
	metrics.ProviderTokensTotal.WithLabelValues(kindEmbedding, model, "total").Add(float64(resp.Usage.TotalTokens))

	sort.Slice(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })
	out := domain.BatchEmbeddingResult{
		Embeddings:   make([][]float32, len(resp.Data)),
		PromptTokens: resp.Usage.PromptTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}
	for i, d := range resp.Data {
		out.Embeddings[i] = d.Embedding
	}
	return out, nil
}

func (e *Embedder) fail(model, errType string) {
	metrics.ProviderRequestsTotal.WithLabelValues(kindEmbedding, model, "error").Inc()
	metrics.ProviderErrorsTotal.WithLabelValues(kindEmbedding, model, errType).Inc()
	e.logger.Warn("Embedding provider call failed", zap.String("model", model), zap.String("error_type", errType))
}
