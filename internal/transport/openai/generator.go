package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/semroute/internal/domain"
	"github.com/kailas-cloud/semroute/internal/metrics"
)

// DefaultSystemPrompt instructs the model to stay grounded in the supplied context.
const DefaultSystemPrompt = "You are a helpful assistant for {company}. " +
	"Answer the user's question using only the information in the provided context. " +
	"If the context does not contain the answer, say that you do not know."

// GeneratorConfig configures the chat completion endpoint.
type GeneratorConfig struct {
	Config
	Model        string
	SystemPrompt string
	CompanyName  string
	MaxTokens    int
	Temperature  float32
}

// Generator answers a query from retrieved context with one chat completion.
type Generator struct {
	client      *openai.Client
	model       string
	system      string
	maxTokens   int
	temperature float32
	logger      *zap.Logger
}

// NewGenerator creates a chat completion client. "{company}" in the system prompt is replaced by CompanyName.
func NewGenerator(cfg GeneratorConfig, logger *zap.Logger) *Generator {
	system := cfg.SystemPrompt
	if system == "" {
		system = DefaultSystemPrompt
	}
	return &Generator{
		client:      newClient(cfg.Config),
		model:       cfg.Model,
		system:      strings.ReplaceAll(system, "{company}", cfg.CompanyName),
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		logger:      logger,
	}
}

// Generate returns the model's answer and the tokens it consumed.
func (g *Generator) Generate(ctx context.Context, query string, passages []string) (string, int, error) {
	req := openai.ChatCompletionRequest{
		Model:       g.model,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: g.system},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(query, passages)},
		},
	}

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		g.fail("api_error")
		return "", 0, apiError(err, domain.ErrGenerator)
	}
	if len(resp.Choices) == 0 {
		g.fail("empty_response")
		return "", 0, fmt.Errorf("%w: no choices in response", domain.ErrGenerator)
	}

	metrics.ProviderRequestsTotal.WithLabelValues(kindChat, g.model, "success").Inc()
	metrics.ProviderRequestDuration.WithLabelValues(kindChat, g.model).Observe(time.Since(start).Seconds())
	metrics.ProviderTokensTotal.WithLabelValues(kindChat, g.model, "prompt").Add(float64(resp.Usage.PromptTokens))
	metrics.ProviderTokensTotal.WithLabelValues(kindChat, g.model, "completion").Add(float64(resp.Usage.CompletionTokens))
	metrics.ProviderTokensTotal.WithLabelValues(kindChat, g.model, "total").Add(float64(resp.Usage.TotalTokens))

	return strings.TrimSpace(resp.Choices[0].Message.Content), resp.Usage.TotalTokens, nil
}

func (g *Generator) fail(errType string) {
	metrics.ProviderRequestsTotal.WithLabelValues(kindChat, g.model, "error").Inc()
	metrics.ProviderErrorsTotal.WithLabelValues(kindChat, g.model, errType).Inc()
	g.logger.Warn("Chat provider call failed", zap.String("model", g.model), zap.String("error_type", errType))
}

func buildPrompt(query string, passages []string) string {
	var b strings.Builder
	b.WriteString("Context:\n")
	for i, p := range passages {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, p)
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(query)
	return b.String()
}
