// Package openai talks to OpenAI-compatible embedding and chat completion APIs.
package openai

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kailas-cloud/semroute/internal/domain"
)

const (
	kindEmbedding = "embedding"
	kindChat      = "chat"
)

// Config holds connection settings shared by the embedder and the generator.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

func newClient(cfg Config) *openai.Client {
	c := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		c.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		c.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return openai.NewClientWithConfig(c)
}

// apiError converts a go-openai error into one wrapping sentinel.
// 429 responses additionally wrap domain.ErrRateLimited.
func apiError(err error, sentinel error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return wrapStatus(reqErr.HTTPStatusCode, detail, sentinel)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return wrapStatus(apiErr.HTTPStatusCode, apiErr.Message, sentinel)
	}

	return fmt.Errorf("%w: %w", sentinel, err)
}

func wrapStatus(status int, detail string, sentinel error) error {
	if status == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %w: api error %d: %s", sentinel, domain.ErrRateLimited, status, detail)
	}
	return fmt.Errorf("%w: api error %d: %s", sentinel, status, detail)
}

// extractDetail reads the "detail" field some OpenAI-compatible providers return instead of "error".
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil {
		return parsed.Detail
	}
	return ""
}
