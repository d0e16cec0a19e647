package domain

import "errors"

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateKey signals that a cache entry with the same query hash already exists.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrStoreUnavailable signals a durable storage failure (connection, timeout, driver error).
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrInvalidQuery signals an empty or malformed query.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrBudgetExceeded signals that the provider token budget is spent.
	ErrBudgetExceeded = errors.New("token budget exceeded")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrKnowledgeSource signals a knowledge source failure.
	ErrKnowledgeSource = errors.New("knowledge source error")
	// ErrGenerator signals an answer generator failure.
	ErrGenerator = errors.New("generator error")
)
