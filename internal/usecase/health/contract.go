package health

import "context"

// Pinger checks cache store availability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KnowledgeCounter checks the knowledge index by counting its passages.
type KnowledgeCounter interface {
	Count(ctx context.Context) (int64, error)
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}
