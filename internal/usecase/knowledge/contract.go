package knowledge

import (
	"context"

	domknowledge "github.com/kailas-cloud/semroute/internal/domain/knowledge"
	kbrepo "github.com/kailas-cloud/semroute/internal/repository/knowledge"
)

// Searcher runs vector search over the knowledge index.
type Searcher interface {
	Search(ctx context.Context, embedding []float32, k int) ([]domknowledge.Candidate, error)
}

// Writer stores embedded passages.
type Writer interface {
	EnsureSchema(ctx context.Context) error
	Upsert(ctx context.Context, chunks []kbrepo.Chunk) error
	Reset(ctx context.Context) error
}
